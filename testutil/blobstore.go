package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/meetingflow/storage"
)

// SignedURLPrefix prefixes every URL MemStore signs.
const SignedURLPrefix = "https://blobs.test/"

// MemStore is an in-memory storage.BlobStore.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ storage.BlobStore = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Put stores content at path.
func (s *MemStore) Put(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = []byte(content)
}

// Get returns the content at path.
func (s *MemStore) Get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	return string(b), ok
}

// Paths lists stored paths in sorted order.
func (s *MemStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PathOf maps a URL returned by SignedURL back to its path.
func PathOf(url string) string {
	return strings.TrimPrefix(url, SignedURLPrefix)
}

func (s *MemStore) Upload(_ context.Context, path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = b
	return nil
}

func (s *MemStore) Download(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *MemStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *MemStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return SignedURLPrefix + path, nil
}
