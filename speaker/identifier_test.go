package speaker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/storage"
	"github.com/kbukum/meetingflow/transcription"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Upload(_ context.Context, p string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[p] = b
	return nil
}

func (s *memStore) Download(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[p]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStore) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, p)
	return nil
}

func (s *memStore) Exists(_ context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[p]
	return ok, nil
}

func (s *memStore) SignedURL(_ context.Context, p string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + p, nil
}

// clipTranscoder writes the extracted window into the clip so the searcher
// can tell labels apart.
type clipTranscoder struct {
	failAt float64
}

func (c *clipTranscoder) Probe(context.Context, string) (float64, error) { return 0, nil }
func (c *clipTranscoder) Concat(context.Context, []string, string) error { return nil }

func (c *clipTranscoder) Extract(_ context.Context, _ string, start, duration float64, output string) error {
	if c.failAt != 0 && start == c.failAt {
		return fmt.Errorf("ffmpeg exploded")
	}
	return os.WriteFile(output, []byte(fmt.Sprintf("%.1f+%.1f", start, duration)), 0o600)
}

var (
	alice = Identity{ID: "u1", Name: "Alice", VoiceprintID: "vp1"}
	bob   = Identity{ID: "u2", Name: "Bob", VoiceprintID: "vp2"}
)

func newFixture(t *testing.T, scores map[string][]float64) (*memStore, Searcher, *[]string) {
	t.Helper()
	store := &memStore{objects: map[string][]byte{"canonical/job/canonical.wav": []byte("audio")}}
	var searched []string
	searcher := provider.Func("fake", func(_ context.Context, req SearchRequest) ([]Candidate, error) {
		b, ok := store.objects[strings.TrimPrefix(req.SampleURL, "https://blobs.test/")]
		if !ok {
			return nil, fmt.Errorf("sample not uploaded")
		}
		searched = append(searched, string(b))
		s, ok := scores[string(b)]
		if !ok {
			return nil, fmt.Errorf("search backend down")
		}
		return []Candidate{{Identity: alice, Score: s[0]}, {Identity: bob, Score: s[1]}}, nil
	})
	return store, searcher, &searched
}

func transcript() transcription.Transcript {
	return transcription.Transcript{Segments: []transcription.Segment{
		{Start: 0, End: 4, Speaker: "Speaker A", Confidence: 0.9},
		{Start: 4, End: 9, Speaker: "Speaker B", Confidence: 0.8},
		{Start: 9, End: 10, Speaker: "Speaker A", Confidence: 0.9},
		{Start: 10, End: 14.5, Speaker: "Speaker C", Confidence: 0.5},
	}}
}

func TestIdentify(t *testing.T) {
	store, searcher, searched := newFixture(t, map[string][]float64{
		"0.0+4.0":  {0.70, 0.10}, // Speaker A -> Alice
		"4.0+5.0":  {0.30, 0.50}, // Speaker B -> Bob via gap rescue
		"10.0+4.5": {0.45, 0.40}, // Speaker C declined
	})
	id := NewIdentifier(Config{ScratchDir: t.TempDir()}, store, &clipTranscoder{}, searcher, nil)

	got := id.Identify(context.Background(), transcript(), "canonical/job/canonical.wav", []Identity{alice, bob})
	assert.Equal(t, map[string]string{"Speaker A": "Alice", "Speaker B": "Bob"}, got)
	assert.Equal(t, []string{"0.0+4.0", "4.0+5.0", "10.0+4.5"}, *searched)

	// samples are removed after the search
	assert.Len(t, store.objects, 1)
}

func TestIdentifyDegradesPerLabel(t *testing.T) {
	store, searcher, _ := newFixture(t, map[string][]float64{
		"0.0+4.0": {0.90, 0.10},
	})
	id := NewIdentifier(Config{ScratchDir: t.TempDir()}, store, &clipTranscoder{failAt: 4}, searcher, nil)

	got := id.Identify(context.Background(), transcript(), "canonical/job/canonical.wav", []Identity{alice, bob})
	assert.Equal(t, map[string]string{"Speaker A": "Alice"}, got)
}

func TestIdentifyWithoutIdentities(t *testing.T) {
	store, searcher, searched := newFixture(t, nil)
	id := NewIdentifier(Config{}, store, &clipTranscoder{}, searcher, nil)

	got := id.Identify(context.Background(), transcript(), "canonical/job/canonical.wav", nil)
	assert.Empty(t, got)
	assert.Empty(t, *searched)
}

func TestIdentifyMissingAudio(t *testing.T) {
	_, searcher, _ := newFixture(t, nil)
	empty := &memStore{objects: map[string][]byte{}}
	id := NewIdentifier(Config{ScratchDir: t.TempDir()}, empty, &clipTranscoder{}, searcher, nil)

	got := id.Identify(context.Background(), transcript(), "canonical/job/canonical.wav", []Identity{alice})
	require.NotNil(t, got)
	assert.Empty(t, got)
}
