package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/storage"
)

type stubComponent struct {
	started, stopped bool
}

func (c *stubComponent) Name() string { return "stub" }

func (c *stubComponent) Start(context.Context) error {
	c.started = true
	return nil
}

func (c *stubComponent) Stop(context.Context) error {
	c.stopped = true
	return nil
}

func (c *stubComponent) Health(context.Context) component.Health {
	return component.Health{Name: "stub", Status: component.StatusHealthy}
}

func TestSetupStopsOnCleanup(t *testing.T) {
	c := &stubComponent{}
	t.Run("inner", func(t *testing.T) {
		T(t).Setup(c)
		T(t).Healthy(c)
		if !c.started {
			t.Fatal("component not started")
		}
	})
	if !c.stopped {
		t.Error("component not stopped after subtest")
	}
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	if err := s.Upload(ctx, "a/b.wav", strings.NewReader("12")); err != nil {
		t.Fatal(err)
	}
	url, _ := s.SignedURL(ctx, "a/b.wav", 0)
	if PathOf(url) != "a/b.wav" {
		t.Errorf("PathOf(%q) = %q", url, PathOf(url))
	}
	rc, err := s.Download(ctx, "a/b.wav")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "12" {
		t.Errorf("content = %q", b)
	}
	_ = s.Delete(ctx, "a/b.wav")
	if _, err := s.Download(ctx, "a/b.wav"); err != storage.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTranscoder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, b, out := filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "out")
	_ = os.WriteFile(a, []byte("10"), 0o600)
	_ = os.WriteFile(b, []byte("2.5"), 0o600)

	tc := &Transcoder{}
	if err := tc.Concat(ctx, []string{a, b}, out); err != nil {
		t.Fatal(err)
	}
	d, err := tc.Probe(ctx, out)
	if err != nil || d != 12.5 {
		t.Errorf("Probe = %v, %v; want 12.5", d, err)
	}
	if len(tc.Concats()) != 1 {
		t.Errorf("Concats = %v", tc.Concats())
	}
}
