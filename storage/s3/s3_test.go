package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/meetingflow/storage"
)

func newBucket(t *testing.T, prefix string) *Bucket {
	t.Helper()
	b, err := New(context.Background(), storage.S3Config{
		Bucket:    "meetings",
		Region:    "eu-west-1",
		Endpoint:  "http://127.0.0.1:9000",
		PathStyle: true,
		Prefix:    prefix,
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestSignedURL_PathStyleWithPrefix(t *testing.T) {
	b := newBucket(t, "audio")
	raw, err := b.SignedURL(context.Background(), "job-1/chunk-0.wav", 15*time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "127.0.0.1:9000" {
		t.Errorf("host = %q", u.Host)
	}
	if u.Path != "/meetings/audio/job-1/chunk-0.wav" {
		t.Errorf("path = %q", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "900" {
		t.Errorf("X-Amz-Expires = %q", got)
	}
}

func TestKey(t *testing.T) {
	if got := *newBucket(t, "").key("a/b.wav"); got != "a/b.wav" {
		t.Errorf("no prefix: %q", got)
	}
	if got := *newBucket(t, "x").key("a/b.wav"); got != "x/a/b.wav" {
		t.Errorf("prefix: %q", got)
	}
}

func TestWrap(t *testing.T) {
	for _, err := range []error{&types.NoSuchKey{}, fmt.Errorf("op: %w", &types.NotFound{})} {
		if !errors.Is(wrap("get", "a", err), storage.ErrNotFound) {
			t.Errorf("%T not mapped to ErrNotFound", err)
		}
	}
	got := wrap("put", "a", errors.New("throttled"))
	if errors.Is(got, storage.ErrNotFound) || !strings.Contains(got.Error(), "s3 put a") {
		t.Errorf("wrap = %v", got)
	}
}
