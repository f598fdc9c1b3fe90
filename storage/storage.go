// Package storage is the blob store the pipeline uploads audio to and signs
// time-bounded URLs from. Backends register themselves by provider name;
// storage/local and storage/s3 ship with the worker.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is wrapped by Download and SignedURL for a missing object.
var ErrNotFound = errors.New("storage: object not found")

// Storage reads and writes objects by slash-separated path.
type Storage interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	// Download's reader must be closed by the caller.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete of a missing object succeeds.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type SignedURLProvider interface {
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// BlobStore is what the transcription gateway and speaker identifier take.
type BlobStore interface {
	Storage
	SignedURLProvider
}
