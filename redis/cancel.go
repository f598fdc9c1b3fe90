package redis

import (
	"context"
	"fmt"
	"time"
)

// DefaultCancelTTL bounds how long an unobserved cancellation request lives.
const DefaultCancelTTL = 24 * time.Hour

// CancellationFlags stores per-job cancellation requests. A flag is set by
// the admin API and consumed the first time the pipeline checks it.
type CancellationFlags struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCancellationFlags creates flags under "<prefix>:<jobID>".
func NewCancellationFlags(client *Client, prefix string, ttl time.Duration) *CancellationFlags {
	if prefix == "" {
		prefix = "meetingflow:cancel"
	}
	if ttl <= 0 {
		ttl = DefaultCancelTTL
	}
	return &CancellationFlags{client: client, prefix: prefix, ttl: ttl}
}

func (f *CancellationFlags) key(jobID string) string {
	return f.prefix + ":" + jobID
}

// Request marks jobID for cancellation.
func (f *CancellationFlags) Request(ctx context.Context, jobID string) error {
	if err := f.client.Set(ctx, f.key(jobID), "1", f.ttl); err != nil {
		return fmt.Errorf("cancel flag set %q: %w", jobID, err)
	}
	return nil
}

// Cancelled reports whether cancellation was requested for jobID and clears
// the flag, so each request is observed once.
func (f *CancellationFlags) Cancelled(ctx context.Context, jobID string) (bool, error) {
	_, ok, err := f.client.GetDel(ctx, f.key(jobID))
	if err != nil {
		return false, fmt.Errorf("cancel flag check %q: %w", jobID, err)
	}
	return ok, nil
}
