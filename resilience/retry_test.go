package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errFlaky = errors.New("flaky")
	errFatal = errors.New("fatal")
)

// failing returns fn that fails with errs in order, then succeeds.
func failing(calls *int, errs ...error) func() (string, error) {
	return func() (string, error) {
		*calls++
		if *calls <= len(errs) {
			return "", errs[*calls-1]
		}
		return "ok", nil
	}
}

func TestRetry(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	onlyFlaky := fast
	onlyFlaky.RetryIf = func(err error) bool { return errors.Is(err, errFlaky) }

	tests := []struct {
		name      string
		cfg       RetryConfig
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"first try", fast, nil, 1, nil},
		{"recovers", fast, []error{errFlaky, errFlaky}, 3, nil},
		{"runs out", fast, []error{errFlaky, errFlaky, errFlaky}, 3, errFlaky},
		{"filter stops early", onlyFlaky, []error{errFlaky, errFatal}, 2, errFatal},
		{"zero attempts means three", RetryConfig{InitialBackoff: time.Millisecond}, []error{errFlaky, errFlaky, errFlaky, errFlaky}, 3, errFlaky},
		{"cancellation not retried", fast, []error{context.Canceled}, 1, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Retry(context.Background(), tt.cfg, failing(&calls, tt.errs...))
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != "ok" {
				t.Errorf("result = %q", got)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Retry(ctx, RetryConfig{MaxAttempts: 10, InitialBackoff: 100 * time.Millisecond}, func() (int, error) {
		calls++
		return 0, errFlaky
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryReportsEachWait(t *testing.T) {
	var attempts []int
	var waits []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2,
		OnRetry: func(attempt int, _ error, wait time.Duration) {
			attempts = append(attempts, attempt)
			waits = append(waits, wait)
		},
	}
	calls := 0
	_, _ = Retry(context.Background(), cfg, failing(&calls, errFlaky, errFlaky, errFlaky))

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("attempts = %v, want [1 2]", attempts)
	}
	if waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("waits = %v", waits)
	}
}

func TestRetryAfterHintIsCapped(t *testing.T) {
	var waits []time.Duration
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Hour,
		MaxBackoff:     5 * time.Millisecond,
		RetryAfter: func(err error) time.Duration {
			if errors.Is(err, errFlaky) {
				return time.Minute
			}
			return 0
		},
		OnRetry: func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}
	calls := 0
	if _, err := Retry(context.Background(), cfg, failing(&calls, errFlaky)); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if len(waits) != 1 || waits[0] != 5*time.Millisecond {
		t.Errorf("waits = %v, want [5ms]", waits)
	}
}

func TestRetryFunc(t *testing.T) {
	calls := 0
	err := RetryFunc(context.Background(), RetryConfig{InitialBackoff: time.Millisecond}, func() error {
		calls++
		if calls == 1 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2}
	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		if got := calculateBackoff(i+1, cfg); got != w*time.Millisecond {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w*time.Millisecond)
		}
	}

	cfg.Jitter = 0.5
	for range 50 {
		if got := calculateBackoff(2, cfg); got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 300ms]", got)
		}
	}
}
