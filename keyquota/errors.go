package keyquota

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/errors"
)

// QuotaExceededError reports that every usable credential is out of quota.
type QuotaExceededError struct {
	Provider string
	// Until is the earliest time a quota cooldown ends.
	Until time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("keyquota: %s: all credentials exhausted quota (earliest reset %s)", e.Provider, e.Until.Format(time.RFC3339))
}

// Unwrap exposes the taxonomy error so errors.AsAppError matches.
func (e *QuotaExceededError) Unwrap() error { return errors.QuotaExceeded(e.Provider) }

// RateLimitedError reports that the pool is throttled.
type RateLimitedError struct {
	Provider string
	RetryAt  time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("keyquota: %s: all credentials rate limited until %s", e.Provider, e.RetryAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error {
	return errors.RateLimited(e.Provider, time.Until(e.RetryAt))
}

// CircuitOpenError reports that every credential's circuit is open.
type CircuitOpenError struct {
	Provider string
	RetryAt  time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("keyquota: %s: all credential circuits open until %s", e.Provider, e.RetryAt.Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error { return errors.CircuitOpen(e.Provider) }

// NoCredentialError reports an empty or fully disabled pool.
type NoCredentialError struct {
	Provider string
}

func (e *NoCredentialError) Error() string {
	return fmt.Sprintf("keyquota: %s: no enabled credentials", e.Provider)
}

func (e *NoCredentialError) Unwrap() error {
	return errors.AuthFailed(e.Provider, nil).WithDetail("reason", "no enabled credentials")
}

// Unavailable reports whether err came from Acquire finding no usable
// credential, as opposed to a call made with one.
func Unavailable(err error) bool {
	var (
		quota *QuotaExceededError
		rate  *RateLimitedError
		open  *CircuitOpenError
		none  *NoCredentialError
	)
	return stderrors.As(err, &quota) || stderrors.As(err, &rate) || stderrors.As(err, &open) || stderrors.As(err, &none)
}
