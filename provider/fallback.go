package provider

import (
	"context"
	"errors"
)

// Decision tells RunFallback what to do after an attempt fails.
type Decision int

const (
	// Stop returns the error without running further attempts.
	Stop Decision = iota
	// TryNext moves on to the next attempt.
	TryNext
)

func (d Decision) String() string {
	if d == TryNext {
		return "try_next"
	}
	return "stop"
}

// Attempt is one entry in an ordered fallback list.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Classifier decides, per failed attempt, whether to continue.
type Classifier func(name string, err error) Decision

// ErrNoAttempts is returned when RunFallback is given an empty list.
var ErrNoAttempts = errors.New("provider: no attempts configured")

// AttemptError records the failure of a named attempt.
type AttemptError struct {
	Name string
	Err  error
}

func (e *AttemptError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// RunFallback runs attempts in order until one succeeds or classify returns
// Stop. The returned error is the last attempt's error wrapped in
// *AttemptError. A cancelled ctx stops the list before the next attempt.
func RunFallback[T any](ctx context.Context, attempts []Attempt[T], classify Classifier) (T, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, ErrNoAttempts
	}

	var lastErr error
	for i, a := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		out, err := a.Run(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = &AttemptError{Name: a.Name, Err: err}

		if i == len(attempts)-1 || classify == nil || classify(a.Name, err) == Stop {
			break
		}
	}
	return zero, lastErr
}
