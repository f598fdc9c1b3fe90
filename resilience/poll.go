package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPollDeadline is returned by PollUntil when the policy deadline passes
// before the polled job reaches a terminal state.
var ErrPollDeadline = errors.New("poll deadline exceeded")

// PollPolicy describes how a long-running remote job is polled.
type PollPolicy struct {
	// Initial is the delay before the second poll.
	Initial time.Duration `yaml:"initial" mapstructure:"initial"`
	// Multiplier grows the delay after every poll.
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
	// Max caps a single delay.
	Max time.Duration `yaml:"max" mapstructure:"max"`
	// Deadline bounds the total wait, measured from the first poll.
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline"`
}

// DefaultPollPolicy returns 2s initial, x1.5, capped at 30s, 300s deadline.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Initial:    2 * time.Second,
		Multiplier: 1.5,
		Max:        30 * time.Second,
		Deadline:   300 * time.Second,
	}
}

// ApplyDefaults fills zero fields from DefaultPollPolicy.
func (p *PollPolicy) ApplyDefaults() {
	d := DefaultPollPolicy()
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Deadline <= 0 {
		p.Deadline = d.Deadline
	}
}

// Delays returns the sequence of waits the policy produces before the
// deadline is spent. Useful for logging and tests.
func (p PollPolicy) Delays() []time.Duration {
	var out []time.Duration
	var total time.Duration
	delay := p.Initial
	for total+delay <= p.Deadline {
		out = append(out, delay)
		total += delay
		delay = p.next(delay)
	}
	return out
}

func (p PollPolicy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.Max {
		n = p.Max
	}
	return n
}

// PollFunc polls once. done=true ends polling with the returned value; a
// non-nil error ends polling with that error.
type PollFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// PollUntil calls fn until it reports done, returns an error, ctx is done or
// the policy deadline passes. The delay starts at Initial, is multiplied by
// Multiplier after every poll and never exceeds Max.
func PollUntil[T any](ctx context.Context, policy PollPolicy, fn PollFunc[T]) (T, error) {
	return pollUntil(ctx, policy, fn, sleep)
}

func pollUntil[T any](ctx context.Context, policy PollPolicy, fn PollFunc[T], wait func(context.Context, time.Duration) error) (T, error) {
	var zero T
	policy.ApplyDefaults()

	var waited time.Duration
	delay := policy.Initial
	for {
		value, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
		if waited+delay > policy.Deadline {
			return zero, ErrPollDeadline
		}
		if err := wait(ctx, delay); err != nil {
			return zero, err
		}
		waited += delay
		delay = policy.next(delay)
	}
}
