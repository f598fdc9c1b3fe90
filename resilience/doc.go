// Package resilience provides the retry, polling and circuit-breaking
// primitives the pipeline builds on.
//
//   - Retry: retries a call with exponential backoff, honoring retry-after hints
//   - PollUntil: polls a long-running remote job under an explicit PollPolicy
//   - CircuitBreaker: opens after consecutive failures and recovers after a cooldown
//
// Example:
//
//	status, err := resilience.PollUntil(ctx, resilience.DefaultPollPolicy(), func(ctx context.Context) (Status, bool, error) {
//	    st, err := backend.Poll(ctx, handle)
//	    return st, st.Done, err
//	})
package resilience
