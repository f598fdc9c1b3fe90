package keyquota

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/meetingflow/errors"
)

// Do acquires a credential for provider, runs fn with it and records exactly
// one outcome. Errors that say nothing about the credential (content blocks,
// bad audio, cancellation) are recorded as successes.
func Do[T any](ctx context.Context, m *Manager, provider string, fn func(ctx context.Context, cred Credential) (T, error)) (T, error) {
	var zero T
	cred, err := m.Acquire(ctx, provider)
	if err != nil {
		return zero, err
	}

	out, err := fn(ctx, cred)
	if err == nil {
		m.RecordSuccess(cred)
		return out, nil
	}

	if f, fault := Classify(err); fault {
		m.RecordFailure(cred, f)
	} else {
		m.RecordSuccess(cred)
	}
	return zero, err
}

// Classify maps a call error onto a credential Failure. fault is false when
// the error does not reflect on the credential.
func Classify(err error) (f Failure, fault bool) {
	if stderrors.Is(err, context.Canceled) {
		return Failure{}, false
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return Failure{Kind: FailureOther}, true
	}
	switch appErr.Code {
	case errors.ErrCodeRateLimited:
		return Failure{Kind: FailureRateLimit, RetryAfter: appErr.RetryAfter()}, true
	case errors.ErrCodeQuotaExceeded:
		return Failure{Kind: FailureQuota}, true
	case errors.ErrCodeSensitiveContent, errors.ErrCodeAudioFormat, errors.ErrCodeLLMContentBlocked, errors.ErrCodeInvalidInput:
		return Failure{}, false
	default:
		return Failure{Kind: FailureOther}, true
	}
}
