package provider

import (
	"context"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/resilience"
)

type executeFunc[I, O any] func(ctx context.Context, input I) (O, error)

// wrapped keeps the inner provider's name and availability and swaps in a
// decorated Execute.
type wrapped[I, O any] struct {
	RequestResponse[I, O]
	exec executeFunc[I, O]
}

func (w *wrapped[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return w.exec(ctx, input)
}

func around[I, O any](decorate func(inner RequestResponse[I, O]) executeFunc[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{RequestResponse: inner, exec: decorate(inner)}
	}
}

// WithRetry retries Execute under cfg.
func WithRetry[I, O any](cfg resilience.RetryConfig) Middleware[I, O] {
	return around(func(inner RequestResponse[I, O]) executeFunc[I, O] {
		return func(ctx context.Context, input I) (O, error) {
			return resilience.Retry(ctx, cfg, func() (O, error) { return inner.Execute(ctx, input) })
		}
	})
}

// WithLogging logs failures at warn and successes at debug.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return around(func(inner RequestResponse[I, O]) executeFunc[I, O] {
		return func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			out, err := inner.Execute(ctx, input)
			fields := logger.Fields(logger.FieldProvider, inner.Name(), logger.FieldDuration, time.Since(start).Milliseconds())
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Warn("provider call failed", fields)
				return out, err
			}
			log.Debug("provider call ok", fields)
			return out, nil
		}
	})
}

// WithTracing opens a "<capability>.<backend>" span per call and records
// the error code on failure.
func WithTracing[I, O any](capability string) Middleware[I, O] {
	return around(func(inner RequestResponse[I, O]) executeFunc[I, O] {
		name := capability + "." + inner.Name()
		return func(ctx context.Context, input I) (O, error) {
			ctx, span := observability.StartSpan(ctx, name)
			defer span.End()
			observability.SetSpanAttribute(ctx, observability.AttrOperationName, capability)
			observability.SetSpanAttribute(ctx, observability.AttrProvider, inner.Name())

			out, err := inner.Execute(ctx, input)
			if err != nil {
				observability.SetSpanAttribute(ctx, observability.AttrErrorCode, string(errors.CodeOf(err)))
				observability.SetSpanError(ctx, err)
			}
			return out, err
		}
	})
}
