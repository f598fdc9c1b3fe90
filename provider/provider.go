package provider

import (
	"context"
	"time"
)

// Provider is an external backend known by name.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend can take requests right now,
	// for example whether any credential is registered for it.
	IsAvailable(ctx context.Context) bool
}

// Settings are the values a Factory reads for one backend. Missing or
// mistyped keys read as zero so the backend's own defaults apply.
type Settings map[string]any

// String returns the string at key.
func (s Settings) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Duration returns the duration at key. Strings such as "45s" are parsed.
func (s Settings) Duration(key string) time.Duration {
	switch v := s[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// Factory builds a backend from its settings.
type Factory[T Provider] func(Settings) (T, error)

// Middleware wraps a RequestResponse backend with extra behaviour.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middlewares with the first one outermost:
// Chain(a, b, c)(p) is a(b(c(p))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}
