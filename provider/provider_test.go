package provider_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/resilience"
)

type testProvider struct {
	name      string
	available bool
}

func (p *testProvider) Name() string                         { return p.name }
func (p *testProvider) IsAvailable(_ context.Context) bool { return p.available }

type echoProvider struct{ name string }

func (p *echoProvider) Name() string                       { return p.name }
func (p *echoProvider) IsAvailable(_ context.Context) bool { return true }
func (p *echoProvider) Execute(_ context.Context, in string) (string, error) {
	return "echo:" + in, nil
}

func TestRegistryCreate(t *testing.T) {
	reg := provider.NewRegistry[*testProvider]()
	reg.RegisterFactory("assembly", func(s provider.Settings) (*testProvider, error) {
		return &testProvider{name: s.String("name"), available: true}, nil
	})

	p, err := reg.Create("assembly", provider.Settings{"name": "primary"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "primary" {
		t.Errorf("expected primary, got %s", p.Name())
	}
	if got, ok := reg.Get("assembly"); !ok || got != p {
		t.Errorf("expected built backend to be kept, got %v %v", got, ok)
	}
}

func TestRegistryCreateUnknown(t *testing.T) {
	reg := provider.NewRegistry[*testProvider]()
	reg.RegisterFactory("whisper", func(provider.Settings) (*testProvider, error) { return &testProvider{}, nil })
	_, err := reg.Create("missing", nil)
	if err == nil || !strings.Contains(err.Error(), `"missing"`) || !strings.Contains(err.Error(), "whisper") {
		t.Errorf("expected unknown-backend error listing registered names, got %v", err)
	}
}

func TestRegistryBuild(t *testing.T) {
	reg := provider.NewRegistry[*testProvider]()
	named := func(s provider.Settings) (*testProvider, error) {
		if s.String("model") == "" {
			return nil, errors.New("model is required")
		}
		return &testProvider{name: s.String("model")}, nil
	}
	reg.RegisterFactory("whisper", named)
	reg.RegisterFactory("assembly", named)

	if names := reg.Names(); len(names) != 2 || names[0] != "assembly" || names[1] != "whisper" {
		t.Errorf("expected sorted names, got %v", names)
	}

	settings := map[string]provider.Settings{
		"assembly": {"model": "best"},
		"whisper":  {"model": "whisper-1"},
	}
	tests := []struct {
		name    string
		order   []string
		want    []string
		wantErr string
	}{
		{"configured order", []string{"whisper", "assembly"}, []string{"whisper-1", "best"}, ""},
		{"single", []string{"assembly"}, []string{"best"}, ""},
		{"duplicate", []string{"assembly", "assembly"}, nil, "listed twice"},
		{"unknown", []string{"assembly", "deepgram"}, nil, "deepgram"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Build(tc.order, settings)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d backends, got %d", len(tc.want), len(got))
			}
			for i, p := range got {
				if p.Name() != tc.want[i] {
					t.Errorf("backend %d: expected %s, got %s", i, tc.want[i], p.Name())
				}
			}
		})
	}

	_, err := reg.Build([]string{"whisper"}, nil)
	if err == nil || !strings.Contains(err.Error(), "backend whisper: model is required") {
		t.Errorf("expected factory error to name the backend, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	s := provider.Settings{
		"base_url": "http://localhost",
		"timeout":  30 * time.Second,
		"poll":     "1m30s",
		"bad":      42,
	}
	if s.String("base_url") != "http://localhost" || s.String("bad") != "" || s.String("absent") != "" {
		t.Error("unexpected string lookups")
	}
	if s.Duration("timeout") != 30*time.Second || s.Duration("poll") != 90*time.Second {
		t.Error("unexpected duration lookups")
	}
	if s.Duration("base_url") != 0 || s.Duration("absent") != 0 {
		t.Error("unparseable durations read as zero")
	}
	var empty provider.Settings
	if empty.String("x") != "" || empty.Duration("x") != 0 {
		t.Error("nil settings read as zero")
	}
}

func TestFunc(t *testing.T) {
	p := provider.Func("upper", func(_ context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	})
	out, err := p.Execute(context.Background(), "abc")
	if err != nil || out != "ABC" {
		t.Fatalf("expected ABC, got %q %v", out, err)
	}
	if p.Name() != "upper" || !p.IsAvailable(context.Background()) {
		t.Error("unexpected name or availability")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(tag string) provider.Middleware[string, string] {
		return func(inner provider.RequestResponse[string, string]) provider.RequestResponse[string, string] {
			return provider.Func(inner.Name(), func(ctx context.Context, in string) (string, error) {
				order = append(order, tag+":before")
				out, err := inner.Execute(ctx, in)
				order = append(order, tag+":after")
				return out, err
			})
		}
	}

	wrapped := provider.Chain(mw("A"), mw("B"))(&echoProvider{name: "test"})
	if _, err := wrapped.Execute(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}

	want := []string{"A:before", "B:before", "B:after", "A:after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestWithLoggingAndRetry(t *testing.T) {
	calls := 0
	flaky := provider.Func("flaky", func(_ context.Context, in string) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("temporary")
		}
		return in, nil
	})

	wrapped := provider.Chain(
		provider.WithLogging[string, string](logger.Nop()),
		provider.WithRetry[string, string](resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)(flaky)

	out, err := wrapped.Execute(context.Background(), "ok")
	if err != nil || out != "ok" {
		t.Fatalf("expected ok, got %q %v", out, err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if wrapped.Name() != "flaky" {
		t.Errorf("expected name to pass through, got %s", wrapped.Name())
	}
}

func TestWithTracing(t *testing.T) {
	wrapped := provider.WithTracing[string, string]("echo")(&echoProvider{name: "echo"})
	out, err := wrapped.Execute(context.Background(), "x")
	if err != nil || out != "echo:x" {
		t.Fatalf("expected echo:x, got %q %v", out, err)
	}
}

func TestRunFallback(t *testing.T) {
	transient := errors.New("transient")
	terminal := errors.New("terminal")

	classify := func(_ string, err error) provider.Decision {
		if errors.Is(err, transient) {
			return provider.TryNext
		}
		return provider.Stop
	}

	tests := []struct {
		name      string
		primary   error
		fallback  error
		wantOut   string
		wantErr   error
		wantCalls []string
	}{
		{"primary succeeds", nil, nil, "primary", nil, []string{"primary"}},
		{"transient falls back", transient, nil, "fallback", nil, []string{"primary", "fallback"}},
		{"terminal stops", terminal, nil, "", terminal, []string{"primary"}},
		{"both fail", transient, terminal, "", terminal, []string{"primary", "fallback"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			attempt := func(name string, err error) provider.Attempt[string] {
				return provider.Attempt[string]{Name: name, Run: func(context.Context) (string, error) {
					calls = append(calls, name)
					if err != nil {
						return "", err
					}
					return name, nil
				}}
			}

			out, err := provider.RunFallback(context.Background(), []provider.Attempt[string]{
				attempt("primary", tc.primary),
				attempt("fallback", tc.fallback),
			}, classify)

			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				var ae *provider.AttemptError
				if !errors.As(err, &ae) || ae.Name != tc.wantCalls[len(tc.wantCalls)-1] {
					t.Errorf("expected AttemptError naming the last attempt, got %v", err)
				}
			}
			if out != tc.wantOut {
				t.Errorf("expected %q, got %q", tc.wantOut, out)
			}
			if strings.Join(calls, ",") != strings.Join(tc.wantCalls, ",") {
				t.Errorf("expected calls %v, got %v", tc.wantCalls, calls)
			}
		})
	}
}

func TestRunFallback_Empty(t *testing.T) {
	_, err := provider.RunFallback[int](context.Background(), nil, nil)
	if !errors.Is(err, provider.ErrNoAttempts) {
		t.Errorf("expected ErrNoAttempts, got %v", err)
	}
}

func TestRunFallback_CancelledBeforeNext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failed := errors.New("primary down")
	fallbackRan := false

	_, err := provider.RunFallback(ctx, []provider.Attempt[int]{
		{Name: "primary", Run: func(context.Context) (int, error) { cancel(); return 0, failed }},
		{Name: "fallback", Run: func(context.Context) (int, error) { fallbackRan = true; return 1, nil }},
	}, func(string, error) provider.Decision { return provider.TryNext })

	if fallbackRan {
		t.Error("fallback must not run after cancellation")
	}
	if !errors.Is(err, failed) {
		t.Errorf("expected primary error, got %v", err)
	}
}
