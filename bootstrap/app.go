package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/logger"
)

// DefaultGracefulTimeout bounds shutdown when no option overrides it.
const DefaultGracefulTimeout = 15 * time.Second

// App is a service with a uniform lifecycle. C is the config type.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart hookList
	onReady hookList
	onStop  hookList
}

// NewApp validates cfg after applying defaults and wires logging, the
// component registry and the startup summary.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()
	o := appOptions{gracefulTimeout: DefaultGracefulTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		logger.Init(&base.Logging, base.Name)
		log = logger.GetGlobalLogger()
	}
	summary := NewSummary(base.Name, base.Version)
	if o.summaryOut != nil {
		summary.SetOutput(o.summaryOut)
	}
	return &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(log),
		Logger:          log,
		Summary:         summary,
		gracefulTimeout: o.gracefulTimeout,
	}, nil
}

// RegisterComponent adds c to the registry. Components registered from an
// OnConfigure callback are started right after the configure phase.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback for the configure phase, which runs once
// infrastructure components are up.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck names every component that is not healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var bad []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		entry := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			entry += "(" + h.Message + ")"
		}
		bad = append(bad, entry)
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("unhealthy components: %s", strings.Join(bad, ", "))
}

// Run starts the app and blocks until SIGINT, SIGTERM or ctx ends, then
// shuts down.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("ready")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the app, runs task and shuts down. A signal cancels the
// task's context; task's error wins over a shutdown error.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	taskCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	err := task(taskCtx)
	stop()
	if serr := a.stop(); err == nil {
		err = serr
	}
	return err
}

type phase struct {
	name string
	run  func(context.Context) error
}

// startup runs the phases in order. Components registered while
// configuring start in the second component phase. Any failure stops
// whatever already started.
func (a *App[C]) startup(ctx context.Context) error {
	began := time.Now()
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	phases := []phase{
		{"start components", a.Components.StartAll},
		{"onStart", func(ctx context.Context) error { return a.onStart.run(ctx) }},
		{"configure", a.configure},
		{"start components", a.Components.StartAll},
		{"ready check", func(ctx context.Context) error {
			if err := a.ReadyCheck(ctx); err != nil {
				a.Logger.Warn("starting degraded", logger.Fields(logger.FieldError, err.Error()))
			}
			return nil
		}},
		{"onReady", func(ctx context.Context) error { return a.onReady.run(ctx) }},
	}
	for _, p := range phases {
		if err := p.run(ctx); err != nil {
			a.abort()
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}

	a.Summary.SetStartupDuration(time.Since(began))
	a.Summary.Display(a.Components)
	return nil
}

func (a *App[C]) configure(ctx context.Context) error {
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (a *App[C]) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()
	_ = a.Components.StopAll(ctx)
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives, returning it, or
// until ctx ends, returning nil.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		a.Logger.Info("signal received", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Shutdown runs the stop sequence for callers driving their own loop.
func (a *App[C]) Shutdown() error {
	return a.stop()
}

// stop runs the onStop hooks, then stops components, within the graceful
// timeout. Both run even if the hooks fail.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	hookErr := a.onStop.run(ctx)
	if hookErr != nil {
		a.Logger.Error("onStop failed", logger.ErrorFields("on_stop", hookErr))
	}
	compErr := a.Components.StopAll(ctx)
	if compErr != nil {
		a.Logger.Error("components stopped with errors", logger.ErrorFields("stop_components", compErr))
	}
	a.Logger.Info("stopped")
	return stderrors.Join(hookErr, compErr)
}
