package bootstrap

import (
	"context"
	"fmt"

	"github.com/kbukum/meetingflow/config"
)

// Config is satisfied by any struct embedding config.ServiceConfig.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

// Hook runs at a fixed point of the lifecycle.
type Hook func(ctx context.Context) error

type hookList []Hook

// run stops at the first failure.
func (l hookList) run(ctx context.Context) error {
	for i, h := range l {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d of %d: %w", i+1, len(l), err)
		}
	}
	return nil
}

// OnStart hooks run once the initial components are up, before configure.
func (a *App[C]) OnStart(h ...Hook) { a.onStart = append(a.onStart, h...) }

// OnReady hooks run last, after the ready check.
func (a *App[C]) OnReady(h ...Hook) { a.onReady = append(a.onReady, h...) }

// OnStop hooks run before components stop; the worker drains here.
func (a *App[C]) OnStop(h ...Hook) { a.onStop = append(a.onStop, h...) }
