package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/meetingflow/component"
)

// Component runs a Worker in the background under a component.Registry.
type Component struct {
	worker *Worker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	_ component.Component     = (*Component)(nil)
	_ component.StopTimeouter = (*Component)(nil)
)

// NewComponent wraps w.
func NewComponent(w *Worker) *Component {
	return &Component{worker: w}
}

func (c *Component) Name() string { return "worker" }

// Start launches the loop. It does not block.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return fmt.Errorf("worker already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = c.worker.Run(runCtx)
	}(c.done)
	return nil
}

// Stop stops pulling jobs and waits for the in-flight one, bounded by ctx.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

// StopTimeout covers the in-flight job's grace period.
func (c *Component) StopTimeout() time.Duration {
	return c.worker.cfg.MaxShutdownWait + 30*time.Second
}

func (c *Component) Health(context.Context) component.Health {
	c.mu.Lock()
	started := c.done != nil
	c.mu.Unlock()
	if !started {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	msg := "idle"
	if id := c.worker.Current(); id != "" {
		msg = "processing " + id
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "worker",
		Details: fmt.Sprintf("poll=%s shutdown_wait=%s", c.worker.cfg.PollTimeout, c.worker.cfg.MaxShutdownWait),
	}
}
