package testutil

import (
	"context"
	"testing"

	"github.com/kbukum/meetingflow/component"
)

// THelper provides testing.T integration for component setup.
type THelper struct {
	t   testing.TB
	ctx context.Context
}

// T wraps a testing.TB.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background()}
}

// WithContext sets a custom context for Start and Stop.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// Setup starts c and stops it when the test ends.
func (h *THelper) Setup(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(context.WithoutCancel(h.ctx)); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// Healthy fails the test unless c reports healthy.
func (h *THelper) Healthy(c component.Component) {
	h.t.Helper()
	if got := c.Health(h.ctx); got.Status != component.StatusHealthy {
		h.t.Fatalf("component %s is %s: %s", c.Name(), got.Status, got.Message)
	}
}
