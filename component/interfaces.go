package component

import (
	"context"
	"time"
)

// HealthStatus is reported by /health and the readiness probe.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a piece of infrastructure the registry starts before the
// worker runs and stops after it drains: the database, redis, kafka, the
// admin HTTP server.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is one line of the startup summary.
type Description struct {
	// Name defaults to the component's Name().
	Name    string
	Type    string
	Details string
	Port    int
}

// Describable components appear in the startup summary.
type Describable interface {
	Describe() Description
}

// StopTimeouter components get their own Stop deadline instead of
// DefaultStopTimeout.
type StopTimeouter interface {
	StopTimeout() time.Duration
}
