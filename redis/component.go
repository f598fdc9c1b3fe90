package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/logger"
)

// slowPing marks the connection degraded in health reports.
const slowPing = 250 * time.Millisecond

// Component runs the shared client under the component registry. Client is
// nil until Start succeeds.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

var _ component.Component = (*Component)(nil)

func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start connects and pings; a failed ping closes the client again.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis %s: %w", c.cfg.Addr, err)
	}
	c.client = client
	c.log.Info("redis connected", logger.Fields("addr", c.cfg.Addr, "db", c.cfg.DB))
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health pings and reports the round trip.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	if c.client == nil {
		h.Message = "not started"
		return h
	}
	start := time.Now()
	if err := c.client.Ping(ctx); err != nil {
		h.Message = err.Error()
		return h
	}
	rtt := time.Since(start)
	h.Status = component.StatusHealthy
	if rtt > slowPing {
		h.Status = component.StatusDegraded
	}
	h.Message = "ping " + rtt.Round(time.Millisecond).String()
	return h
}

func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("%s/%d", c.cfg.Addr, c.cfg.DB)
	if c.cfg.TLS {
		details += " tls"
	}
	return component.Description{Name: "Redis", Type: "redis", Details: details}
}
