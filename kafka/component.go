package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetingflow/component"
	"github.com/kbukum/meetingflow/logger"
)

// Closer is satisfied by producers and consumers.
type Closer interface {
	Close() error
}

// TopicCloser is a consumer bound to one topic.
type TopicCloser interface {
	Closer
	Topic() string
}

// Component checks the brokers on Start and closes the injected producer
// and consumers on Stop, consumers first.
type Component struct {
	log *logger.Logger

	mu        sync.Mutex
	cfg       Config
	producer  Closer
	consumers []TopicCloser
	started   bool
}

var _ component.Component = (*Component)(nil)

func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("kafka")}
}

// SetProducer and AddConsumer are called during wiring, before Start.
func (c *Component) SetProducer(p Closer) {
	c.mu.Lock()
	c.producer = p
	c.mu.Unlock()
}

func (c *Component) AddConsumer(cr TopicCloser) {
	c.mu.Lock()
	c.consumers = append(c.consumers, cr)
	c.mu.Unlock()
}

func (c *Component) Name() string { return "kafka" }

func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	cfg := c.cfg
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	conn, err := dial(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	_ = conn.Close()

	c.cfg, c.started = cfg, true
	c.log.Info("brokers reachable", logger.Fields("brokers", strings.Join(cfg.Brokers, ",")))
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}

	var errs []error
	for _, cr := range c.consumers {
		if err := cr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer %s: %w", cr.Topic(), err))
		}
	}
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer: %w", err))
		}
	}
	c.consumers, c.producer, c.started = nil, nil, false
	c.log.Info("closed", logger.Fields("errors", len(errs)))
	return stderrors.Join(errs...)
}

// dial tries each broker in order and returns the first connection.
func dial(ctx context.Context, cfg *Config) (*kafkago.Conn, error) {
	dialer, err := CreateDialer(cfg)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, addr := range cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return nil, fmt.Errorf("no broker reachable: %w", stderrors.Join(errs...))
}

// Health is degraded when a broker answers but metadata cannot be read.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	cfg, started := c.cfg, c.started
	c.mu.Unlock()

	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	if !started {
		h.Message = "not started"
		return h
	}
	conn, err := dial(ctx, &cfg)
	if err != nil {
		h.Message = err.Error()
		return h
	}
	defer conn.Close()

	brokers, err := conn.Brokers()
	if err != nil {
		h.Status = component.StatusDegraded
		h.Message = "metadata: " + err.Error()
		return h
	}
	h.Status = component.StatusHealthy
	h.Message = fmt.Sprintf("%d brokers in cluster", len(brokers))
	return h
}

func (c *Component) Describe() component.Description {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString(strings.Join(c.cfg.Brokers, ","))
	for i, cr := range c.consumers {
		if i == 0 {
			b.WriteString(" consumes ")
		} else {
			b.WriteString(",")
		}
		b.WriteString(cr.Topic())
	}
	if c.producer != nil {
		b.WriteString(" +producer")
	}
	return component.Description{Name: "Kafka", Type: "kafka", Details: b.String()}
}
