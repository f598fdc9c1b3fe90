// Package producer publishes job events to Kafka through a kafka-go Writer.
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/resilience"
)

// Writer is the subset of *kafkago.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer wraps a kafka-go Writer with retries and structured logging.
type Producer struct {
	writer  Writer
	retries int
	log     *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewProducer creates a producer connected to cfg.Brokers.
func NewProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}

	transport, err := kafka.CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer transport: %w", err)
	}

	plog := log.WithComponent("kafka.producer")
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Transport:              transport,
		Balancer:               &kafkago.Hash{},
		BatchSize:              cfg.Producer.BatchSize,
		BatchTimeout:           cfg.Producer.BatchTimeout,
		RequiredAcks:           kafkago.RequiredAcks(cfg.Producer.RequiredAcks),
		Compression:            kafka.ResolveCompression(cfg.Producer.Compression),
		WriteTimeout:           cfg.Producer.WriteTimeout,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			plog.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}

	plog.Info("kafka producer initialized", logger.Fields(
		"brokers", cfg.Brokers, "compression", cfg.Producer.Compression, "batch_size", cfg.Producer.BatchSize))

	return NewWithWriter(w, cfg.Producer.Retries, plog), nil
}

// NewWithWriter builds a producer on an existing writer.
func NewWithWriter(w Writer, retries int, log *logger.Logger) *Producer {
	if retries <= 0 {
		retries = 3
	}
	return &Producer{writer: w, retries: retries, log: log}
}

// WriteMessages sends messages, retrying transient broker errors.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	cfg := resilience.RetryConfig{
		MaxAttempts:    p.retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2,
		RetryIf:        kafka.IsRetryableError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			p.log.Warn("kafka write failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt, logger.FieldError, err.Error(), "backoff", backoff.String()))
		},
	}
	if err := resilience.RetryFunc(ctx, cfg, func() error {
		return p.writer.WriteMessages(ctx, msgs...)
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Publish encodes event and writes it to topic keyed by its subject.
func (p *Producer) Publish(ctx context.Context, topic string, event kafka.Event) error {
	msg, err := event.ToMessage(topic)
	if err != nil {
		return err
	}
	return p.WriteMessages(ctx, msg)
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("kafka producer closing")
	return p.writer.Close()
}
