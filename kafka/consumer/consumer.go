// Package consumer reads messages from one topic in a consumer group with
// explicit commits.
package consumer

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/logger"
)

// Reader is the subset of *kafkago.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer wraps a kafka-go Reader bound to a group. Offsets are committed
// only through Commit, so a message is redelivered if the worker dies before
// committing it.
type Consumer struct {
	reader   Reader
	topic    string
	groupID  string
	log      *logger.Logger
	failures int
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(cfg kafka.Config, topic string, log *logger.Logger) (*Consumer, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}

	dialer, err := kafka.CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer dialer: %w", err)
	}

	clog := log.WithComponent("kafka.consumer")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             topic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       kafkago.FirstOffset,
		MinBytes:          1,
		MaxBytes:          10e6,
		CommitInterval:    0,
		SessionTimeout:    cfg.Consumer.SessionTimeout,
		HeartbeatInterval: cfg.Consumer.HeartbeatInterval,
		RebalanceTimeout:  cfg.Consumer.RebalanceTimeout,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			clog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", topic, "group_id", cfg.GroupID))
		}),
	})

	clog.Info("kafka consumer initialized", logger.Fields("topic", topic, "group_id", cfg.GroupID, "brokers", cfg.Brokers))
	return NewWithReader(reader, topic, cfg.GroupID, clog), nil
}

// NewWithReader builds a consumer on an existing reader.
func NewWithReader(r Reader, topic, groupID string, log *logger.Logger) *Consumer {
	return &Consumer{reader: r, topic: topic, groupID: groupID, log: log}
}

// Fetch blocks until a message arrives or ctx is done. Read errors are
// logged and retried with a linear backoff capped at 30s.
func (c *Consumer) Fetch(ctx context.Context) (kafkago.Message, error) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err == nil {
			c.failures = 0
			return msg, nil
		}
		if ctx.Err() != nil {
			return kafkago.Message{}, ctx.Err()
		}
		if err := c.backoff(ctx, err); err != nil {
			return kafkago.Message{}, err
		}
	}
}

func (c *Consumer) backoff(ctx context.Context, err error) error {
	c.failures++
	if c.failures <= 3 {
		c.log.Error("kafka read error", logger.Fields(
			logger.FieldError, err.Error(), "failures", c.failures, "topic", c.topic, "group_id", c.groupID))
	}

	wait := min(time.Duration(c.failures)*time.Second, 30*time.Second)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Commit marks msgs as processed for the group.
func (c *Consumer) Commit(ctx context.Context, msgs ...kafkago.Message) error {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka commit: %w", err)
	}
	return nil
}

// Topic returns the consumer's topic.
func (c *Consumer) Topic() string { return c.topic }

// Close shuts down the consumer.
func (c *Consumer) Close() error {
	c.log.Info("kafka consumer closing", logger.Fields("topic", c.topic, "group_id", c.groupID))
	return c.reader.Close()
}
