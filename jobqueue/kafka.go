package jobqueue

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/kafka/consumer"
	"github.com/kbukum/meetingflow/pipeline"
)

// EventJobRequested is the event type of a queued descriptor.
const EventJobRequested = "job.requested"

// Publisher publishes one event. *producer.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event kafka.Event) error
}

// KafkaQueue reads descriptors from a topic in a consumer group. The offset
// is committed by Ack, so a descriptor whose worker died is redelivered to
// the next group member.
type KafkaQueue struct {
	consumer *consumer.Consumer
	pub      Publisher
	topic    string
	source   string
}

var (
	_ Queue    = (*KafkaQueue)(nil)
	_ Enqueuer = (*KafkaQueue)(nil)
)

// NewKafkaQueue creates a queue. pub may be nil for a consume-only queue.
func NewKafkaQueue(c *consumer.Consumer, pub Publisher, source string) *KafkaQueue {
	return &KafkaQueue{consumer: c, pub: pub, topic: c.Topic(), source: source}
}

// Enqueue publishes d keyed by its job id.
func (q *KafkaQueue) Enqueue(ctx context.Context, d pipeline.JobDescriptor) error {
	if q.pub == nil {
		return fmt.Errorf("kafka queue %s has no producer", q.topic)
	}
	return publish(ctx, q.pub, q.topic, q.source, d)
}

// KafkaEnqueuer publishes descriptors without joining the consumer group.
type KafkaEnqueuer struct {
	pub    Publisher
	topic  string
	source string
}

var _ Enqueuer = (*KafkaEnqueuer)(nil)

// NewKafkaEnqueuer creates a publish-only queue handle for topic.
func NewKafkaEnqueuer(pub Publisher, topic, source string) *KafkaEnqueuer {
	return &KafkaEnqueuer{pub: pub, topic: topic, source: source}
}

// Enqueue publishes d keyed by its job id.
func (e *KafkaEnqueuer) Enqueue(ctx context.Context, d pipeline.JobDescriptor) error {
	return publish(ctx, e.pub, e.topic, e.source, d)
}

func publish(ctx context.Context, pub Publisher, topic, source string, d pipeline.JobDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ev, err := kafka.NewEvent(EventJobRequested, source, d.JobID, d)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, topic, ev)
}

// Dequeue fetches the next message. A message that is not a job event is
// committed and skipped.
func (q *KafkaQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		msg, err := q.consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if stderrors.Is(err, context.DeadlineExceeded) {
				return nil, nil
			}
			return nil, err
		}

		ack := func(ctx context.Context) error { return q.consumer.Commit(ctx, msg) }
		ev, err := kafka.DecodeEvent(msg)
		if err != nil || ev.Type != EventJobRequested {
			if err := ack(ctx); err != nil {
				return nil, err
			}
			continue
		}
		return &Delivery{Body: ev.Data, ack: ack}, nil
	}
}
