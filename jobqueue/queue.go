// Package jobqueue delivers queued job descriptors to workers. RedisQueue is
// a Redis list consumed with BLPOP; KafkaQueue is a consumer-group topic with
// explicit commits.
package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/pipeline"
)

// Delivery is one dequeued descriptor. Ack must be called once the job has
// reached a terminal state or was rejected.
type Delivery struct {
	Body []byte
	ack  func(ctx context.Context) error
}

// NewDelivery builds a delivery for queue implementations outside this
// package. ack may be nil.
func NewDelivery(body []byte, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{Body: body, ack: ack}
}

// Ack acknowledges the delivery. A queue without acknowledgements ignores it.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Queue is the worker's source of jobs.
type Queue interface {
	// Dequeue waits up to timeout for a descriptor. It returns (nil, nil)
	// when nothing arrived in time.
	Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error)
}

// Enqueuer publishes descriptors.
type Enqueuer interface {
	Enqueue(ctx context.Context, d pipeline.JobDescriptor) error
}

func encode(d pipeline.JobDescriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return b, nil
}
