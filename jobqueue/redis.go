package jobqueue

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/redis"
)

// DefaultRedisKey is the list descriptors are pushed to.
const DefaultRedisKey = "meetingflow:jobs"

// RedisQueue is a FIFO list: RPUSH to enqueue, BLPOP to dequeue. A popped
// descriptor is gone from Redis, so a worker that dies mid-job leaves the job
// record in its last in-flight state until it is requeued.
type RedisQueue struct {
	client *redis.Client
	key    string
}

var (
	_ Queue    = (*RedisQueue)(nil)
	_ Enqueuer = (*RedisQueue)(nil)
)

// NewRedisQueue creates a queue on key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue validates d and appends it.
func (q *RedisQueue) Enqueue(ctx context.Context, d pipeline.JobDescriptor) error {
	body, err := encode(d)
	if err != nil {
		return err
	}
	if err := q.client.Unwrap().RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", d.JobID, err)
	}
	return nil
}

// Dequeue blocks on BLPOP. Redis counts the timeout in whole seconds.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	res, err := q.client.Unwrap().BLPop(ctx, timeout, q.key).Result()
	if stderrors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// res is [key, value].
	return &Delivery{Body: []byte(res[1])}, nil
}

// Len reports the number of waiting descriptors.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.Unwrap().LLen(ctx, q.key).Result()
}
