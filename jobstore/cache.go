package jobstore

import (
	"context"
	"time"

	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/redis"
)

// DefaultCacheTTL bounds how long a cached job is served.
const DefaultCacheTTL = 30 * time.Second

// CachedJobRepository serves Get from Redis and falls through to the wrapped
// repository on a miss. Every write goes to the wrapped repository first and
// then drops the cached entry, so a reader never sees a status older than
// the last completed write for longer than one in-flight Get.
type CachedJobRepository struct {
	inner pipeline.JobRepository
	store *redis.JSONCache[pipeline.Job]
	ttl   time.Duration
	log   *logger.Logger
}

var _ pipeline.JobRepository = (*CachedJobRepository)(nil)

// NewCachedJobRepository wraps inner with a cache under "<prefix>:<jobID>".
func NewCachedJobRepository(inner pipeline.JobRepository, client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *CachedJobRepository {
	if prefix == "" {
		prefix = "meetingflow:job"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedJobRepository{
		inner: inner,
		store: redis.NewJSONCache[pipeline.Job](client, prefix),
		ttl:   ttl,
		log:   log.WithComponent("jobstore.cache"),
	}
}

func (c *CachedJobRepository) Get(ctx context.Context, jobID string) (*pipeline.Job, error) {
	if job, err := c.store.Get(ctx, jobID); err != nil {
		c.log.Warn("job cache read failed", logger.Fields(logger.FieldJobID, jobID, logger.FieldError, err.Error()))
	} else if job != nil {
		return job, nil
	}

	job, err := c.inner.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, jobID, job, c.ttl); err != nil {
		c.log.Warn("job cache fill failed", logger.Fields(logger.FieldJobID, jobID, logger.FieldError, err.Error()))
	}
	return job, nil
}

func (c *CachedJobRepository) UpdateStatus(ctx context.Context, jobID string, u pipeline.StatusUpdate) error {
	if err := c.inner.UpdateStatus(ctx, jobID, u); err != nil {
		return err
	}
	c.invalidate(ctx, jobID)
	return nil
}

func (c *CachedJobRepository) UpdateError(ctx context.Context, jobID string, e pipeline.JobError) error {
	if err := c.inner.UpdateError(ctx, jobID, e); err != nil {
		return err
	}
	c.invalidate(ctx, jobID)
	return nil
}

func (c *CachedJobRepository) invalidate(ctx context.Context, jobID string) {
	if err := c.store.Evict(ctx, jobID); err != nil {
		c.log.Warn("job cache invalidation failed", logger.Fields(logger.FieldJobID, jobID, logger.FieldError, err.Error()))
	}
}
