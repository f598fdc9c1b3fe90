package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/pipeline"
)

// GormJobRepository stores jobs in the jobs table.
type GormJobRepository struct {
	db  *database.DB
	now func() time.Time
}

var _ pipeline.JobRepository = (*GormJobRepository)(nil)

// NewJobRepository creates a repository on db.
func NewJobRepository(db *database.DB) *GormJobRepository {
	return &GormJobRepository{db: db, now: time.Now}
}

// Create inserts job if no job with its ID exists. It reports whether a row
// was inserted.
func (r *GormJobRepository) Create(ctx context.Context, job *pipeline.Job) (bool, error) {
	desc, err := json.Marshal(job.JobDescriptor)
	if err != nil {
		return false, errors.Internal(fmt.Errorf("encode descriptor: %w", err))
	}
	rec := &JobRecord{
		ID:              job.JobID,
		TenantID:        job.TenantID,
		OwnerID:         job.OwnerID,
		Descriptor:      string(desc),
		State:           string(job.State),
		Progress:        job.Progress,
		DurationSeconds: job.Duration,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, database.FromDatabase(res.Error, "job", job.JobID)
	}
	return res.RowsAffected > 0, nil
}

// Get loads a job.
func (r *GormJobRepository) Get(ctx context.Context, jobID string) (*pipeline.Job, error) {
	var rec JobRecord
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&rec).Error; err != nil {
		return nil, database.FromDatabase(err, "job", jobID)
	}
	return toJob(&rec)
}

// UpdateStatus writes state, progress, estimate and, when set, the error.
func (r *GormJobRepository) UpdateStatus(ctx context.Context, jobID string, u pipeline.StatusUpdate) error {
	now := r.now().UTC()
	values := map[string]any{
		"state":             string(u.State),
		"progress":          u.Progress,
		"estimated_seconds": u.EstimatedSeconds,
		"updated_at":        now,
	}
	if u.State.Terminal() {
		values["finished_at"] = now
	}
	if u.Error != nil {
		if err := errorColumns(values, *u.Error); err != nil {
			return err
		}
	}
	return r.update(ctx, jobID, values)
}

// UpdateError records the job's classified failure.
func (r *GormJobRepository) UpdateError(ctx context.Context, jobID string, e pipeline.JobError) error {
	values := map[string]any{"updated_at": r.now().UTC()}
	if err := errorColumns(values, e); err != nil {
		return err
	}
	return r.update(ctx, jobID, values)
}

func (r *GormJobRepository) update(ctx context.Context, jobID string, values map[string]any) error {
	res := r.db.WithContext(ctx).Model(&JobRecord{}).Where("id = ?", jobID).Updates(values)
	if res.Error != nil {
		return database.FromDatabase(res.Error, "job", jobID)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("job", jobID)
	}
	return nil
}

func errorColumns(values map[string]any, e pipeline.JobError) error {
	details := ""
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return errors.Internal(fmt.Errorf("encode error details: %w", err))
		}
		details = string(b)
	}
	values["error_code"] = string(e.Code)
	values["error_message"] = e.Message
	values["error_details"] = details
	values["error_retryable"] = e.Retryable
	return nil
}

func toJob(rec *JobRecord) (*pipeline.Job, error) {
	var desc pipeline.JobDescriptor
	if err := json.Unmarshal([]byte(rec.Descriptor), &desc); err != nil {
		return nil, errors.Internal(fmt.Errorf("decode descriptor of job %s: %w", rec.ID, err))
	}
	job := &pipeline.Job{
		JobDescriptor:    desc,
		State:            pipeline.State(rec.State),
		Progress:         rec.Progress,
		EstimatedSeconds: rec.EstimatedSeconds,
		Duration:         rec.DurationSeconds,
	}
	if rec.ErrorCode != "" {
		je := &pipeline.JobError{
			Code:      errors.ErrorCode(rec.ErrorCode),
			Message:   rec.ErrorMessage,
			Retryable: rec.ErrorRetryable,
		}
		if rec.ErrorDetails != "" {
			_ = json.Unmarshal([]byte(rec.ErrorDetails), &je.Details)
		}
		job.Error = je
	}
	return job, nil
}
