package jobstore

import (
	"context"

	"github.com/kbukum/meetingflow/kafka"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
)

// Event types published on the job events topic.
const (
	EventStatusChanged = "job.status_changed"
	EventFailed        = "job.failed"
	EventCompleted     = "job.completed"
)

// Publisher publishes one event. *producer.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event kafka.Event) error
}

// StatusEvent is the data of every job event.
type StatusEvent struct {
	JobID            string             `json:"job_id"`
	State            pipeline.State     `json:"state"`
	Progress         int                `json:"progress"`
	EstimatedSeconds *float64           `json:"estimated_seconds,omitempty"`
	Error            *pipeline.JobError `json:"error,omitempty"`
}

// EventingJobRepository publishes an event after every status write. The
// write is authoritative: a failed publish is logged, not returned.
type EventingJobRepository struct {
	pipeline.JobRepository

	pub    Publisher
	topic  string
	source string
	log    *logger.Logger
}

// NewEventingJobRepository wraps inner. source names the emitting service.
func NewEventingJobRepository(inner pipeline.JobRepository, pub Publisher, topic, source string, log *logger.Logger) *EventingJobRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &EventingJobRepository{
		JobRepository: inner,
		pub:           pub,
		topic:         topic,
		source:        source,
		log:           log.WithComponent("jobstore.events"),
	}
}

func (r *EventingJobRepository) UpdateStatus(ctx context.Context, jobID string, u pipeline.StatusUpdate) error {
	if err := r.JobRepository.UpdateStatus(ctx, jobID, u); err != nil {
		return err
	}

	ev, err := kafka.NewEvent(eventType(u.State), r.source, jobID, StatusEvent{
		JobID:            jobID,
		State:            u.State,
		Progress:         u.Progress,
		EstimatedSeconds: u.EstimatedSeconds,
		Error:            u.Error,
	})
	if err == nil {
		err = r.pub.Publish(ctx, r.topic, ev)
	}
	if err != nil {
		r.log.Warn("job event not published", logger.Fields(
			logger.FieldJobID, jobID,
			logger.FieldState, string(u.State),
			logger.FieldError, err.Error(),
		))
	}
	return nil
}

func eventType(s pipeline.State) string {
	switch s {
	case pipeline.StateFailed:
		return EventFailed
	case pipeline.StateSuccess, pipeline.StatePartialSuccess:
		return EventCompleted
	default:
		return EventStatusChanged
	}
}
