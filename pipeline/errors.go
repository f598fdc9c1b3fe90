package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/meetingflow/errors"
)

// Stage names a pipeline step.
type Stage string

const (
	StageTranscription  Stage = "transcription"
	StageIdentification Stage = "identification"
	StageCorrection     Stage = "correction"
	StageGeneration     Stage = "generation"
)

// PipelineError is the single terminal error of a failed run.
type PipelineError struct {
	Stage          Stage
	Classification errors.ErrorCode
	Retryable      bool
	Err            error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: %s failed [%s]: %v", e.Stage, e.Classification, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Classify maps any error onto the failure taxonomy. Codes outside the
// taxonomy collapse to UNKNOWN unless they describe a transient backend
// condition, which is reported as NETWORK_TIMEOUT. A cancelled context only
// reaches here when a worker abandons the job at shutdown; the job is
// redelivered, so it is reported as a retryable NETWORK_TIMEOUT too.
func Classify(err error) JobError {
	if err == nil {
		return JobError{}
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return JobError{Code: errors.ErrCodeNetworkTimeout, Message: err.Error(), Retryable: true}
	case stderrors.Is(err, context.Canceled):
		return JobError{
			Code:      errors.ErrCodeNetworkTimeout,
			Message:   err.Error(),
			Details:   map[string]any{"interrupted": true},
			Retryable: true,
		}
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		return JobError{Code: errors.ErrCodeUnknown, Message: err.Error()}
	}
	switch {
	case errors.IsTaxonomyCode(appErr.Code):
		return JobError{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		}
	case appErr.Code == errors.ErrCodeCircuitOpen || (appErr.Code == errors.ErrCodeDatabaseError && appErr.Retryable):
		return JobError{
			Code:      errors.ErrCodeNetworkTimeout,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Retryable: true,
		}
	default:
		return JobError{
			Code:    errors.ErrCodeUnknown,
			Message: appErr.Message,
			Details: map[string]any{"original_code": string(appErr.Code)},
		}
	}
}
