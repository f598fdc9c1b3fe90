package transcription

import (
	"fmt"

	"github.com/kbukum/meetingflow/errors"
)

// TranscriptionError is returned when every backend failed, or when the
// audio could not be assembled. Err carries the taxonomy code of the last
// failure.
type TranscriptionError struct {
	JobID string
	Err   error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for job %s: %v", e.JobID, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// SensitiveContentError is returned when a backend masked content or the
// transcript contains a masking marker. It is never retried.
type SensitiveContentError struct {
	Provider string
	Marker   string
}

func (e *SensitiveContentError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("transcription: %s output contains masking marker %q", e.Provider, e.Marker)
	}
	return fmt.Sprintf("transcription: %s reported sensitive content", e.Provider)
}

func (e *SensitiveContentError) Unwrap() error {
	return errors.SensitiveContent(e.Provider).WithDetail("marker", e.Marker)
}

// AudioFormatError is returned when a source cannot be decoded, probed or
// concatenated.
type AudioFormatError struct {
	Source string
	Err    error
}

func (e *AudioFormatError) Error() string {
	return fmt.Sprintf("transcription: audio %s: %v", e.Source, e.Err)
}

func (e *AudioFormatError) Unwrap() error {
	if _, ok := errors.AsAppError(e.Err); ok {
		return e.Err
	}
	return errors.AudioFormat(e.Source, e.Err)
}
