package transcription

import (
	"context"

	"github.com/kbukum/meetingflow/provider"
)

// Submission is what a backend is asked to transcribe.
type Submission struct {
	// AudioURL is a signed, time-bounded URL of the canonical audio.
	AudioURL string
	// AudioPath is a local copy of the same audio, for backends that upload
	// the bytes instead of fetching the URL. Valid until Transcribe returns.
	AudioPath string
	Language  string
	Hotwords  []string
	// SpeakerLabels asks the backend to diarize.
	SpeakerLabels bool
}

// Outcome is one poll result. Segment times are relative to the canonical
// audio. A backend that only returns text leaves Segments empty and sets Text.
type Outcome struct {
	Done     bool
	Segments []Segment
	Text     string
	Language string
	Duration float64
}

// Backend is a submit/poll speech-to-text service.
//
// Submit returns a backend job id. Poll returns an Outcome with Done=false
// while the job is queued or processing. Terminal failures are returned as
// errors carrying an errors.AppError code; a backend that refuses the audio
// for policy reasons returns errors.SensitiveContent.
type Backend interface {
	provider.Provider

	Submit(ctx context.Context, sub Submission) (string, error)
	Poll(ctx context.Context, id string) (*Outcome, error)
}

// Releaser is implemented by backends that keep per-job state between
// Submit and a terminal Poll. The gateway calls Release once it stops
// polling id, whatever the outcome.
type Releaser interface {
	Release(id string)
}
