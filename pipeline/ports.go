package pipeline

import (
	"context"

	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/transcription"
)

// StatusUpdate is one persisted transition.
type StatusUpdate struct {
	State            State
	Progress         int
	EstimatedSeconds *float64
	Error            *JobError
}

// JobRepository persists job status. Writes must be visible to readers in
// any process once they return.
type JobRepository interface {
	Get(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, u StatusUpdate) error
	UpdateError(ctx context.Context, jobID string, e JobError) error
}

// ArtifactTypeTranscript is the artifact type under which transcripts are
// stored.
const ArtifactTypeTranscript llm.ArtifactType = "transcript"

// ArtifactVersion is a stored artifact with its version number.
type ArtifactVersion struct {
	llm.Artifact
	Version int `json:"version"`
}

// ArtifactRepository stores transcripts and generated artifacts, versioned
// by (job id, type). Nothing is updated in place.
type ArtifactRepository interface {
	SaveTranscript(ctx context.Context, jobID string, t transcription.Transcript, audioRef string) (int, error)
	SaveArtifact(ctx context.Context, a *llm.Artifact) (int, error)
	Latest(ctx context.Context, jobID string, typ llm.ArtifactType) (*ArtifactVersion, error)
}

// CancellationSignal reports a pending cancellation request and consumes it.
type CancellationSignal interface {
	Cancelled(ctx context.Context, jobID string) (bool, error)
}

// Transcriber is the transcription capability.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error)
}

// SpeakerIdentifier resolves diarization labels to identity names. It never
// fails; unresolved labels are absent from the map.
type SpeakerIdentifier interface {
	Identify(ctx context.Context, t transcription.Transcript, audioRef string, identities []speaker.Identity) map[string]string
}

// Corrector applies a label mapping and cleans diarization noise.
type Corrector interface {
	Correct(t transcription.Transcript, mapping map[string]string) transcription.Transcript
}

// ArtifactGenerator produces one artifact from a transcript.
type ArtifactGenerator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Artifact, error)
}
