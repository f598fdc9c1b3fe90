package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/validation"
)

// State is a job lifecycle state.
type State string

const (
	StatePending        State = "PENDING"
	StateRunning        State = "RUNNING"
	StateTranscribing   State = "TRANSCRIBING"
	StateIdentifying    State = "IDENTIFYING"
	StateCorrecting     State = "CORRECTING"
	StateSummarizing    State = "SUMMARIZING"
	StateSuccess        State = "SUCCESS"
	StateFailed         State = "FAILED"
	StateCancelled      State = "CANCELLED"
	StatePartialSuccess State = "PARTIAL_SUCCESS"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCancelled, StatePartialSuccess:
		return true
	}
	return false
}

// InFlight reports whether s is a running, non-terminal state.
func (s State) InFlight() bool {
	return s != StatePending && !s.Terminal()
}

var transitions = map[State][]State{
	StatePending:      {StateRunning, StateCancelled, StateFailed},
	StateRunning:      {StateTranscribing},
	StateTranscribing: {StateIdentifying, StateCorrecting, StateSummarizing},
	StateIdentifying:  {StateCorrecting, StateSummarizing},
	StateCorrecting:   {StateSummarizing},
	StateSummarizing:  {StateSuccess, StatePartialSuccess},
}

// CanTransition reports whether from -> to is a legal move. FAILED and
// CANCELLED are reachable from every in-flight state.
func CanTransition(from, to State) bool {
	if from.InFlight() && (to == StateFailed || to == StateCancelled) {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// JobDescriptor is the queued request, as published by the API.
type JobDescriptor struct {
	JobID    string `json:"job_id" validate:"required"`
	TenantID string `json:"tenant_id" validate:"required"`
	OwnerID  string `json:"owner_id,omitempty"`
	// Sources are blob store paths of the uploaded audio files.
	Sources []string `json:"sources" validate:"required,min=1,dive,required"`
	// Order gives the concatenation order as indexes into Sources.
	Order    []int  `json:"order,omitempty" validate:"omitempty,dive,min=0"`
	Language string `json:"language,omitempty"`
	// SkipSpeakerIdentification leaves diarization labels unresolved.
	SkipSpeakerIdentification bool   `json:"skip_speaker_identification,omitempty"`
	Instructions              string `json:"instructions,omitempty"`
	// ArtifactTypes lists what to generate; the first is the primary.
	ArtifactTypes []llm.ArtifactType `json:"artifact_types,omitempty" validate:"omitempty,dive,oneof=minutes action_items"`
	Hotwords      []string           `json:"hotwords,omitempty"`
	// SourceDurations, when known upfront, allow an estimate before
	// transcription completes.
	SourceDurations []float64 `json:"source_durations,omitempty" validate:"omitempty,dive,gte=0"`
}

// ApplyDefaults fills zero fields.
func (d *JobDescriptor) ApplyDefaults() {
	if len(d.ArtifactTypes) == 0 {
		d.ArtifactTypes = []llm.ArtifactType{llm.TypeMinutes}
	}
}

// Validate checks the descriptor.
func (d *JobDescriptor) Validate() error {
	if err := validation.Validate(d); err != nil {
		return err
	}
	v := validation.New()
	seen := make(map[int]bool, len(d.Order))
	for _, i := range d.Order {
		v.Custom(i < len(d.Sources), "order", "index out of range")
		v.Custom(!seen[i], "order", fmt.Sprintf("index %d repeated", i))
		seen[i] = true
	}
	v.Custom(len(d.Order) == 0 || len(d.Order) == len(d.Sources), "order", "must list every source once")
	return v.Err()
}

// DecodeDescriptor parses, defaults and validates a queued descriptor.
func DecodeDescriptor(data []byte) (JobDescriptor, error) {
	var d JobDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return JobDescriptor{}, errors.InvalidInput("descriptor", err.Error())
	}
	d.ApplyDefaults()
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

// JobError is the classified failure recorded on a job.
type JobError struct {
	Code      errors.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Details   map[string]any   `json:"details,omitempty"`
	Retryable bool             `json:"retryable"`
}

// Job is the orchestrator's authoritative in-memory copy of a job. The
// repository only receives updates; it is never read back during a run.
type Job struct {
	JobDescriptor

	State    State
	Progress int
	// EstimatedSeconds is the remaining-time estimate; nil until the audio
	// duration is known.
	EstimatedSeconds *float64
	// Duration is the total audio duration in seconds, 0 until known.
	Duration float64
	Error    *JobError
}

// NewJob creates a PENDING job from a descriptor.
func NewJob(d JobDescriptor) *Job {
	d.ApplyDefaults()
	j := &Job{JobDescriptor: d, State: StatePending}
	for _, s := range d.SourceDurations {
		j.Duration += s
	}
	return j
}
