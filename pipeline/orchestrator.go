package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/transcription"
)

// ErrCancelled is returned by Run when a cancellation request was observed.
var ErrCancelled = stderrors.New("pipeline: job cancelled")

// Dependencies are the Orchestrator's collaborators. Identifier and
// Directory are optional; without them identification is always skipped.
type Dependencies struct {
	Jobs        JobRepository
	Artifacts   ArtifactRepository
	Cancel      CancellationSignal
	Transcriber Transcriber
	Identifier  SpeakerIdentifier
	Directory   speaker.IdentityDirectory
	Corrector   Corrector
	Generator   ArtifactGenerator
}

func (d Dependencies) validate() error {
	switch {
	case d.Jobs == nil:
		return fmt.Errorf("pipeline: job repository is required")
	case d.Artifacts == nil:
		return fmt.Errorf("pipeline: artifact repository is required")
	case d.Transcriber == nil:
		return fmt.Errorf("pipeline: transcriber is required")
	case d.Corrector == nil:
		return fmt.Errorf("pipeline: corrector is required")
	case d.Generator == nil:
		return fmt.Errorf("pipeline: generator is required")
	}
	return nil
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = log.WithComponent("pipeline") }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator runs one job through transcription, identification,
// correction and generation, persisting every transition.
type Orchestrator struct {
	deps    Dependencies
	log     *logger.Logger
	metrics *observability.PipelineMetrics
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{deps: deps, log: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes job and returns the primary artifact. On failure the job
// is left FAILED with its classification recorded and the returned error is
// a *PipelineError. ErrCancelled means the job was cancelled.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (*llm.Artifact, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.End()
	observability.SetSpanAttribute(ctx, "job.id", job.JobID)

	log := o.log.WithFields(logger.Fields(logger.FieldJobID, job.JobID, logger.FieldTenantID, job.TenantID))
	job.ApplyDefaults()

	if job.State == StatePending {
		if err := o.transition(ctx, job, StateRunning, ProgressStart); err != nil {
			return nil, o.fail(ctx, job, StageTranscription, err)
		}
	}

	// Transcription: 0 -> 40.
	if err := o.transition(ctx, job, StateTranscribing, ProgressStart); err != nil {
		return nil, o.fail(ctx, job, StageTranscription, err)
	}
	var res *transcription.Result
	err := o.stage(ctx, StageTranscription, func(ctx context.Context) error {
		var err error
		res, err = o.deps.Transcriber.Transcribe(ctx, transcription.Request{
			JobID:    job.JobID,
			Sources:  job.Sources,
			Order:    job.Order,
			Language: job.Language,
			Hotwords: job.Hotwords,
		})
		if err != nil {
			return err
		}
		_, err = o.deps.Artifacts.SaveTranscript(ctx, job.JobID, res.Transcript, res.CanonicalAudio)
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, job, StageTranscription, err)
	}
	if res.Transcript.Duration > 0 {
		job.Duration = res.Transcript.Duration
	}
	if err := o.transition(ctx, job, StateTranscribing, ProgressTranscribed); err != nil {
		return nil, o.fail(ctx, job, StageTranscription, err)
	}
	log.Info("transcript ready", logger.Fields(
		"segments", len(res.Transcript.Segments),
		logger.FieldProvider, res.Transcript.Provider,
		"duration_s", res.Transcript.Duration,
	))

	if o.cancelled(ctx, job, log) {
		return nil, o.cancel(ctx, job, log)
	}

	// Identification: 40 -> 60, skipped when nothing can be resolved.
	mapping := map[string]string{}
	if identities := o.identities(ctx, job, log); len(identities) > 0 {
		if err := o.transition(ctx, job, StateIdentifying, ProgressTranscribed); err != nil {
			return nil, o.fail(ctx, job, StageIdentification, err)
		}
		_ = o.stage(ctx, StageIdentification, func(ctx context.Context) error {
			mapping = o.deps.Identifier.Identify(ctx, res.Transcript, res.CanonicalAudio, identities)
			return nil
		})
		if err := o.transition(ctx, job, StateIdentifying, ProgressIdentified); err != nil {
			return nil, o.fail(ctx, job, StageIdentification, err)
		}
		log.Info("speakers identified", logger.Fields("resolved", len(mapping), "labels", len(res.Transcript.Labels())))
	}

	// Correction: 60 -> 70, skipped without a mapping.
	corrected := res.Transcript
	if len(mapping) > 0 {
		if err := o.transition(ctx, job, StateCorrecting, ProgressIdentified); err != nil {
			return nil, o.fail(ctx, job, StageCorrection, err)
		}
		_ = o.stage(ctx, StageCorrection, func(context.Context) error {
			corrected = o.deps.Corrector.Correct(res.Transcript, mapping)
			return nil
		})
		if err := o.transition(ctx, job, StateCorrecting, ProgressCorrected); err != nil {
			return nil, o.fail(ctx, job, StageCorrection, err)
		}
	}

	if o.cancelled(ctx, job, log) {
		return nil, o.cancel(ctx, job, log)
	}

	// Generation: 70 -> 100.
	if err := o.transition(ctx, job, StateSummarizing, ProgressCorrected); err != nil {
		return nil, o.fail(ctx, job, StageGeneration, err)
	}
	language := job.Language
	if language == "" {
		language = corrected.Language
	}

	var primary *llm.Artifact
	var secondaryErr error
	n := len(job.ArtifactTypes)
	for i, typ := range job.ArtifactTypes {
		var art *llm.Artifact
		err := o.stage(ctx, StageGeneration, func(ctx context.Context) error {
			var err error
			art, err = o.deps.Generator.Generate(ctx, llm.Request{
				JobID:        job.JobID,
				Type:         typ,
				Transcript:   corrected,
				Instructions: job.Instructions,
				Language:     language,
			})
			if err != nil {
				return err
			}
			_, err = o.deps.Artifacts.SaveArtifact(ctx, art)
			return err
		})
		if err != nil {
			if i == 0 {
				return nil, o.fail(ctx, job, StageGeneration, err)
			}
			log.Warn("secondary artifact failed", logger.Fields("artifact", string(typ), logger.FieldError, err.Error()))
			secondaryErr = err
			continue
		}
		if i == 0 {
			primary = art
		}
		if i < n-1 {
			p := ProgressCorrected + (ProgressDone-ProgressCorrected)*(i+1)/n
			if err := o.transition(ctx, job, StateSummarizing, p); err != nil {
				return nil, o.fail(ctx, job, StageGeneration, err)
			}
		}
	}

	final := StateSuccess
	if secondaryErr != nil {
		je := Classify(secondaryErr)
		job.Error = &je
		if err := o.deps.Jobs.UpdateError(ctx, job.JobID, je); err != nil {
			log.Error("recording partial failure failed", logger.ErrorFields("update_error", err))
		}
		final = StatePartialSuccess
	}
	if err := o.transition(ctx, job, final, ProgressDone); err != nil {
		return nil, o.fail(ctx, job, StageGeneration, err)
	}
	o.metrics.RecordJob(ctx, string(final), codeOf(job.Error))
	log.Info("job finished", logger.Fields(logger.FieldState, string(final), "artifact_id", primary.ID))
	return primary, nil
}

// Fail marks job FAILED with err's classification, attributing it to the
// stage the job was in. It is used for failures outside Run, such as a
// recovered panic.
func (o *Orchestrator) Fail(ctx context.Context, job *Job, err error) *PipelineError {
	return o.fail(ctx, job, stageOf(job.State), err)
}

func (o *Orchestrator) fail(ctx context.Context, job *Job, stage Stage, cause error) *PipelineError {
	je := Classify(cause)
	job.Error = &je
	perr := &PipelineError{Stage: stage, Classification: je.Code, Retryable: je.Retryable, Err: cause}

	// Persist even if the job context was cancelled.
	ctx = context.WithoutCancel(ctx)
	observability.SetSpanError(ctx, perr)
	log := o.log.WithFields(logger.Fields(
		logger.FieldJobID, job.JobID,
		logger.FieldStage, string(stage),
		logger.FieldProgress, job.Progress,
	))

	if err := o.deps.Jobs.UpdateError(ctx, job.JobID, je); err != nil {
		log.Error("recording job error failed", logger.ErrorFields("update_error", err))
	}
	if !job.State.Terminal() {
		job.State = StateFailed
		job.EstimatedSeconds = nil
		if err := o.deps.Jobs.UpdateStatus(ctx, job.JobID, StatusUpdate{
			State:    StateFailed,
			Progress: job.Progress,
			Error:    &je,
		}); err != nil {
			log.Error("recording job failure failed", logger.ErrorFields("update_status", err))
		}
	}
	o.metrics.RecordJob(ctx, string(StateFailed), string(je.Code))
	log.Error("job failed", logger.Fields(
		"error_code", string(je.Code),
		"retryable", je.Retryable,
		logger.FieldError, cause.Error(),
	))
	return perr
}

func (o *Orchestrator) cancel(ctx context.Context, job *Job, log *logger.Logger) error {
	if err := o.transition(ctx, job, StateCancelled, job.Progress); err != nil {
		log.Error("recording cancellation failed", logger.ErrorFields("update_status", err))
	}
	o.metrics.RecordJob(ctx, string(StateCancelled), "")
	log.Info("job cancelled", logger.Fields(logger.FieldProgress, job.Progress))
	return ErrCancelled
}

// transition moves job to state at progress and persists it. Progress never
// moves backwards. Staying in the same state records progress only.
func (o *Orchestrator) transition(ctx context.Context, job *Job, to State, progress int) error {
	if to != job.State && !CanTransition(job.State, to) {
		return errors.Internal(fmt.Errorf("illegal transition %s -> %s", job.State, to))
	}
	if progress < job.Progress {
		progress = job.Progress
	}
	job.State = to
	job.Progress = progress
	job.EstimatedSeconds = Estimate(job.Duration, progress)

	if err := o.deps.Jobs.UpdateStatus(ctx, job.JobID, StatusUpdate{
		State:            to,
		Progress:         progress,
		EstimatedSeconds: job.EstimatedSeconds,
		Error:            job.Error,
	}); err != nil {
		return err
	}
	o.log.Debug("job status", logger.Fields(
		logger.FieldJobID, job.JobID,
		logger.FieldState, string(to),
		logger.FieldProgress, progress,
	))
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "pipeline."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		observability.SetSpanError(ctx, err)
	}
	o.metrics.RecordStage(ctx, string(stage), outcome, time.Since(start))
	return err
}

// cancelled checks and consumes the cancellation flag. A failing signal is
// treated as "not cancelled".
func (o *Orchestrator) cancelled(ctx context.Context, job *Job, log *logger.Logger) bool {
	if o.deps.Cancel == nil {
		return false
	}
	ok, err := o.deps.Cancel.Cancelled(ctx, job.JobID)
	if err != nil {
		log.Warn("cancellation check failed", logger.ErrorFields("cancelled", err))
		return false
	}
	return ok
}

// identities returns the population to identify against, or nil when
// identification should be skipped.
func (o *Orchestrator) identities(ctx context.Context, job *Job, log *logger.Logger) []speaker.Identity {
	if job.SkipSpeakerIdentification || o.deps.Identifier == nil || o.deps.Directory == nil {
		return nil
	}
	ids, err := o.deps.Directory.KnownIdentities(ctx, job.TenantID)
	if err != nil {
		log.Warn("identification skipped", logger.ErrorFields("known_identities", err))
		return nil
	}
	return ids
}

func stageOf(s State) Stage {
	switch s {
	case StateIdentifying:
		return StageIdentification
	case StateCorrecting:
		return StageCorrection
	case StateSummarizing:
		return StageGeneration
	default:
		return StageTranscription
	}
}

func codeOf(e *JobError) string {
	if e == nil {
		return ""
	}
	return string(e.Code)
}
