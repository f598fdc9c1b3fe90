// Package admin is the operator HTTP API: submit, inspect and cancel jobs,
// read artifacts, manage the speaker identity directory and take
// credentials in and out of rotation.
package admin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/server"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/transcription"
	"github.com/kbukum/meetingflow/validation"
)

// Jobs reads job state.
type Jobs interface {
	Get(ctx context.Context, jobID string) (*pipeline.Job, error)
}

// Canceller records a cancellation request for the orchestrator to observe.
type Canceller interface {
	Request(ctx context.Context, jobID string) error
}

// Artifacts reads stored artifacts and transcripts.
type Artifacts interface {
	Latest(ctx context.Context, jobID string, typ llm.ArtifactType) (*pipeline.ArtifactVersion, error)
	LatestTranscript(ctx context.Context, jobID string) (*transcription.Transcript, int, error)
}

// Identities writes the speaker identity directory.
type Identities interface {
	Upsert(ctx context.Context, tenantID string, id speaker.Identity) error
}

// Credentials is the operator surface of keyquota.Manager.
type Credentials interface {
	Providers() []string
	Snapshot(provider string) []keyquota.Snapshot
	Disable(provider, id string) error
	Enable(provider, id string) error
}

// Enqueuer submits descriptors to the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, d pipeline.JobDescriptor) error
}

// Deps are the handler's collaborators. All are required.
type Deps struct {
	Jobs        Jobs
	Canceller   Canceller
	Artifacts   Artifacts
	Identities  Identities
	Credentials Credentials
	Queue       Enqueuer
}

// Handler serves the admin routes.
type Handler struct {
	deps Deps
	log  *logger.Logger

	streamPoll      time.Duration
	streamKeepAlive time.Duration
}

// NewHandler validates deps and creates a Handler.
func NewHandler(deps Deps, log *logger.Logger) (*Handler, error) {
	err := validation.New().
		Custom(deps.Jobs != nil, "jobs", "is required").
		Custom(deps.Canceller != nil, "canceller", "is required").
		Custom(deps.Artifacts != nil, "artifacts", "is required").
		Custom(deps.Identities != nil, "identities", "is required").
		Custom(deps.Credentials != nil, "credentials", "is required").
		Custom(deps.Queue != nil, "queue", "is required").
		Err()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		deps:            deps,
		log:             log.WithComponent("admin"),
		streamPoll:      defaultStreamPoll,
		streamKeepAlive: defaultStreamKeepAlive,
	}, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	jobs := r.Group("/jobs")
	jobs.POST("", h.SubmitJob)
	jobs.GET("/:id", h.GetJob)
	jobs.GET("/:id/events", h.StreamJob)
	jobs.POST("/:id/cancel", h.CancelJob)
	jobs.GET("/:id/transcript", h.GetTranscript)
	jobs.GET("/:id/artifacts/:type", h.GetArtifact)

	r.PUT("/tenants/:tenant/identities/:id", h.PutIdentity)

	creds := r.Group("/credentials")
	creds.GET("", h.ListCredentials)
	creds.GET("/:provider", h.GetCredentials)
	creds.POST("/:provider/:id/disable", h.DisableCredential)
	creds.POST("/:provider/:id/enable", h.EnableCredential)
}

// JobView is the API shape of a job.
type JobView struct {
	JobID            string             `json:"job_id"`
	TenantID         string             `json:"tenant_id"`
	State            pipeline.State     `json:"state"`
	Progress         int                `json:"progress"`
	EstimatedSeconds *float64           `json:"estimated_seconds"`
	DurationSeconds  float64            `json:"duration_seconds,omitempty"`
	ArtifactTypes    []llm.ArtifactType `json:"artifact_types"`
	Error            *pipeline.JobError `json:"error,omitempty"`
}

func viewOf(j *pipeline.Job) JobView {
	return JobView{
		JobID:            j.JobID,
		TenantID:         j.TenantID,
		State:            j.State,
		Progress:         j.Progress,
		EstimatedSeconds: j.EstimatedSeconds,
		DurationSeconds:  j.Duration,
		ArtifactTypes:    j.ArtifactTypes,
		Error:            j.Error,
	}
}

// SubmitJob enqueues the descriptor in the body and answers 202.
func (h *Handler) SubmitJob(c *gin.Context) {
	var d pipeline.JobDescriptor
	if err := c.ShouldBindJSON(&d); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	d.ApplyDefaults()
	if err := h.deps.Queue.Enqueue(c.Request.Context(), d); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("job submitted", logger.Fields(logger.FieldJobID, d.JobID, logger.FieldTenantID, d.TenantID))
	server.RespondAccepted(c, gin.H{"job_id": d.JobID})
}

// GetJob returns the job's state.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.deps.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, viewOf(job))
}

// CancelJob records a cancellation request. A job that already ended
// answers 409.
func (h *Handler) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	job, err := h.deps.Jobs.Get(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if job.State.Terminal() {
		server.RespondWithError(c, errors.Conflict("job "+id+" already ended in "+string(job.State)))
		return
	}
	if err := h.deps.Canceller.Request(ctx, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("cancellation requested", logger.Fields(logger.FieldJobID, id, logger.FieldState, string(job.State)))
	server.RespondAccepted(c, gin.H{"job_id": id, "state": job.State})
}

// GetTranscript returns the latest transcript version.
func (h *Handler) GetTranscript(c *gin.Context) {
	t, version, err := h.deps.Artifacts.LatestTranscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"version": version, "transcript": t})
}

// GetArtifact returns the latest version of one artifact type.
func (h *Handler) GetArtifact(c *gin.Context) {
	typ := llm.ArtifactType(c.Param("type"))
	if !typ.Valid() {
		server.RespondWithError(c, errors.InvalidInput("type", "unknown artifact type "+string(typ)))
		return
	}
	a, err := h.deps.Artifacts.Latest(c.Request.Context(), c.Param("id"), typ)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, a)
}

type identityBody struct {
	Name         string `json:"name" binding:"required"`
	VoiceprintID string `json:"voiceprint_id"`
}

// PutIdentity creates or replaces a directory entry.
func (h *Handler) PutIdentity(c *gin.Context) {
	var body identityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	id := speaker.Identity{ID: c.Param("id"), Name: body.Name, VoiceprintID: body.VoiceprintID}
	if err := h.deps.Identities.Upsert(c.Request.Context(), c.Param("tenant"), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, id)
}

// CredentialView is one credential in API responses.
type CredentialView struct {
	Provider string `json:"provider"`
	keyquota.Snapshot
	RetryInSeconds float64 `json:"retry_in_seconds,omitempty"`
}

func (h *Handler) views(provider string, now time.Time) []CredentialView {
	snaps := h.deps.Credentials.Snapshot(provider)
	out := make([]CredentialView, 0, len(snaps))
	for _, s := range snaps {
		v := CredentialView{Provider: provider, Snapshot: s}
		if !s.CooldownUntil.IsZero() && s.CooldownUntil.After(now) {
			v.RetryInSeconds = s.CooldownUntil.Sub(now).Round(time.Second).Seconds()
		}
		out = append(out, v)
	}
	return out
}

// ListCredentials returns every pool's state.
func (h *Handler) ListCredentials(c *gin.Context) {
	now := time.Now()
	out := []CredentialView{}
	for _, p := range h.deps.Credentials.Providers() {
		out = append(out, h.views(p, now)...)
	}
	server.RespondOK(c, out)
}

// GetCredentials returns one pool's state.
func (h *Handler) GetCredentials(c *gin.Context) {
	provider := c.Param("provider")
	views := h.views(provider, time.Now())
	if len(views) == 0 {
		server.RespondWithError(c, errors.NotFound("credential pool", provider))
		return
	}
	server.RespondOK(c, views)
}

// DisableCredential takes a credential out of rotation.
func (h *Handler) DisableCredential(c *gin.Context) {
	h.setCredential(c, h.deps.Credentials.Disable, "disabled")
}

// EnableCredential returns a credential to rotation.
func (h *Handler) EnableCredential(c *gin.Context) {
	h.setCredential(c, h.deps.Credentials.Enable, "enabled")
}

func (h *Handler) setCredential(c *gin.Context, op func(provider, id string) error, verb string) {
	provider, id := c.Param("provider"), c.Param("id")
	if err := op(provider, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("credential "+verb, logger.Fields(logger.FieldProvider, provider, "credential", id))
	server.RespondOK(c, h.views(provider, time.Now()))
}
