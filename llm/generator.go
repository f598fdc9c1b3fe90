package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/observability"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/resilience"
	"github.com/kbukum/meetingflow/transcription"
)

// Config configures the Generator.
type Config struct {
	// Temperature is sent when positive.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	// MaxTokens limits output; 0 means provider default.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`
	// MaxAttempts bounds in-place retries of retryable errors per backend.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	// MaxBackoff caps retry delays, including provider retry-after hints.
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 20 * time.Second
	}
}

// Request is the input to Generate.
type Request struct {
	JobID        string
	Type         ArtifactType
	Transcript   transcription.Transcript
	Instructions string
	Language     string
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(g *Generator) { g.log = log.WithComponent("llm") }
}

// WithFallbackHook is called whenever a backend failure moves generation on
// to the next backend.
func WithFallbackHook(fn func(ctx context.Context, from string)) Option {
	return func(g *Generator) { g.onFallback = fn }
}

// WithClock overrides time.Now for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator produces artifacts from transcripts with an ordered list of
// backends.
type Generator struct {
	cfg        Config
	keys       *keyquota.Manager
	backends   []Backend
	log        *logger.Logger
	onFallback func(ctx context.Context, from string)
	now        func() time.Time
}

// NewGenerator creates a Generator. backends are tried in order.
func NewGenerator(cfg Config, keys *keyquota.Manager, backends []Backend, opts ...Option) *Generator {
	cfg.ApplyDefaults()
	g := &Generator{
		cfg:      cfg,
		keys:     keys,
		backends: backends,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type generated struct {
	provider string
	resp     *CompletionResponse
}

// Generate produces one artifact. A content-policy refusal is returned
// immediately without trying further backends.
func (g *Generator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	if !req.Type.Valid() {
		return nil, errors.InvalidInput("type", "unknown artifact type "+string(req.Type))
	}
	if len(g.backends) == 0 {
		return nil, provider.ErrNoAttempts
	}
	log := g.log.WithFields(logger.Fields(logger.FieldJobID, req.JobID, "artifact", string(req.Type)))

	creq := CompletionRequest{
		SystemPrompt: systemPrompt(req.Type, req.Language, req.Instructions),
		Messages:     []Message{{Role: "user", Content: req.Transcript.Text()}},
		MaxTokens:    g.cfg.MaxTokens,
	}
	if g.cfg.Temperature > 0 {
		t := g.cfg.Temperature
		creq.Temperature = &t
	}
	format := "markdown"
	if req.Type == TypeActionItems {
		schema, err := SchemaFor[ActionItems](string(TypeActionItems))
		if err != nil {
			return nil, errors.Internal(err)
		}
		creq.Schema = schema
		format = "json"
	}

	attempts := make([]provider.Attempt[generated], 0, len(g.backends))
	for _, b := range g.backends {
		attempts = append(attempts, provider.Attempt[generated]{
			Name: b.Name(),
			Run: func(ctx context.Context) (generated, error) {
				resp, err := g.attempt(ctx, b, creq, log)
				return generated{provider: b.Name(), resp: resp}, err
			},
		})
	}

	out, err := provider.RunFallback(ctx, attempts, g.classifier(ctx, log))
	if err != nil {
		return nil, err
	}

	log.Info("artifact generated", logger.Fields(
		logger.FieldProvider, out.provider,
		"model", out.resp.Model,
		"tokens", out.resp.Usage.TotalTokens,
	))
	return &Artifact{
		ID:        uuid.NewString(),
		JobID:     req.JobID,
		Type:      req.Type,
		Format:    format,
		Content:   out.resp.Content,
		Provider:  out.provider,
		Model:     out.resp.Model,
		Usage:     out.resp.Usage,
		CreatedAt: g.now().UTC(),
	}, nil
}

// attempt runs one backend with in-place retries of retryable errors. Each
// try draws a credential from the backend's pool.
func (g *Generator) attempt(ctx context.Context, b Backend, creq CompletionRequest, log *logger.Logger) (*CompletionResponse, error) {
	ctx, span := observability.StartSpan(ctx, "llm."+b.Name())
	defer span.End()

	retry := resilience.RetryConfig{
		MaxAttempts:    g.cfg.MaxAttempts,
		InitialBackoff: g.cfg.InitialBackoff,
		MaxBackoff:     g.cfg.MaxBackoff,
		BackoffFactor:  2,
		Jitter:         0.1,
		RetryIf:        errors.IsRetryable,
		RetryAfter:     retryAfter,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("llm call retrying", logger.Fields(
				logger.FieldProvider, b.Name(),
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"backoff", backoff.String(),
			))
		},
	}
	resp, err := resilience.Retry(ctx, retry, func() (*CompletionResponse, error) {
		return keyquota.Do(ctx, g.keys, b.CredentialPool(), func(ctx context.Context, cred keyquota.Credential) (*CompletionResponse, error) {
			return b.Complete(ctx, cred.Secret, creq)
		})
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	if creq.Schema != nil {
		var items ActionItems
		if err := DecodeStructured(resp.Content, &items); err != nil {
			return nil, errors.Unknown(err).WithDetail("provider", b.Name())
		}
		canonical, err := json.Marshal(items)
		if err != nil {
			return nil, errors.Internal(err)
		}
		resp.Content = string(canonical)
	}
	return resp, nil
}

func (g *Generator) classifier(ctx context.Context, log *logger.Logger) provider.Classifier {
	return func(name string, err error) provider.Decision {
		decision := provider.TryNext
		if errors.CodeOf(err) == errors.ErrCodeLLMContentBlocked || stderrors.Is(err, context.Canceled) {
			decision = provider.Stop
		}
		log.Warn("llm backend failed", logger.Fields(
			logger.FieldProvider, name,
			logger.FieldError, err.Error(),
			"decision", decision.String(),
		))
		if decision == provider.TryNext && g.onFallback != nil {
			g.onFallback(ctx, name)
		}
		return decision
	}
}

func retryAfter(err error) time.Duration {
	if ae, ok := errors.AsAppError(err); ok {
		return ae.RetryAfter()
	}
	return 0
}
