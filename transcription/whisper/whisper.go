// Package whisper is the fallback transcription backend built on the OpenAI
// audio transcription API.
//
// The API is synchronous and returns text without diarization. Submit runs
// the request and parks the result; Poll hands it back on the first call.
package whisper

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/transcription"
)

const (
	// ProviderName is the registered backend name.
	ProviderName = "whisper"
	// CredentialPool is the key-quota pool the backend draws from; it is
	// shared with the OpenAI LLM backend.
	CredentialPool = "openai"

	defaultModel   = "whisper-1"
	defaultTimeout = 10 * time.Minute
)

// Config holds configuration for the Whisper transcription backend.
type Config struct {
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Backend implements transcription.Backend.
type Backend struct {
	cfg    Config
	client openai.Client
	keys   *keyquota.Manager
	log    *logger.Logger

	mu      sync.Mutex
	results map[string]*transcription.Outcome
}

// New creates the backend.
func New(cfg Config, keys *keyquota.Manager, log *logger.Logger) *Backend {
	cfg.ApplyDefaults()
	opts := []option.RequestOption{option.WithRequestTimeout(cfg.Timeout), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Backend{
		cfg:     cfg,
		client:  openai.NewClient(opts...),
		keys:    keys,
		log:     log.WithComponent("transcription." + ProviderName),
		results: make(map[string]*transcription.Outcome),
	}
}

// Factory builds the backend from registry settings.
func Factory(keys *keyquota.Manager, log *logger.Logger) provider.Factory[transcription.Backend] {
	return func(s provider.Settings) (transcription.Backend, error) {
		cfg := Config{
			BaseURL: s.String("base_url"),
			Model:   s.String("model"),
			Timeout: s.Duration("timeout"),
		}
		return New(cfg, keys, log), nil
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// IsAvailable reports whether the OpenAI pool has credentials.
func (b *Backend) IsAvailable(_ context.Context) bool {
	for _, p := range b.keys.Providers() {
		if p == CredentialPool {
			return true
		}
	}
	return false
}

// Submit uploads sub.AudioPath and waits for the transcription.
func (b *Backend) Submit(ctx context.Context, sub transcription.Submission) (string, error) {
	out, err := keyquota.Do(ctx, b.keys, CredentialPool, func(ctx context.Context, cred keyquota.Credential) (*transcription.Outcome, error) {
		return b.transcribe(ctx, cred, sub)
	})
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.results[id] = out
	b.mu.Unlock()
	return id, nil
}

// Poll returns the parked result. Each id can be polled once.
func (b *Backend) Poll(_ context.Context, id string) (*transcription.Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out, ok := b.results[id]
	if !ok {
		return nil, errors.NotFound("whisper transcription", id)
	}
	delete(b.results, id)
	return out, nil
}

func (b *Backend) transcribe(ctx context.Context, cred keyquota.Credential, sub transcription.Submission) (*transcription.Outcome, error) {
	f, err := os.Open(sub.AudioPath)
	if err != nil {
		return nil, errors.AudioFormat("canonical audio unreadable", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(b.cfg.Model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if sub.Language != "" {
		params.Language = param.NewOpt(sub.Language)
	}
	if prompt := hotwordPrompt(sub.Hotwords); prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	start := time.Now()
	resp, err := b.client.Audio.Transcriptions.New(ctx, params, option.WithAPIKey(cred.Secret))
	if err != nil {
		return nil, toAppError(err)
	}
	b.log.Debug("transcription returned", logger.Fields(
		logger.FieldCredential, cred.ID,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))

	return &transcription.Outcome{
		Done:     true,
		Text:     strings.TrimSpace(resp.Text),
		Language: sub.Language,
	}, nil
}

func hotwordPrompt(words []string) string {
	var out []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// toAppError maps OpenAI client errors onto the taxonomy.
func toAppError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NetworkTimeout(ProviderName, err)
	}
	var apiErr *openai.Error
	if !stderrors.As(err, &apiErr) {
		if stderrors.Is(err, context.Canceled) {
			return err
		}
		return errors.NetworkTimeout(ProviderName, err)
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return errors.AuthFailed(ProviderName, err)
	case apiErr.StatusCode == http.StatusTooManyRequests && isQuota(apiErr, err):
		return errors.QuotaExceeded(CredentialPool).WithCause(err)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimited(CredentialPool, 0).WithCause(err)
	case apiErr.StatusCode == http.StatusBadRequest:
		return errors.AudioFormat(apiErr.Message, err)
	case apiErr.StatusCode >= 500:
		return errors.NetworkTimeout(ProviderName, err)
	default:
		return errors.Unknown(err)
	}
}

func isQuota(apiErr *openai.Error, err error) bool {
	return apiErr.Code == "insufficient_quota" || strings.Contains(err.Error(), "insufficient_quota")
}
