// Package assembly is the primary transcription backend: a hosted
// submit/poll speech-to-text API with speaker diarization.
package assembly

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/httpclient"
	"github.com/kbukum/meetingflow/httpclient/rest"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/transcription"
)

// ProviderName is the registered name and the key-quota pool name.
const ProviderName = "assembly"

const (
	defaultBaseURL = "https://api.assemblyai.com"
	defaultTimeout = 30 * time.Second
)

// Config holds configuration for the backend.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// SpeechModel is passed through when set.
	SpeechModel string `yaml:"speech_model" mapstructure:"speech_model"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Backend implements transcription.Backend and transcription.Releaser.
type Backend struct {
	cfg    Config
	client *rest.Client
	keys   *keyquota.Manager
	log    *logger.Logger

	mu sync.Mutex
	// jobs pins each submitted job to the credential that created it.
	jobs map[string]keyquota.Credential
}

var _ transcription.Releaser = (*Backend)(nil)

// New creates the backend. Credentials are drawn from keys under ProviderName.
func New(cfg Config, keys *keyquota.Manager, log *logger.Logger) (*Backend, error) {
	cfg.ApplyDefaults()
	client, err := rest.New(httpclient.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Backend{
		cfg:    cfg,
		client: client,
		keys:   keys,
		log:    log.WithComponent("transcription." + ProviderName),
		jobs:   make(map[string]keyquota.Credential),
	}, nil
}

// Factory builds the backend from registry settings.
func Factory(keys *keyquota.Manager, log *logger.Logger) provider.Factory[transcription.Backend] {
	return func(s provider.Settings) (transcription.Backend, error) {
		cfg := Config{
			BaseURL:     s.String("base_url"),
			Timeout:     s.Duration("timeout"),
			SpeechModel: s.String("speech_model"),
		}
		return New(cfg, keys, log)
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// IsAvailable reports whether any credential is registered for the backend.
func (b *Backend) IsAvailable(_ context.Context) bool {
	for _, p := range b.keys.Providers() {
		if p == ProviderName {
			return true
		}
	}
	return false
}

// --- wire types ---

type submitRequest struct {
	AudioURL       string   `json:"audio_url"`
	SpeakerLabels  bool     `json:"speaker_labels"`
	LanguageCode   string   `json:"language_code,omitempty"`
	LanguageDetect bool     `json:"language_detection,omitempty"`
	WordBoost      []string `json:"word_boost,omitempty"`
	SpeechModel    string   `json:"speech_model,omitempty"`
}

type transcriptResponse struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error"`
	Text          string      `json:"text"`
	LanguageCode  string      `json:"language_code"`
	AudioDuration float64     `json:"audio_duration"`
	Utterances    []utterance `json:"utterances"`
}

type utterance struct {
	Speaker    string  `json:"speaker"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// Submit creates a transcription job.
func (b *Backend) Submit(ctx context.Context, sub transcription.Submission) (string, error) {
	body := submitRequest{
		AudioURL:       sub.AudioURL,
		SpeakerLabels:  sub.SpeakerLabels,
		LanguageCode:   sub.Language,
		LanguageDetect: sub.Language == "",
		WordBoost:      sub.Hotwords,
		SpeechModel:    b.cfg.SpeechModel,
	}

	type submitted struct {
		id   string
		cred keyquota.Credential
	}
	out, err := keyquota.Do(ctx, b.keys, ProviderName, func(ctx context.Context, cred keyquota.Credential) (submitted, error) {
		resp, err := rest.Post[transcriptResponse](ctx, b.client, "/v2/transcript", body, b.auth(cred))
		if err != nil {
			return submitted{}, httpclient.ToAppError(err, ProviderName)
		}
		if resp.Data.ID == "" {
			return submitted{}, errors.Unknown(fmt.Errorf("assembly: submit returned no transcript id"))
		}
		return submitted{id: resp.Data.ID, cred: cred}, nil
	})
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.jobs[out.id] = out.cred
	b.mu.Unlock()
	b.log.Debug("transcript submitted", logger.Fields("transcript_id", out.id, logger.FieldCredential, out.cred.ID))
	return out.id, nil
}

// Poll fetches the job state. Completed jobs are converted to segments with
// second-based timestamps.
func (b *Backend) Poll(ctx context.Context, id string) (*transcription.Outcome, error) {
	b.mu.Lock()
	cred, ok := b.jobs[id]
	b.mu.Unlock()
	if !ok {
		return nil, errors.NotFound("assembly transcript", id)
	}

	resp, err := rest.Get[transcriptResponse](ctx, b.client, "/v2/transcript/"+id, b.auth(cred))
	if err != nil {
		appErr := httpclient.ToAppError(err, ProviderName)
		if f, fault := keyquota.Classify(appErr); fault && !errors.IsRetryable(appErr) {
			b.keys.RecordFailure(cred, f)
			b.forget(id)
		}
		return nil, appErr
	}

	switch resp.Data.Status {
	case statusQueued, statusProcessing:
		return &transcription.Outcome{}, nil
	case statusCompleted:
		b.forget(id)
		return toOutcome(&resp.Data), nil
	case statusError:
		b.forget(id)
		return nil, statusErr(resp.Data.Error)
	default:
		return nil, errors.Unknown(fmt.Errorf("assembly: unexpected status %q", resp.Data.Status))
	}
}

func (b *Backend) auth(cred keyquota.Credential) rest.RequestOption {
	return rest.WithAuth(httpclient.Header("Authorization", cred.Secret))
}

// Release drops the credential pinned to id.
func (b *Backend) Release(id string) { b.forget(id) }

func (b *Backend) forget(id string) {
	b.mu.Lock()
	delete(b.jobs, id)
	b.mu.Unlock()
}

// statusErr maps the job's error string onto the taxonomy.
func statusErr(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "sensitive"), strings.Contains(lower, "content safety"):
		return errors.SensitiveContent(ProviderName).WithDetail("reason", msg)
	case strings.Contains(lower, "audio"), strings.Contains(lower, "decode"), strings.Contains(lower, "format"):
		return errors.AudioFormat(msg, nil)
	default:
		return errors.Unknown(fmt.Errorf("assembly: %s", msg))
	}
}

func toOutcome(r *transcriptResponse) *transcription.Outcome {
	out := &transcription.Outcome{
		Done:     true,
		Text:     r.Text,
		Language: r.LanguageCode,
		Duration: r.AudioDuration,
		Segments: make([]transcription.Segment, 0, len(r.Utterances)),
	}
	for _, u := range r.Utterances {
		out.Segments = append(out.Segments, transcription.Segment{
			Start:      float64(u.Start) / 1000,
			End:        float64(u.End) / 1000,
			Text:       u.Text,
			Speaker:    "Speaker " + u.Speaker,
			Confidence: u.Confidence,
		})
	}
	return out
}
