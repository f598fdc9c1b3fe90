// Package voiceprint is the identity-search backend: a REST service that
// scores a voice sample against enrolled voiceprints. API keys come from the
// keyquota pool registered under ProviderName.
package voiceprint

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/httpclient"
	"github.com/kbukum/meetingflow/httpclient/rest"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
	"github.com/kbukum/meetingflow/resilience"
	"github.com/kbukum/meetingflow/speaker"
)

// ProviderName is the registered name.
const ProviderName = "voiceprint"

// Config holds connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// MaxAttempts bounds retries of transient failures per search.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
}

type searchRequest struct {
	AudioURL      string   `json:"audio_url"`
	VoiceprintIDs []string `json:"voiceprint_ids"`
}

type searchResponse struct {
	Matches []struct {
		VoiceprintID string  `json:"voiceprint_id"`
		Score        float64 `json:"score"`
	} `json:"matches"`
}

type client struct {
	rest *rest.Client
	keys *keyquota.Manager
}

// New returns a Searcher with logging and retry of transient failures. Each
// attempt acquires its own credential, so a throttled key is skipped on retry.
// Pool-wide unavailability is returned without retrying.
func New(cfg Config, keys *keyquota.Manager, log *logger.Logger) (speaker.Searcher, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	rc, err := rest.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w", err)
	}
	c := &client{rest: rc, keys: keys}

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		BackoffFactor:  2,
		Jitter:         0.1,
		RetryIf:        retryable,
		RetryAfter:     retryAfter,
	}
	chain := provider.Chain(
		provider.WithTracing[speaker.SearchRequest, []speaker.Candidate]("speaker"),
		provider.WithLogging[speaker.SearchRequest, []speaker.Candidate](log.WithComponent(ProviderName)),
		provider.WithRetry[speaker.SearchRequest, []speaker.Candidate](retry),
	)
	return chain(provider.Func(ProviderName, c.search)), nil
}

func (c *client) search(ctx context.Context, req speaker.SearchRequest) ([]speaker.Candidate, error) {
	byVoiceprint := make(map[string]speaker.Identity, len(req.Identities))
	ids := make([]string, 0, len(req.Identities))
	for _, id := range req.Identities {
		byVoiceprint[id.VoiceprintID] = id
		ids = append(ids, id.VoiceprintID)
	}

	body := searchRequest{AudioURL: req.SampleURL, VoiceprintIDs: ids}
	resp, err := keyquota.Do(ctx, c.keys, ProviderName, func(ctx context.Context, cred keyquota.Credential) (*rest.Response[searchResponse], error) {
		resp, err := rest.Post[searchResponse](ctx, c.rest, "/v1/voiceprints/search", body,
			rest.WithAuth(httpclient.Bearer(cred.Secret)))
		if err != nil {
			if httpclient.IsAuth(err) {
				return nil, errors.VoiceprintAuthFailed(err)
			}
			return nil, httpclient.ToAppError(err, ProviderName)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]speaker.Candidate, 0, len(resp.Data.Matches))
	for _, m := range resp.Data.Matches {
		identity, ok := byVoiceprint[m.VoiceprintID]
		if !ok {
			continue
		}
		out = append(out, speaker.Candidate{Identity: identity, Score: m.Score})
	}
	return out, nil
}

func retryable(err error) bool {
	return errors.IsRetryable(err) && !keyquota.Unavailable(err)
}

func retryAfter(err error) time.Duration {
	if ae, ok := errors.AsAppError(err); ok {
		return ae.RetryAfter()
	}
	return 0
}
