// Package openai is the primary LLM backend, built on the OpenAI Responses API.
package openai

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
)

const (
	// ProviderName is the registered backend name.
	ProviderName = "openai"
	// CredentialPool is shared with the Whisper transcription backend.
	CredentialPool = "openai"

	defaultModel   = "gpt-4.1-mini"
	defaultTimeout = 2 * time.Minute
)

// Config holds configuration for the OpenAI backend.
type Config struct {
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

// Backend implements llm.Backend.
type Backend struct {
	cfg    Config
	client oai.Client
	keys   *keyquota.Manager
	log    *logger.Logger
}

// New creates the backend. keys is consulted only by IsAvailable; the
// generator hands a credential to every Complete call.
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
		cfg:    cfg,
		client: oai.NewClient(opts...),
		keys:   keys,
		log:    log.WithComponent("llm." + ProviderName),
	}
}

// Factory builds the backend from registry settings.
func Factory(keys *keyquota.Manager, log *logger.Logger) provider.Factory[llm.Backend] {
	return func(s provider.Settings) (llm.Backend, error) {
		cfg := Config{
			BaseURL: s.String("base_url"),
			Model:   s.String("model"),
			Timeout: s.Duration("timeout"),
		}
		return New(cfg, keys, log), nil
	}
}

func (b *Backend) Name() string           { return ProviderName }
func (b *Backend) CredentialPool() string { return CredentialPool }

// IsAvailable reports whether the OpenAI pool has credentials.
func (b *Backend) IsAvailable(_ context.Context) bool {
	for _, p := range b.keys.Providers() {
		if p == CredentialPool {
			return true
		}
	}
	return false
}

// Complete sends req through the Responses API.
func (b *Backend) Complete(ctx context.Context, apiKey string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}

	items := make(responses.ResponseInputParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		if m.Role == "assistant" {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}

	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
		Model: shared.ResponsesModel(model),
	}
	if req.SystemPrompt != "" {
		params.Instructions = oai.String(req.SystemPrompt)
	}
	if req.Temperature != nil {
		params.Temperature = oai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = oai.Int(int64(req.MaxTokens))
	}
	if req.Schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.Definition,
					Strict: oai.Bool(true),
				},
			},
		}
	}

	resp, err := b.client.Responses.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, toAppError(err)
	}

	if string(resp.Status) == "incomplete" && resp.IncompleteDetails.Reason == "content_filter" {
		return nil, errors.LLMContentBlocked(ProviderName, "content_filter")
	}
	if refusal := refusalOf(resp); refusal != "" {
		return nil, errors.LLMContentBlocked(ProviderName, refusal)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return nil, errors.Unknown(stderrors.New("openai: empty response output"))
	}
	b.log.Debug("response received", logger.Fields(
		"model", string(resp.Model),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	))

	return &llm.CompletionResponse{
		Content: text,
		Model:   string(resp.Model),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func refusalOf(resp *responses.Response) string {
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "refusal" {
				if part.Refusal == "" {
					return "refusal"
				}
				return part.Refusal
			}
		}
	}
	return ""
}

// toAppError maps OpenAI client errors onto the taxonomy.
func toAppError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NetworkTimeout(ProviderName, err)
	}
	var apiErr *oai.Error
	if !stderrors.As(err, &apiErr) {
		if stderrors.Is(err, context.Canceled) {
			return err
		}
		return errors.NetworkTimeout(ProviderName, err)
	}
	text := err.Error()
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return errors.AuthFailed(ProviderName, err)
	case apiErr.StatusCode == http.StatusTooManyRequests && (apiErr.Code == "insufficient_quota" || strings.Contains(text, "insufficient_quota")):
		return errors.QuotaExceeded(CredentialPool).WithCause(err)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimited(CredentialPool, 0).WithCause(err)
	case apiErr.StatusCode == http.StatusBadRequest && (apiErr.Code == "content_policy_violation" || strings.Contains(text, "content_policy_violation")):
		return errors.LLMContentBlocked(ProviderName, "content_policy_violation").WithCause(err)
	case apiErr.StatusCode >= 500:
		return errors.NetworkTimeout(ProviderName, err)
	default:
		return errors.Unknown(err)
	}
}
