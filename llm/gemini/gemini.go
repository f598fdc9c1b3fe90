// Package gemini is the fallback LLM backend, built on the Google Gen AI SDK.
package gemini

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/provider"
)

const (
	// ProviderName is the registered backend name and key pool.
	ProviderName = "gemini"

	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 2 * time.Minute
)

// Finish reasons that mean the candidate was withheld by a safety filter.
var blockedFinish = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

// Config holds configuration for the Gemini backend.
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

// Backend implements llm.Backend. The SDK binds an API key to a client, so
// one client is kept per credential.
type Backend struct {
	cfg  Config
	keys *keyquota.Manager
	log  *logger.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// New creates the backend.
func New(cfg Config, keys *keyquota.Manager, log *logger.Logger) *Backend {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Backend{
		cfg:     cfg,
		keys:    keys,
		log:     log.WithComponent("llm." + ProviderName),
		clients: make(map[string]*genai.Client),
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
func (b *Backend) CredentialPool() string { return ProviderName }

// IsAvailable reports whether the Gemini pool has credentials.
func (b *Backend) IsAvailable(_ context.Context) bool {
	for _, p := range b.keys.Providers() {
		if p == ProviderName {
			return true
		}
	}
	return false
}

func (b *Backend) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[apiKey]; ok {
		return c, nil
	}
	timeout := b.cfg.Timeout
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: b.cfg.BaseURL,
			Timeout: &timeout,
		},
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.AuthFailed(ProviderName, err)
	}
	b.clients[apiKey] = c
	return c, nil
}

// Complete calls GenerateContent.
func (b *Backend) Complete(ctx context.Context, apiKey string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c, err := b.client(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.Schema.Definition
	}

	resp, err := c.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, toAppError(err)
	}

	if reason := blockReason(resp); reason != "" {
		return nil, errors.LLMContentBlocked(ProviderName, reason)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, errors.Unknown(stderrors.New("gemini: empty response output"))
	}

	out := &llm.CompletionResponse{Content: text, Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if pf := resp.PromptFeedback; pf != nil {
		if r := string(pf.BlockReason); r != "" && r != "BLOCKED_REASON_UNSPECIFIED" {
			return r
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		if r := string(resp.Candidates[0].FinishReason); blockedFinish[r] {
			return r
		}
	}
	return ""
}

func apiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if stderrors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if stderrors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// toAppError maps SDK errors onto the taxonomy.
func toAppError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NetworkTimeout(ProviderName, err)
	}
	apiErr, ok := apiError(err)
	if !ok {
		if stderrors.Is(err, context.Canceled) {
			return err
		}
		return errors.NetworkTimeout(ProviderName, err)
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return errors.AuthFailed(ProviderName, err)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return errors.AuthFailed(ProviderName, err)
	case apiErr.Code == http.StatusTooManyRequests:
		return errors.RateLimited(ProviderName, 0).WithCause(err)
	case apiErr.Code >= 500:
		return errors.NetworkTimeout(ProviderName, err)
	default:
		return errors.Unknown(err)
	}
}
