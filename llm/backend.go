package llm

import (
	"context"

	"github.com/kbukum/meetingflow/provider"
)

// Backend is an LLM API. Complete is called with a credential secret drawn
// from the backend's key pool.
//
// Errors carry an errors.AppError code. A response refused by the
// provider's content policy must be reported as errors.LLMContentBlocked.
type Backend interface {
	provider.Provider

	// CredentialPool names the keyquota pool the backend draws keys from.
	CredentialPool() string
	Complete(ctx context.Context, apiKey string, req CompletionRequest) (*CompletionResponse, error)
}
