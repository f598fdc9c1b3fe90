package llm

import "time"

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role" yaml:"role"` // "user", "assistant"
	Content string `json:"content" yaml:"content"`
}

// Schema asks a backend for JSON output matching Definition.
type Schema struct {
	Name       string
	Definition map[string]any
}

// CompletionRequest is the universal input for all LLM backends.
type CompletionRequest struct {
	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`
	// SystemPrompt is sent as the system instruction.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Messages is the conversation; usually one user message.
	Messages []Message `json:"messages"`
	// Temperature controls randomness. Nil means provider default.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens limits the response length. 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Schema requests structured output. Nil means free text.
	Schema *Schema `json:"-"`
}

// CompletionResponse is the universal output from all LLM backends.
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ArtifactType names a generated document.
type ArtifactType string

const (
	// TypeMinutes is markdown meeting minutes.
	TypeMinutes ArtifactType = "minutes"
	// TypeActionItems is a JSON list of ActionItem.
	TypeActionItems ArtifactType = "action_items"
)

// Valid reports whether t is a known artifact type.
func (t ArtifactType) Valid() bool {
	return t == TypeMinutes || t == TypeActionItems
}

// Artifact is a generated document.
type Artifact struct {
	ID        string       `json:"id"`
	JobID     string       `json:"job_id"`
	Type      ArtifactType `json:"type"`
	Format    string       `json:"format"` // "markdown" or "json"
	Content   string       `json:"content"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Usage     Usage        `json:"usage"`
	CreatedAt time.Time    `json:"created_at"`
}

// ActionItems is the structured output for TypeActionItems.
type ActionItems struct {
	Items []ActionItem `json:"items" jsonschema:"description=Every commitment made in the meeting"`
}

// ActionItem is one follow-up.
type ActionItem struct {
	Task  string `json:"task" jsonschema:"description=What has to be done"`
	Owner string `json:"owner" jsonschema:"description=Who committed to it; empty when nobody did"`
	Due   string `json:"due" jsonschema:"description=Deadline as stated; empty when none was given"`
}
