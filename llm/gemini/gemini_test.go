package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/keyquota"
	"github.com/kbukum/meetingflow/llm"
)

func setup(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	keys := keyquota.NewManager(keyquota.Config{Providers: map[string][]keyquota.CredentialConfig{
		ProviderName: {{ID: "g1", Secret: "g-key"}},
	}})
	return New(Config{BaseURL: srv.URL}, keys, nil)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestCompleteMinutes(t *testing.T) {
	var body map[string]any
	b := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+defaultModel+":generateContent"), r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "# Minutes"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 80, "candidatesTokenCount": 20, "totalTokenCount": 100},
			"modelVersion": "gemini-2.5-flash-001"
		}`)
	})

	resp, err := b.Complete(context.Background(), "g-key", llm.CompletionRequest{
		SystemPrompt: "write minutes",
		Messages:     []llm.Message{{Role: "user", Content: "[00:00] Ana: hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Minutes", resp.Content)
	assert.Equal(t, "gemini-2.5-flash-001", resp.Model)
	assert.Equal(t, llm.Usage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100}, resp.Usage)
	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "contents")
}

func TestCompleteReusesClientPerKey(t *testing.T) {
	b := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "ok"}]}, "finishReason": "STOP"}]}`)
	})
	req := llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "t"}}}
	for _, key := range []string{"k1", "k1", "k2"} {
		_, err := b.Complete(context.Background(), key, req)
		require.NoError(t, err)
	}
	assert.Len(t, b.clients, 2)
}

func TestCompleteBlocked(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "prompt blocked", body: `{"promptFeedback": {"blockReason": "SAFETY"}}`},
		{name: "candidate withheld", body: `{"candidates": [{"finishReason": "PROHIBITED_CONTENT"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			_, err := b.Complete(context.Background(), "g-key", llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "t"}},
			})
			assert.Equal(t, errors.ErrCodeLLMContentBlocked, errors.CodeOf(err))
		})
	}
}

func TestCompleteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errors.ErrorCode
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error": {"code": 403, "message": "denied", "status": "PERMISSION_DENIED"}}`, want: errors.ErrCodeAuth},
		{name: "bad key", status: http.StatusBadRequest, body: `{"error": {"code": 400, "message": "API key not valid. Please pass a valid API key.", "status": "INVALID_ARGUMENT"}}`, want: errors.ErrCodeAuth},
		{name: "rate", status: http.StatusTooManyRequests, body: `{"error": {"code": 429, "message": "slow down", "status": "RESOURCE_EXHAUSTED"}}`, want: errors.ErrCodeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := b.Complete(context.Background(), "g-key", llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "t"}},
			})
			assert.Equal(t, tt.want, errors.CodeOf(err))
		})
	}
}
