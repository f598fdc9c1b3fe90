package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/llm"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateRunning, true},
		{StateRunning, StateTranscribing, true},
		{StateTranscribing, StateIdentifying, true},
		{StateTranscribing, StateSummarizing, true},
		{StateIdentifying, StateCorrecting, true},
		{StateIdentifying, StateSummarizing, true},
		{StateCorrecting, StateSummarizing, true},
		{StateSummarizing, StateSuccess, true},
		{StateSummarizing, StatePartialSuccess, true},
		{StateTranscribing, StateFailed, true},
		{StateCorrecting, StateCancelled, true},
		{StateSummarizing, StateFailed, true},
		{StatePending, StateCancelled, true},

		{StatePending, StateTranscribing, false},
		{StateRunning, StateSummarizing, false},
		{StateSummarizing, StateTranscribing, false},
		{StateCorrecting, StateIdentifying, false},
		{StateTranscribing, StateSuccess, false},
		{StateSuccess, StateFailed, false},
		{StateFailed, StateRunning, false},
		{StateCancelled, StateFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDecodeDescriptor(t *testing.T) {
	d, err := DecodeDescriptor([]byte(`{
		"job_id": "job-1",
		"tenant_id": "t-1",
		"sources": ["uploads/a.wav", "uploads/b.wav"],
		"order": [1, 0],
		"language": "en",
		"hotwords": ["Kubernetes"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "job-1", d.JobID)
	assert.Equal(t, []int{1, 0}, d.Order)
	assert.Equal(t, []llm.ArtifactType{llm.TypeMinutes}, d.ArtifactTypes)
	assert.Equal(t, []string{"Kubernetes"}, d.Hotwords)
}

func TestDecodeDescriptorRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing job id", `{"tenant_id":"t","sources":["a"]}`},
		{"missing tenant", `{"job_id":"j","sources":["a"]}`},
		{"no sources", `{"job_id":"j","tenant_id":"t","sources":[]}`},
		{"empty source", `{"job_id":"j","tenant_id":"t","sources":[""]}`},
		{"order out of range", `{"job_id":"j","tenant_id":"t","sources":["a","b"],"order":[0,2]}`},
		{"order too short", `{"job_id":"j","tenant_id":"t","sources":["a","b"],"order":[1]}`},
		{"order repeats index", `{"job_id":"j","tenant_id":"t","sources":["a","b"],"order":[0,0]}`},
		{"unknown artifact", `{"job_id":"j","tenant_id":"t","sources":["a"],"artifact_types":["poem"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDescriptor([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
		})
	}
}

func TestNewJobSumsKnownDurations(t *testing.T) {
	j := NewJob(JobDescriptor{JobID: "j", SourceDurations: []float64{60, 30.5}})
	assert.Equal(t, StatePending, j.State)
	assert.InDelta(t, 90.5, j.Duration, 1e-9)
	assert.Equal(t, []llm.ArtifactType{llm.TypeMinutes}, j.ArtifactTypes)
}

func TestEstimate(t *testing.T) {
	assert.Nil(t, Estimate(0, 40))

	tests := []struct {
		progress int
		want     float64
	}{
		{0, 150},
		{40, 90},
		{70, 45},
		{100, 0},
		{120, 0},
	}
	for _, tt := range tests {
		got := Estimate(600, tt.progress)
		require.NotNil(t, got)
		assert.InDelta(t, tt.want, *got, 1e-9, "progress %d", tt.progress)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      errors.ErrorCode
		retryable bool
	}{
		{"network", errors.NetworkTimeout("assembly", nil), errors.ErrCodeNetworkTimeout, true},
		{"rate limited", errors.RateLimited("openai", 0), errors.ErrCodeRateLimited, true},
		{"quota", errors.QuotaExceeded("openai"), errors.ErrCodeQuotaExceeded, false},
		{"llm blocked", errors.LLMContentBlocked("openai", "refusal"), errors.ErrCodeLLMContentBlocked, false},
		{"wrapped sensitive", &PipelineError{Err: errors.SensitiveContent("assembly")}, errors.ErrCodeSensitiveContent, false},
		{"circuit open", errors.CircuitOpen("gemini"), errors.ErrCodeNetworkTimeout, true},
		{"not found", errors.NotFound("audio", "a.wav"), errors.ErrCodeUnknown, false},
		{"plain", stderrors.New("boom"), errors.ErrCodeUnknown, false},
		{"deadline", context.DeadlineExceeded, errors.ErrCodeNetworkTimeout, true},
		{"shutdown abort", fmt.Errorf("transcribe: %w", context.Canceled), errors.ErrCodeNetworkTimeout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			je := Classify(tt.err)
			assert.Equal(t, tt.code, je.Code)
			assert.Equal(t, tt.retryable, je.Retryable)
			assert.NotEmpty(t, je.Message)
		})
	}
}
