package admin

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/pipeline"
)

// scriptedJobs returns its jobs in order, repeating the last one.
type scriptedJobs struct {
	jobs []*pipeline.Job
	err  error
	n    int
}

func (s *scriptedJobs) Get(_ context.Context, jobID string) (*pipeline.Job, error) {
	if s.n >= len(s.jobs) {
		if s.err != nil {
			return nil, s.err
		}
		return s.jobs[len(s.jobs)-1], nil
	}
	j := s.jobs[s.n]
	s.n++
	return j, nil
}

func jobAt(state pipeline.State, progress int) *pipeline.Job {
	return &pipeline.Job{JobDescriptor: pipeline.JobDescriptor{JobID: "job-1", TenantID: "t1"}, State: state, Progress: progress}
}

func TestStreamJobEndsOnTerminalState(t *testing.T) {
	h := newHarness(t)
	h.createJob(t, "job-1")
	zero := 0.0
	require.NoError(t, h.jobs.UpdateStatus(context.Background(), "job-1", pipeline.StatusUpdate{State: pipeline.StateSuccess, Progress: 100, EstimatedSeconds: &zero}))

	rec := h.do(t, http.MethodGet, "/api/v1/jobs/job-1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event:status"))
	assert.Contains(t, rec.Body.String(), `"state":"SUCCESS"`)
}

func TestStreamJobSendsChangesOnly(t *testing.T) {
	h := newHarness(t)
	h.handler.streamPoll = time.Millisecond
	h.handler.deps.Jobs = &scriptedJobs{jobs: []*pipeline.Job{
		jobAt(pipeline.StateTranscribing, 10),
		jobAt(pipeline.StateTranscribing, 10),
		jobAt(pipeline.StateTranscribing, 40),
		jobAt(pipeline.StateSummarizing, 80),
		jobAt(pipeline.StateSuccess, 100),
	}}

	rec := h.do(t, http.MethodGet, "/api/v1/jobs/job-1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 4, strings.Count(body, "event:status"))
	assert.Less(t, strings.Index(body, `"progress":40`), strings.Index(body, `"state":"SUMMARIZING"`))
}

func TestStreamJobReportsLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.handler.streamPoll = time.Millisecond
	h.handler.deps.Jobs = &scriptedJobs{
		jobs: []*pipeline.Job{jobAt(pipeline.StateTranscribing, 10)},
		err:  errors.NotFound("job", "job-1"),
	}

	rec := h.do(t, http.MethodGet, "/api/v1/jobs/job-1/events", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, string(errors.ErrCodeNotFound))
}

func TestStreamJobUnknownJob(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/jobs/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
