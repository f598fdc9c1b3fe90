package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/jobqueue"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/testutil"
)

// chanQueue delivers bodies pushed on ch and counts acks.
type chanQueue struct {
	ch   chan []byte
	acks atomic.Int32
}

func newChanQueue() *chanQueue { return &chanQueue{ch: make(chan []byte, 8)} }

func (q *chanQueue) push(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	q.ch <- b
}

func (q *chanQueue) Dequeue(ctx context.Context, timeout time.Duration) (*jobqueue.Delivery, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, nil
	case b := <-q.ch:
		return jobqueue.NewDelivery(b, func(context.Context) error {
			q.acks.Add(1)
			return nil
		}), nil
	}
}

// fakeRunner runs fn for every job and records failures.
type fakeRunner struct {
	fn func(ctx context.Context, job *pipeline.Job) error

	mu     sync.Mutex
	runs   []string
	failed []error
	ran    chan string
}

func newFakeRunner(fn func(ctx context.Context, job *pipeline.Job) error) *fakeRunner {
	return &fakeRunner{fn: fn, ran: make(chan string, 8)}
}

func (r *fakeRunner) Run(ctx context.Context, job *pipeline.Job) (*llm.Artifact, error) {
	r.mu.Lock()
	r.runs = append(r.runs, job.JobID)
	r.mu.Unlock()
	defer func() { r.ran <- job.JobID }()
	if err := r.fn(ctx, job); err != nil {
		return nil, err
	}
	job.State = pipeline.StateSuccess
	return &llm.Artifact{JobID: job.JobID}, nil
}

func (r *fakeRunner) Fail(_ context.Context, job *pipeline.Job, err error) *pipeline.PipelineError {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	job.State = pipeline.StateFailed
	je := pipeline.Classify(err)
	return &pipeline.PipelineError{Classification: je.Code, Err: err}
}

func (r *fakeRunner) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.failed...)
}

func descriptor(id string) pipeline.JobDescriptor {
	return pipeline.JobDescriptor{JobID: id, TenantID: "t1", Sources: []string{"a.wav"}}
}

func fastConfig() Config {
	return Config{PollTimeout: 5 * time.Millisecond, MaxShutdownWait: time.Second, ErrorBackoff: time.Millisecond}
}

// runWorker starts w.Run and returns a stop func that cancels and waits.
func runWorker(w *Worker) (cancel context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		_ = w.Run(ctx)
	}()
	return cancel, ch
}

func waitRan(t *testing.T, r *fakeRunner) string {
	t.Helper()
	select {
	case id := <-r.ran:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
		return ""
	}
}

func TestWorkerProcessesJobsInOrder(t *testing.T) {
	q := newChanQueue()
	var states []pipeline.State
	r := newFakeRunner(func(_ context.Context, job *pipeline.Job) error {
		states = append(states, job.State)
		return nil
	})
	w := New(fastConfig(), q, r)
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	q.push(t, descriptor("job-2"))
	assert.Equal(t, "job-1", waitRan(t, r))
	assert.Equal(t, "job-2", waitRan(t, r))

	cancel()
	<-done
	assert.Equal(t, []pipeline.State{pipeline.StatePending, pipeline.StatePending}, states)
	assert.EqualValues(t, 2, q.acks.Load())
}

func TestWorkerRejectsInvalidDescriptor(t *testing.T) {
	q := newChanQueue()
	r := newFakeRunner(func(context.Context, *pipeline.Job) error { return nil })
	w := New(fastConfig(), q, r)
	cancel, done := runWorker(w)

	q.push(t, pipeline.JobDescriptor{JobID: "bad", TenantID: "t1"})
	q.push(t, descriptor("good"))
	assert.Equal(t, "good", waitRan(t, r))

	cancel()
	<-done
	fails := r.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(fails[0]))
	assert.EqualValues(t, 2, q.acks.Load())
}

func TestWorkerMarksPanicsUnknown(t *testing.T) {
	q := newChanQueue()
	r := newFakeRunner(func(context.Context, *pipeline.Job) error { panic("nil map") })
	w := New(fastConfig(), q, r)
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	waitRan(t, r)
	cancel()
	<-done

	fails := r.failures()
	require.Len(t, fails, 1)
	assert.Contains(t, fails[0].Error(), "nil map")
	assert.Equal(t, errors.ErrCodeUnknown, pipeline.Classify(fails[0]).Code)
	assert.EqualValues(t, 1, q.acks.Load())
}

func TestWorkerFailsUnclassifiedErrors(t *testing.T) {
	q := newChanQueue()
	r := newFakeRunner(func(context.Context, *pipeline.Job) error { return fmt.Errorf("bare error") })
	w := New(fastConfig(), q, r)
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	waitRan(t, r)
	cancel()
	<-done
	require.Len(t, r.failures(), 1)
}

func TestWorkerFinishesInFlightJobOnShutdown(t *testing.T) {
	q := newChanQueue()
	started := make(chan struct{})
	release := make(chan struct{})
	var jobCtxErr error
	r := newFakeRunner(func(ctx context.Context, _ *pipeline.Job) error {
		close(started)
		<-release
		jobCtxErr = ctx.Err()
		return nil
	})
	w := New(fastConfig(), q, r)
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	<-started
	assert.Equal(t, "job-1", w.Current())
	cancel()

	select {
	case <-done:
		t.Fatal("worker returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done

	assert.NoError(t, jobCtxErr, "job context survives shutdown")
	assert.EqualValues(t, 1, q.acks.Load())
	assert.Empty(t, w.Current())
}

func TestWorkerCancelsJobAfterShutdownWait(t *testing.T) {
	q := newChanQueue()
	started := make(chan struct{})
	r := newFakeRunner(func(ctx context.Context, _ *pipeline.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	cfg := fastConfig()
	cfg.MaxShutdownWait = 20 * time.Millisecond
	w := New(cfg, q, r)
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	<-started
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Zero(t, q.acks.Load(), "aborted job is left for redelivery")

	failures := r.failures()
	require.Len(t, failures, 1)
	je := pipeline.Classify(failures[0])
	assert.Equal(t, errors.ErrCodeNetworkTimeout, je.Code)
	assert.True(t, je.Retryable, "recorded failure must match the redelivery")
}

func TestWorkerIdleShutdownIsImmediate(t *testing.T) {
	w := New(Config{PollTimeout: time.Hour}, newChanQueue(), newFakeRunner(nil))
	cancel, done := runWorker(w)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("idle worker did not stop")
	}
}

type registrar struct {
	created []string
	err     error
}

func (r *registrar) Create(_ context.Context, job *pipeline.Job) (bool, error) {
	r.created = append(r.created, job.JobID)
	return true, r.err
}

func TestWorkerRegistersJobs(t *testing.T) {
	q := newChanQueue()
	reg := &registrar{}
	r := newFakeRunner(func(context.Context, *pipeline.Job) error { return nil })
	w := New(fastConfig(), q, r, WithRegistrar(reg))
	cancel, done := runWorker(w)

	q.push(t, descriptor("job-1"))
	waitRan(t, r)
	cancel()
	<-done
	assert.Equal(t, []string{"job-1"}, reg.created)
}

func TestComponentLifecycle(t *testing.T) {
	q := newChanQueue()
	r := newFakeRunner(func(context.Context, *pipeline.Job) error { return nil })
	c := NewComponent(New(fastConfig(), q, r))

	assert.Equal(t, "not started", c.Health(context.Background()).Message)
	testutil.T(t).Setup(c)
	testutil.T(t).Healthy(c)
	assert.Error(t, c.Start(context.Background()), "second start")

	q.push(t, descriptor("job-1"))
	assert.Equal(t, "job-1", waitRan(t, r))
	assert.Greater(t, c.StopTimeout(), time.Second)
}
