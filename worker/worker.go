// Package worker pulls job descriptors from a queue and runs them through
// the pipeline one at a time.
package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/meetingflow/jobqueue"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/pipeline"
)

// Config configures a Worker.
type Config struct {
	// PollTimeout bounds one dequeue wait.
	PollTimeout time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`
	// MaxShutdownWait is how long an in-flight job may keep running after
	// shutdown was requested before its context is cancelled.
	MaxShutdownWait time.Duration `yaml:"max_shutdown_wait" mapstructure:"max_shutdown_wait"`
	// ErrorBackoff is the pause after a failed dequeue.
	ErrorBackoff time.Duration `yaml:"error_backoff" mapstructure:"error_backoff"`
}

// ApplyDefaults sets 2s / 5m / 1s.
func (c *Config) ApplyDefaults() {
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	if c.MaxShutdownWait <= 0 {
		c.MaxShutdownWait = 5 * time.Minute
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
}

// Runner runs and fails jobs. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job) (*llm.Artifact, error)
	Fail(ctx context.Context, job *pipeline.Job, err error) *pipeline.PipelineError
}

// Registrar makes sure a job record exists before the job runs.
type Registrar interface {
	Create(ctx context.Context, job *pipeline.Job) (bool, error)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(w *Worker) { w.log = log.WithComponent("worker") }
}

// WithRegistrar creates missing job records for dequeued descriptors.
func WithRegistrar(r Registrar) Option {
	return func(w *Worker) { w.registrar = r }
}

// Worker processes one job at a time.
type Worker struct {
	cfg       Config
	queue     jobqueue.Queue
	runner    Runner
	registrar Registrar
	log       *logger.Logger

	mu      sync.Mutex
	current string
}

// New creates a Worker.
func New(cfg Config, queue jobqueue.Queue, runner Runner, opts ...Option) *Worker {
	cfg.ApplyDefaults()
	w := &Worker{cfg: cfg, queue: queue, runner: runner, log: logger.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Current returns the id of the job being processed, or "".
func (w *Worker) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run pulls and processes jobs until ctx is cancelled. An idle worker
// returns immediately; a busy one returns when its job ends, which is at
// most MaxShutdownWait after cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", logger.Fields("poll_timeout", w.cfg.PollTimeout.String()))
	defer w.log.Info("worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		d, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("dequeue failed", logger.ErrorFields("dequeue", err))
			if !sleep(ctx, w.cfg.ErrorBackoff) {
				return nil
			}
			continue
		}
		if d == nil {
			continue
		}
		w.process(ctx, d)
	}
}

// process runs one delivery. The job runs on a context detached from ctx;
// cancelling ctx starts the MaxShutdownWait grace period.
func (w *Worker) process(ctx context.Context, d *jobqueue.Delivery) {
	jobCtx, cancelJob := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJob()

	var aborted bool
	var abortMu sync.Mutex
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-stopWatch:
			return
		case <-ctx.Done():
		}
		w.log.Info("shutdown requested, waiting for job", logger.Fields(
			logger.FieldJobID, w.Current(), "max_wait", w.cfg.MaxShutdownWait.String()))
		t := time.NewTimer(w.cfg.MaxShutdownWait)
		defer t.Stop()
		select {
		case <-stopWatch:
		case <-t.C:
			w.log.Warn("shutdown wait exceeded, cancelling job", logger.Fields(logger.FieldJobID, w.Current()))
			abortMu.Lock()
			aborted = true
			abortMu.Unlock()
			cancelJob()
		}
	}()

	w.handle(jobCtx, d.Body)

	abortMu.Lock()
	skipAck := aborted
	abortMu.Unlock()
	if skipAck {
		// Left unacknowledged so a redelivering queue hands it to another worker.
		return
	}
	if err := d.Ack(context.WithoutCancel(ctx)); err != nil {
		w.log.Error("ack failed", logger.ErrorFields("ack", err))
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) {
	desc, err := pipeline.DecodeDescriptor(body)
	job := pipeline.NewJob(desc)
	log := w.log.WithFields(logger.Fields(logger.FieldJobID, desc.JobID, logger.FieldTenantID, desc.TenantID))
	if err != nil {
		log.Error("rejected job descriptor", logger.ErrorFields("decode_descriptor", err))
		if desc.JobID != "" {
			w.runner.Fail(ctx, job, err)
		}
		return
	}

	w.setCurrent(job.JobID)
	defer w.setCurrent("")

	if w.registrar != nil {
		if _, err := w.registrar.Create(ctx, job); err != nil {
			log.Error("job registration failed", logger.ErrorFields("create_job", err))
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", logger.Fields("panic", fmt.Sprint(r)))
			w.runner.Fail(context.WithoutCancel(ctx), job, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	_, err = w.runner.Run(ctx, job)
	fields := logger.Fields(logger.FieldState, string(job.State), logger.FieldDuration, time.Since(start).Milliseconds())
	switch {
	case err == nil:
		log.Info("job done", fields)
	case stderrors.Is(err, pipeline.ErrCancelled):
		log.Info("job cancelled", fields)
	default:
		var perr *pipeline.PipelineError
		if !stderrors.As(err, &perr) {
			w.runner.Fail(context.WithoutCancel(ctx), job, err)
		}
		log.Warn("job failed", logger.Fields(logger.FieldState, string(job.State), logger.FieldError, err.Error()))
	}
}

func (w *Worker) setCurrent(id string) {
	w.mu.Lock()
	w.current = id
	w.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
