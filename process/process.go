// Package process runs the media tools (ffmpeg, ffprobe) as subprocesses.
// Output is captured, a non-zero exit carries the tail of stderr, and a
// cancelled context stops the whole process group with SIGTERM before the
// grace period ends in SIGKILL.
package process

import (
	"context"
	"io"
	"strings"
	"time"
)

// DefaultGracePeriod is the SIGTERM to SIGKILL window when none is set.
const DefaultGracePeriod = 5 * time.Second

// Command is one subprocess invocation.
type Command struct {
	// Binary is a path or a name looked up in PATH.
	Binary string
	Args   []string
	Dir    string
	// Env entries (KEY=value) are appended to the parent environment.
	Env   []string
	Stdin io.Reader
	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Runner executes commands. Exec is the real one; tests use RunnerFunc or
// their own recorder.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (*Result, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (*Result, error) { return f(ctx, cmd) }

// Exec is the subprocess Runner with per-run defaults.
type Exec struct {
	// Timeout bounds each run on top of ctx. Zero disables it.
	Timeout     time.Duration
	GracePeriod time.Duration
}

func (e Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod <= 0 {
		cmd.GracePeriod = e.GracePeriod
	}
	if e.Timeout <= 0 {
		return Run(ctx, cmd)
	}
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	return Run(ctx, cmd)
}
