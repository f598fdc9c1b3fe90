package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Run starts cmd and waits for it. On cancellation the process group gets
// SIGTERM and, after the grace period, SIGKILL; the returned error then
// wraps ctx.Err(). A non-zero exit returns *ExitError. The Result is
// non-nil whenever the process started.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	grace := cmd.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // running configured tools is the point
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout, c.Stderr = &stdout, &stderr

	// ffmpeg may spawn helpers; signal the group, not just the leader.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = grace

	start := time.Now()
	runErr := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	switch {
	case runErr == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s stopped: %w", cmd, ctx.Err())
	case c.ProcessState == nil:
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, runErr)
	default:
		return res, &ExitError{Binary: cmd.Binary, Code: res.ExitCode, Stderr: res.StderrTail(maxStderrTail), Err: runErr}
	}
}
