package process

import (
	"fmt"
	"strings"
	"time"
)

const maxStderrTail = 512

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrTail returns at most n trailing bytes of stderr, trimmed.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	b := r.Stderr
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// ExitError reports a non-zero exit. Stderr carries the tail of the
// process's error output, which is usually where ffmpeg explains itself.
type ExitError struct {
	Binary string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("process: %s exit code %d", e.Binary, e.Code)
	}
	return fmt.Sprintf("process: %s exit code %d: %s", e.Binary, e.Code, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }
