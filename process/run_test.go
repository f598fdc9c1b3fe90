package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meetingflow/process"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		cmd        process.Command
		wantStdout string
		wantStderr string
		wantCode   int
		wantErr    bool
	}{
		{
			name:       "stdout",
			cmd:        process.Command{Binary: "echo", Args: []string{"hello", "world"}},
			wantStdout: "hello world",
		},
		{
			name:       "stdin",
			cmd:        process.Command{Binary: "cat", Stdin: strings.NewReader("from stdin")},
			wantStdout: "from stdin",
		},
		{
			name:       "stderr",
			cmd:        process.Command{Binary: "sh", Args: []string{"-c", "echo oops >&2"}},
			wantStderr: "oops",
		},
		{
			name:       "extra env",
			cmd:        process.Command{Binary: "sh", Args: []string{"-c", "echo $MEETINGFLOW_TEST_VAR"}, Env: []string{"MEETINGFLOW_TEST_VAR=hello123"}},
			wantStdout: "hello123",
		},
		{
			name:     "exit code",
			cmd:      process.Command{Binary: "sh", Args: []string{"-c", "exit 42"}},
			wantCode: 42,
			wantErr:  true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := process.Run(context.Background(), tc.cmd)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if res.ExitCode != tc.wantCode {
				t.Errorf("exit code = %d, want %d", res.ExitCode, tc.wantCode)
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != tc.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tc.wantStdout)
			}
			if got := strings.TrimSpace(string(res.Stderr)); got != tc.wantStderr {
				t.Errorf("stderr = %q, want %q", got, tc.wantStderr)
			}
		})
	}
}

func TestRunRejectsEmptyBinary(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestRunMissingBinary(t *testing.T) {
	res, err := process.Run(context.Background(), process.Command{Binary: "meetingflow-no-such-tool"})
	if err == nil || !strings.Contains(err.Error(), "start meetingflow-no-such-tool") {
		t.Fatalf("expected start error, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result for a process that never started, got %+v", res)
	}
}

func TestRunCancelStopsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := process.Run(ctx, process.Command{Binary: "sleep", Args: []string{"10"}, GracePeriod: 500 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if res.Duration > 5*time.Second {
		t.Fatalf("process outlived its grace period: %v", res.Duration)
	}
}

func TestRunMeasuresDuration(t *testing.T) {
	res, err := process.Run(context.Background(), process.Command{Binary: "sleep", Args: []string{"0.1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Duration < 50*time.Millisecond {
		t.Fatalf("duration too short: %v", res.Duration)
	}
}

func TestExitErrorCarriesStderr(t *testing.T) {
	_, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo 'Invalid data found when processing input' >&2; exit 1"},
	})
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T", err)
	}
	if exitErr.Code != 1 || exitErr.Stderr != "Invalid data found when processing input" {
		t.Fatalf("unexpected exit error %+v", exitErr)
	}
}

func TestExecTimeout(t *testing.T) {
	e := process.Exec{Timeout: 50 * time.Millisecond, GracePeriod: 100 * time.Millisecond}
	_, err := e.Run(context.Background(), process.Command{Binary: "sleep", Args: []string{"5"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestCommandString(t *testing.T) {
	cmd := process.Command{Binary: "ffprobe", Args: []string{"-v", "error", "in.wav"}}
	if got := cmd.String(); got != "ffprobe -v error in.wav" {
		t.Errorf("String() = %q", got)
	}
}

func TestResultStderrTail(t *testing.T) {
	r := &process.Result{Stderr: []byte("0123456789\n")}
	if got := r.StderrTail(4); got != "789" {
		t.Fatalf("StderrTail(4) = %q", got)
	}
	var nilResult *process.Result
	if nilResult.StderrTail(4) != "" {
		t.Fatal("nil result should give empty tail")
	}
}
