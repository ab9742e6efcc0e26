// Package executor runs a job's command as a host shell subprocess under a
// hard deadline and classifies the result into an outcome the retry policy
// can act on. Uses the exec.Command("sh", "-c", ...) idiom, with
// context-based cancellation that kills the shell's whole process group and
// a bounded output tail.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/queuectl/queuectl/internal/engine"
	"github.com/queuectl/queuectl/internal/retry"
)

// Result is what a Run produces: the classified outcome plus everything the
// Store needs to record about the attempt.
type Result struct {
	Outcome    retry.Outcome
	Stdout     string
	Stderr     string
	DurationMS int64
	ErrMessage string
}

// Run executes command via "sh -c" with a hard deadline of timeout,
// capturing up to engine.MaxOutputBytes of stdout/stderr.
func Run(ctx context.Context, command string, timeout time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	// The shell runs in its own process group and the deadline kills the
	// whole group, so processes the shell started die with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &boundedWriter{buf: &stdout, limit: engine.MaxOutputBytes}
	cmd.Stderr = &boundedWriter{buf: &stderr, limit: engine.MaxOutputBytes}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: duration.Milliseconds(),
	}

	if err == nil {
		res.Outcome = retry.OutcomeSuccess
		return res
	}

	res.Outcome = retry.OutcomeRetryableFailure
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ErrMessage = fmt.Sprintf("job execution timed out (%s)", timeout)
	case errors.Is(err, exec.ErrNotFound):
		res.ErrMessage = "command not found"
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if res.ErrMessage = stderr.String(); res.ErrMessage == "" {
				res.ErrMessage = stdout.String()
			}
			if res.ErrMessage == "" {
				res.ErrMessage = fmt.Sprintf("command exited with code %d", exitErr.ExitCode())
			}
		} else {
			res.ErrMessage = err.Error()
		}
	}
	return res
}

// boundedWriter keeps only the last limit bytes written to it, matching
// SPEC_FULL.md §4.3's bounded output-*tail* requirement: a chatty command's
// most recent output survives, not its first few KiB.
type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > w.limit {
		p = p[len(p)-w.limit:]
	}
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		w.buf.Next(w.buf.Len() - w.limit)
	}
	return n, nil
}
