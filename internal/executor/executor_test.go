package executor

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/queuectl/queuectl/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	res := Run(context.Background(), "echo hello", time.Second)
	require.Equal(t, retry.OutcomeSuccess, res.Outcome)
	assert.Contains(t, res.Stdout, "hello")
	assert.Empty(t, res.ErrMessage)
}

func TestRun_NonZeroExit(t *testing.T) {
	res := Run(context.Background(), "exit 3", time.Second)
	require.Equal(t, retry.OutcomeRetryableFailure, res.Outcome)
	assert.Contains(t, res.ErrMessage, "3")
}

func TestRun_Timeout(t *testing.T) {
	res := Run(context.Background(), "sleep 2", 50*time.Millisecond)
	require.Equal(t, retry.OutcomeRetryableFailure, res.Outcome)
	assert.Contains(t, res.ErrMessage, "timed out")
}

func TestRun_StderrCaptured(t *testing.T) {
	res := Run(context.Background(), "echo boom 1>&2; exit 1", time.Second)
	require.Equal(t, retry.OutcomeRetryableFailure, res.Outcome)
	assert.Contains(t, res.ErrMessage, "boom")
}

func TestRun_OutputBounded(t *testing.T) {
	res := Run(context.Background(), "yes | head -c 100000", time.Second)
	require.Equal(t, retry.OutcomeSuccess, res.Outcome)
	assert.LessOrEqual(t, len(res.Stdout), 4096)
}

func TestRun_OutputKeepsTailNotHead(t *testing.T) {
	res := Run(context.Background(), "printf 'START-MARKER'; head -c 8192 /dev/zero | tr '\\0' 'x'; printf 'END-MARKER'", time.Second)
	require.Equal(t, retry.OutcomeSuccess, res.Outcome)
	assert.NotContains(t, res.Stdout, "START-MARKER")
	assert.Contains(t, res.Stdout, "END-MARKER")
}

func TestBoundedWriter_KeepsLastBytesAcrossMultipleWrites(t *testing.T) {
	var buf bytes.Buffer
	w := &boundedWriter{buf: &buf, limit: 5}

	w.Write([]byte("abc"))
	w.Write([]byte("defgh"))
	w.Write([]byte("ijk"))

	assert.Equal(t, "ghijk", buf.String())
}
