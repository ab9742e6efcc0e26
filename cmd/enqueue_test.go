package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/engine"
)

func TestDecodeJobPayload_Valid(t *testing.T) {
	j, err := decodeJobPayload(`{"id":"job1","command":"echo hi","max_retries":5,"priority":2}`)
	require.NoError(t, err)
	assert.Equal(t, "job1", j.ID)
	assert.Equal(t, "echo hi", j.Command)
	assert.Equal(t, 5, j.MaxRetries)
	assert.Equal(t, 2, j.Priority)
}

func TestDecodeJobPayload_UnknownFieldRejected(t *testing.T) {
	_, err := decodeJobPayload(`{"id":"job1","command":"echo hi","max_retries":5,"bogus":true}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPayload))
}

func TestDecodeJobPayload_MissingRequiredFieldRejected(t *testing.T) {
	_, err := decodeJobPayload(`{"command":"echo hi","max_retries":5}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPayload))
}

func TestDecodeJobPayload_MalformedJSONRejected(t *testing.T) {
	_, err := decodeJobPayload(`{"id":"job1", "command":`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPayload))
}

func TestDecodeJobPayload_InvalidRunAtRejected(t *testing.T) {
	_, err := decodeJobPayload(`{"id":"job1","command":"echo hi","max_retries":1,"run_at":"not-a-date"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidPayload))
}
