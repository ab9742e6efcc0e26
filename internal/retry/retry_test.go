package retry

import (
	"testing"
	"time"

	"github.com/queuectl/queuectl/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_Success(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Decide(OutcomeSuccess, 5, 3, 2, now)
	assert.Equal(t, engine.StateCompleted, d.State)
	assert.True(t, d.NextRetryAt.IsZero())
}

func TestDecide_BackoffLaw(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name           string
		attemptsBefore int
		maxRetries     int
		backoffBase    int
		wantState      engine.State
		wantDelay      time.Duration
	}{
		{"first failure retries", 0, 5, 2, engine.StateFailed, 2 * time.Second},
		{"second failure retries", 1, 5, 2, engine.StateFailed, 4 * time.Second},
		{"third failure retries", 2, 5, 2, engine.StateFailed, 8 * time.Second},
		{"backoff base 1 is constant", 3, 10, 1, engine.StateFailed, 1 * time.Second},
		{"exhausts at max_retries boundary", 1, 2, 2, engine.StateDead, 0},
		{"dead when attempts already at ceiling", 4, 3, 2, engine.StateDead, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(OutcomeRetryableFailure, tc.attemptsBefore, tc.maxRetries, tc.backoffBase, now)
			require.Equal(t, tc.wantState, d.State)
			if tc.wantState == engine.StateFailed {
				assert.WithinDuration(t, now.Add(tc.wantDelay), d.NextRetryAt, time.Second)
			}
		})
	}
}

// TestDecide_DLQBoundary exercises property 4 from SPEC_FULL.md §8: a job
// with max_retries = m executes at most m times across all retries before
// entering dead.
func TestDecide_DLQBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const maxRetries = 4

	attempts := 0
	executions := 0
	for {
		executions++
		d := Decide(OutcomeRetryableFailure, attempts, maxRetries, 1, now)
		attempts++
		if d.State == engine.StateDead {
			break
		}
		require.Equal(t, engine.StateFailed, d.State)
		require.Less(t, executions, maxRetries+1, "must reach dead within max_retries executions")
	}
	assert.Equal(t, maxRetries, executions)
}

func TestDecide_ExhaustiveTriples(t *testing.T) {
	now := time.Now()
	for maxRetries := 1; maxRetries <= 6; maxRetries++ {
		for backoffBase := 1; backoffBase <= 4; backoffBase++ {
			for attemptsBefore := 0; attemptsBefore < maxRetries+2; attemptsBefore++ {
				d := Decide(OutcomeRetryableFailure, attemptsBefore, maxRetries, backoffBase, now)
				a := attemptsBefore + 1
				if a >= maxRetries {
					assert.Equal(t, engine.StateDead, d.State)
				} else {
					assert.Equal(t, engine.StateFailed, d.State)
					assert.True(t, d.NextRetryAt.After(now))
				}
			}
		}
	}
}
