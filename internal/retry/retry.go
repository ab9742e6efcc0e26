// Package retry computes the next job state and retry time from an
// execution outcome. It is a pure function, deliberately separated from the
// Executor and the Store (SPEC_FULL.md §4.4, §9) so it can be unit-tested
// exhaustively over (attempts, max_retries, backoff_base) triples.
package retry

import (
	"math"
	"time"

	"github.com/queuectl/queuectl/internal/engine"
)

// Outcome is what the Executor hands back after running a job's command.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryableFailure
)

// Decision is what the policy produces: the job's next state and, when that
// state is StateFailed, the eligibility floor for retry.
type Decision struct {
	State       engine.State
	NextRetryAt time.Time // only meaningful when State == StateFailed
}

// Decide is a pure function of the outcome and the job's attempt/retry
// configuration. attemptsBefore is the job's attempts count prior to this
// run; backoffBase must be >= 1. now is the caller-supplied clock reading so
// tests can inject a fake clock instead of relying on time.Now.
func Decide(outcome Outcome, attemptsBefore, maxRetries, backoffBase int, now time.Time) Decision {
	if outcome == OutcomeSuccess {
		return Decision{State: engine.StateCompleted}
	}

	a := attemptsBefore + 1
	if a >= maxRetries {
		return Decision{State: engine.StateDead}
	}

	delaySeconds := math.Pow(float64(backoffBase), float64(a))
	return Decision{
		State:       engine.StateFailed,
		NextRetryAt: now.Add(time.Duration(delaySeconds) * time.Second),
	}
}
