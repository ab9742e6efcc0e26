// Package engine holds the durable scheduling engine's core types: the Job
// record, its states, the Config tuneables, and the worker registration
// record. The pure retry policy lives in internal/retry. Nothing in this
// package talks to a database or a subprocess.
package engine

import "time"

// State is one of the five positions a Job can occupy.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// DefaultTimeoutSeconds is used when a job omits timeout_seconds.
const DefaultTimeoutSeconds = 300

// MaxOutputBytes bounds the stdout/stderr tail kept per job.
const MaxOutputBytes = 4096

// Job is the primary entity. Field names mirror the wire payload in
// SPEC_FULL.md §6; pointer fields are optional and nil/zero when unset.
type Job struct {
	ID             string     `json:"id"`
	Command        string     `json:"command"`
	State          State      `json:"state"`
	Attempts       int        `json:"attempts"`
	MaxRetries     int        `json:"max_retries"`
	Priority       int        `json:"priority"`
	RunAt          *time.Time `json:"run_at,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	LastStdout     string     `json:"last_stdout,omitempty"`
	LastStderr     string     `json:"last_stderr,omitempty"`
	DurationMS     *int64     `json:"duration_ms,omitempty"`
}

// EffectiveTimeout returns the job's configured timeout, or the default.
func (j *Job) EffectiveTimeout() time.Duration {
	if j.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// Eligible reports whether the job's run_at, if any, has passed as of now.
func (j *Job) Eligible(now time.Time) bool {
	return j.RunAt == nil || !j.RunAt.After(now)
}

// Config is the three-key engine tuneable set, persisted in the Store.
type Config struct {
	MaxRetries         int
	BackoffBase        int
	WorkerPollInterval float64
}

// DefaultConfig matches SPEC_FULL.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		BackoffBase:        2,
		WorkerPollInterval: 1.0,
	}
}

// WorkerRegistration is the ephemeral, observational-only record kept for
// operators and the dashboard. It never gates scheduling.
type WorkerRegistration struct {
	ID            string     `json:"id"`
	PID           int        `json:"pid"`
	StartedAt     time.Time  `json:"started_at"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
}
