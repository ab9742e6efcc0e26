package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/queuectl/queuectl/internal/engine"
)

const jobColumns = `id, command, state, attempts, max_retries, priority, run_at,
	timeout_seconds, created_at, updated_at, next_retry_at, completed_at,
	error_message, last_stdout, last_stderr, duration_ms`

func scanJob(row interface {
	Scan(dest ...any) error
}) (*engine.Job, error) {
	var j engine.Job
	var runAt, nextRetryAt, completedAt sql.NullString
	var errMsg, stdout, stderr sql.NullString
	var durationMS sql.NullInt64
	var createdAt, updatedAt string

	if err := row.Scan(
		&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries, &j.Priority, &runAt,
		&j.TimeoutSeconds, &createdAt, &updatedAt, &nextRetryAt, &completedAt,
		&errMsg, &stdout, &stderr, &durationMS,
	); err != nil {
		return nil, err
	}

	var err error
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if j.RunAt, err = scanNullableTime(runAt); err != nil {
		return nil, fmt.Errorf("parse run_at: %w", err)
	}
	if j.NextRetryAt, err = scanNullableTime(nextRetryAt); err != nil {
		return nil, fmt.Errorf("parse next_retry_at: %w", err)
	}
	if j.CompletedAt, err = scanNullableTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	j.ErrorMessage = errMsg.String
	j.LastStdout = stdout.String
	j.LastStderr = stderr.String
	if durationMS.Valid {
		j.DurationMS = &durationMS.Int64
	}
	return &j, nil
}

// Insert persists a brand-new job in state=pending. Fails with
// engine.ErrDuplicateID if the id already exists.
func (s *Store) Insert(j *engine.Job, now time.Time) error {
	j.State = engine.StatePending
	j.Attempts = 0
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.TimeoutSeconds <= 0 {
		j.TimeoutSeconds = engine.DefaultTimeoutSeconds
	}

	_, err := s.db.Exec(`
INSERT INTO jobs (id, command, state, attempts, max_retries, priority, run_at,
	timeout_seconds, created_at, updated_at, next_retry_at, completed_at,
	error_message, last_stdout, last_stderr, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, NULL, NULL, NULL)`,
		j.ID, j.Command, j.State, j.Attempts, j.MaxRetries, j.Priority,
		formatNullableTime(j.RunAt), j.TimeoutSeconds, formatTime(j.CreatedAt), formatTime(j.UpdatedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return engine.ErrDuplicateID
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return engine.ErrDuplicateID
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a single job by id.
func (s *Store) Get(id string) (*engine.Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// List returns jobs, optionally filtered by state, newest first, bounded by limit.
func (s *Store) List(state engine.State, limit int) ([]*engine.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
SELECT `+jobColumns+` FROM jobs
WHERE (? = '' OR state = ?)
ORDER BY created_at DESC
LIMIT ?`, string(state), string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*engine.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimNext atomically selects one eligible pending job and marks it
// processing in the same transaction (SPEC_FULL.md §4.1). Eligible means
// state=pending and (run_at is null or run_at <= now). Ordering is
// priority DESC, created_at ASC, id ASC. Returns (nil, nil) when nothing is
// eligible or the claim lost a race to another worker.
func (s *Store) ClaimNext(now time.Time) (*engine.Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	nowStr := formatTime(now)
	row := tx.QueryRow(`
SELECT `+jobColumns+` FROM jobs
WHERE state = ? AND (run_at IS NULL OR run_at <= ?)
ORDER BY priority DESC, created_at ASC, id ASC
LIMIT 1`, engine.StatePending, nowStr)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	res, err := tx.Exec(`
UPDATE jobs SET state = ?, updated_at = ?
WHERE id = ? AND state = ?`, engine.StateProcessing, nowStr, j.ID, engine.StatePending)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job rows affected: %w", err)
	}
	if n != 1 {
		// Lost the race to another worker; caller retries on its own tick.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	j.State = engine.StateProcessing
	j.UpdatedAt = now
	return j, nil
}

// FinalizeSuccess requires the job currently be processing; marks it
// completed, clears error_message, and increments attempts.
func (s *Store) FinalizeSuccess(id string, now time.Time, stdout, stderr string, durationMS int64) error {
	res, err := s.db.Exec(`
UPDATE jobs SET
	state = ?, attempts = attempts + 1, completed_at = ?, updated_at = ?,
	error_message = NULL, last_stdout = ?, last_stderr = ?, duration_ms = ?,
	next_retry_at = NULL
WHERE id = ? AND state = ?`,
		engine.StateCompleted, formatTime(now), formatTime(now), stdout, stderr, durationMS,
		id, engine.StateProcessing)
	if err != nil {
		return fmt.Errorf("finalize success: %w", err)
	}
	return requireRowsAffected(res, fmt.Sprintf("job %s is not processing", id))
}

// FinalizeFailure requires the job currently be processing; applies the
// retry decision (failed-with-next-retry or dead-with-completed_at) and
// increments attempts.
func (s *Store) FinalizeFailure(id string, now time.Time, nextState engine.State, nextRetryAt time.Time, errMsg, stdout, stderr string, durationMS int64) error {
	if nextState != engine.StateFailed && nextState != engine.StateDead {
		return fmt.Errorf("finalize failure: invalid next state %q", nextState)
	}

	var res sql.Result
	var err error
	if nextState == engine.StateDead {
		res, err = s.db.Exec(`
UPDATE jobs SET
	state = ?, attempts = attempts + 1, completed_at = ?, updated_at = ?,
	error_message = ?, last_stdout = ?, last_stderr = ?, duration_ms = ?,
	next_retry_at = NULL
WHERE id = ? AND state = ?`,
			engine.StateDead, formatTime(now), formatTime(now), errMsg, stdout, stderr, durationMS,
			id, engine.StateProcessing)
	} else {
		res, err = s.db.Exec(`
UPDATE jobs SET
	state = ?, attempts = attempts + 1, next_retry_at = ?, updated_at = ?,
	error_message = ?, last_stdout = ?, last_stderr = ?, duration_ms = ?
WHERE id = ? AND state = ?`,
			engine.StateFailed, formatTime(nextRetryAt), formatTime(now), errMsg, stdout, stderr, durationMS,
			id, engine.StateProcessing)
	}
	if err != nil {
		return fmt.Errorf("finalize failure: %w", err)
	}
	return requireRowsAffected(res, fmt.Sprintf("job %s is not processing", id))
}

// PromoteDue moves failed jobs whose next_retry_at has passed back to
// pending. This is the chosen resolution of SPEC_FULL.md §9's "failed
// re-eligibility" open question (see DESIGN.md); the dispatcher itself
// never reads failed rows.
func (s *Store) PromoteDue(now time.Time) (int, error) {
	res, err := s.db.Exec(`
UPDATE jobs SET state = ?, updated_at = ?, next_retry_at = NULL
WHERE state = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?`,
		engine.StatePending, formatTime(now), engine.StateFailed, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote due jobs rows affected: %w", err)
	}
	return int(n), nil
}

// ReapStale resets every processing job whose updated_at predates threshold
// back to pending, preserving attempts, per SPEC_FULL.md §4.7.
func (s *Store) ReapStale(threshold time.Time) (int, error) {
	res, err := s.db.Exec(`
UPDATE jobs SET state = ?, updated_at = ?, error_message = ?
WHERE state = ? AND updated_at < ?`,
		engine.StatePending, formatTime(threshold), "reaped: worker presumed crashed",
		engine.StateProcessing, formatTime(threshold))
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs rows affected: %w", err)
	}
	return int(n), nil
}

// DLQRetry resets a dead job back to pending with a clean slate. Fails with
// engine.ErrNotInDLQ if the job isn't currently dead.
func (s *Store) DLQRetry(id string, now time.Time) error {
	res, err := s.db.Exec(`
UPDATE jobs SET
	state = ?, attempts = 0, completed_at = NULL, next_retry_at = NULL,
	error_message = NULL, updated_at = ?
WHERE id = ? AND state = ?`,
		engine.StatePending, formatTime(now), id, engine.StateDead)
	if err != nil {
		return fmt.Errorf("dlq retry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dlq retry rows affected: %w", err)
	}
	if n == 0 {
		return engine.ErrNotInDLQ
	}
	return nil
}

// CountsByState returns the count of jobs in each of the five states.
func (s *Store) CountsByState() (map[engine.State]int, error) {
	out := map[engine.State]int{
		engine.StatePending:    0,
		engine.StateProcessing: 0,
		engine.StateCompleted:  0,
		engine.StateFailed:     0,
		engine.StateDead:       0,
	}
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counts by state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[engine.State(st)] = n
	}
	return out, rows.Err()
}

// MetricsSnapshot computes the avg duration of the last 20 completions and
// the count completed in the last minute, grounded in
// original_source/queuectl/database.py::get_metrics.
type MetricsSnapshot struct {
	AvgDurationMS    *int64
	CompletedLastMin int
}

func (s *Store) MetricsSnapshot(now time.Time) (MetricsSnapshot, error) {
	var snap MetricsSnapshot

	row := s.db.QueryRow(`
SELECT AVG(duration_ms) FROM (
	SELECT duration_ms FROM jobs
	WHERE state = ? AND duration_ms IS NOT NULL
	ORDER BY completed_at DESC LIMIT 20
)`, engine.StateCompleted)
	var avg sql.NullFloat64
	if err := row.Scan(&avg); err != nil {
		return snap, fmt.Errorf("avg duration: %w", err)
	}
	if avg.Valid {
		v := int64(avg.Float64)
		snap.AvgDurationMS = &v
	}

	cutoff := formatTime(now.Add(-60 * time.Second))
	row = s.db.QueryRow(`
SELECT COUNT(*) FROM jobs
WHERE state = ? AND completed_at IS NOT NULL AND completed_at >= ?`,
		engine.StateCompleted, cutoff)
	if err := row.Scan(&snap.CompletedLastMin); err != nil {
		return snap, fmt.Errorf("completed last minute: %w", err)
	}
	return snap, nil
}

func requireRowsAffected(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s", msg)
	}
	return nil
}
