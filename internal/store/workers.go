package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/queuectl/queuectl/internal/engine"
)

// RegisterWorker inserts a new worker registration row, replacing any prior
// row with the same id (a restart reusing an id starts a fresh record).
func (s *Store) RegisterWorker(id string, pid int, now time.Time) error {
	_, err := s.db.Exec(`
INSERT INTO workers (id, pid, started_at, last_heartbeat, stopped_at)
VALUES (?, ?, ?, ?, NULL)
ON CONFLICT(id) DO UPDATE SET
	pid = excluded.pid, started_at = excluded.started_at,
	last_heartbeat = excluded.last_heartbeat, stopped_at = NULL`,
		id, pid, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	return nil
}

// HeartbeatWorker bumps last_heartbeat for a live worker.
func (s *Store) HeartbeatWorker(id string, now time.Time) error {
	_, err := s.db.Exec(`UPDATE workers SET last_heartbeat = ? WHERE id = ?`, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("heartbeat worker: %w", err)
	}
	return nil
}

// StopWorker marks a worker registration as stopped; it is kept, not
// deleted, so the dashboard can show recently-exited workers.
func (s *Store) StopWorker(id string, now time.Time) error {
	_, err := s.db.Exec(`UPDATE workers SET stopped_at = ? WHERE id = ?`, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	return nil
}

// ListWorkers returns every worker registration, most recently started first.
func (s *Store) ListWorkers() ([]*engine.WorkerRegistration, error) {
	rows, err := s.db.Query(`
SELECT id, pid, started_at, last_heartbeat, stopped_at FROM workers
ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var out []*engine.WorkerRegistration
	for rows.Next() {
		var w engine.WorkerRegistration
		var startedAt, lastHeartbeat string
		var stoppedAt sql.NullString
		if err := rows.Scan(&w.ID, &w.PID, &startedAt, &lastHeartbeat, &stoppedAt); err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		var err error
		if w.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if w.LastHeartbeat, err = parseTime(lastHeartbeat); err != nil {
			return nil, fmt.Errorf("parse last_heartbeat: %w", err)
		}
		if w.StoppedAt, err = scanNullableTime(stoppedAt); err != nil {
			return nil, fmt.Errorf("parse stopped_at: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// ActiveWorkerCount counts workers with no stopped_at and a heartbeat newer
// than staleAfter, for the status surface.
func (s *Store) ActiveWorkerCount(now time.Time, staleAfter time.Duration) (int, error) {
	var n int
	row := s.db.QueryRow(`
SELECT COUNT(*) FROM workers
WHERE stopped_at IS NULL AND last_heartbeat >= ?`, formatTime(now.Add(-staleAfter)))
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("active worker count: %w", err)
	}
	return n, nil
}
