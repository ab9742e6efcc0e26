// Package store provides the durable, transactional persistence layer for
// jobs, config, and worker registrations. Every mutation runs under a
// serialized write transaction (SPEC_FULL.md §5): the underlying *sql.DB is
// capped at one open connection so SQLite's own locking, combined with
// BEGIN IMMEDIATE, gives a single writer at a time.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed implementation of the engine's durable state.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) the parent directory and opens the SQLite store
// at dbPath, running migrations before returning.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// A single connection makes SQLite's own lock serialize every write,
	// which is what lets ClaimNext's guarded UPDATE be race-free without an
	// in-process mutex (SPEC_FULL.md §5).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenReadOnly opens the same SQLite file without running migrations, for
// collaborators that only read, such as the dashboard (SPEC_FULL.md §12.1),
// so their queries never contend with the single writer connection the
// worker pool holds open.
func OpenReadOnly(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db read-only: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	command         TEXT NOT NULL,
	state           TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 3,
	priority        INTEGER NOT NULL DEFAULT 0,
	run_at          TEXT,
	timeout_seconds INTEGER NOT NULL DEFAULT 300,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	next_retry_at   TEXT,
	completed_at    TEXT,
	error_message   TEXT,
	last_stdout     TEXT,
	last_stderr     TEXT,
	duration_ms     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_next_retry ON jobs(state, next_retry_at);
CREATE INDEX IF NOT EXISTS idx_jobs_dispatch ON jobs(state, priority DESC, created_at ASC, id ASC);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workers (
	id             TEXT PRIMARY KEY,
	pid            INTEGER NOT NULL,
	started_at     TEXT NOT NULL,
	last_heartbeat TEXT NOT NULL,
	stopped_at     TEXT
);
`
	_, err := s.db.Exec(schema)
	return err
}

// sqliteTimeLayout always writes nine fraction digits so that the stored
// strings sort in the same order as the instants they encode.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
