package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/queuectl/queuectl/internal/engine"
)

// configKeys enumerates the engine tuneables a caller may get/set, along
// with how to parse and apply them onto an engine.Config.
var configKeys = map[string]struct {
	get func(engine.Config) string
	set func(*engine.Config, string) error
}{
	"max-retries": {
		get: func(c engine.Config) string { return strconv.Itoa(c.MaxRetries) },
		set: func(c *engine.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return engine.ErrInvalidConfigValue
			}
			c.MaxRetries = n
			return nil
		},
	},
	"backoff-base": {
		get: func(c engine.Config) string { return strconv.Itoa(c.BackoffBase) },
		set: func(c *engine.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return engine.ErrInvalidConfigValue
			}
			c.BackoffBase = n
			return nil
		},
	},
	"worker-poll-interval": {
		get: func(c engine.Config) string { return strconv.FormatFloat(c.WorkerPollInterval, 'f', -1, 64) },
		set: func(c *engine.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return engine.ErrInvalidConfigValue
			}
			c.WorkerPollInterval = f
			return nil
		},
	},
}

// GetConfig reads the engine's tuneables from the config table, falling
// back to engine.DefaultConfig for any key never written.
func (s *Store) GetConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	rows, err := s.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return cfg, fmt.Errorf("get config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return cfg, fmt.Errorf("scan config row: %w", err)
		}
		if field, ok := configKeys[key]; ok {
			if err := field.set(&cfg, value); err != nil {
				return cfg, fmt.Errorf("config key %q: %w", key, err)
			}
		}
	}
	return cfg, rows.Err()
}

// SetConfig validates and persists a single tuneable by name.
func (s *Store) SetConfig(key, value string) error {
	field, ok := configKeys[key]
	if !ok {
		return engine.ErrUnknownConfigKey
	}
	cfg := engine.DefaultConfig()
	if err := field.set(&cfg, value); err != nil {
		return err
	}

	_, err := s.db.Exec(`
INSERT INTO config (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

// GetConfigValue returns the raw string for a single key, as currently
// persisted (or its default if unset), for `config get <key>`.
func (s *Store) GetConfigValue(key string) (string, error) {
	field, ok := configKeys[key]
	if !ok {
		return "", engine.ErrUnknownConfigKey
	}
	var value string
	row := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key)
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		cfg := engine.DefaultConfig()
		return field.get(cfg), nil
	}
	if err != nil {
		return "", fmt.Errorf("get config value: %w", err)
	}
	return value, nil
}
