// Package store persists user settings, the submit-armed flag, and
// per-problem dedupe timestamps in a local SQLite database. Settings and
// dedupe entries live in separate tables: dedupe state is local bookkeeping
// and must never travel with synced configuration.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Well-known setting keys.
const (
	KeyToken     = "github.token"
	KeyUserLogin = "github.user.login"
	KeyRepoOwner = "repo.owner"
	KeyRepoName  = "repo.name"
	KeyRepoURL   = "repo.url"

	keyArmed = "watch.armed"
)

// ErrNotFound is returned when a setting key has no stored value.
var ErrNotFound = errors.New("setting not found")

// Store manages settings and dedupe state using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at the given database path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the settings and dedupe tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS dedupe (
		key TEXT PRIMARY KEY,
		marked_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves a setting value. Returns ErrNotFound when the key is unset.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %q: %w", key, err)
	}
	return value, nil
}

// Set stores a setting value, replacing any previous one.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a setting. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Arm records that a submission is in flight for taskURL. The flag survives
// process restarts and is cleared only by Disarm.
func (s *Store) Arm(taskURL string) error {
	return s.Set(keyArmed, taskURL)
}

// Disarm clears the armed flag.
func (s *Store) Disarm() error {
	return s.Delete(keyArmed)
}

// Armed reports whether a submission is currently awaited.
func (s *Store) Armed() (bool, error) {
	_, err := s.Get(keyArmed)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClaimDedupe reports whether a publish for key may proceed. An entry younger
// than window suppresses the attempt without refreshing its timestamp; any
// other state records the current time before returning, so the claim is made
// before the caller starts network I/O. Stale entries are overwritten rather
// than evicted.
func (s *Store) ClaimDedupe(key string, window time.Duration) (bool, error) {
	now := time.Now()

	var markedAt string
	err := s.db.QueryRow("SELECT marked_at FROM dedupe WHERE key = ?", key).Scan(&markedAt)
	switch {
	case err == sql.ErrNoRows:
		// First sighting of this key.
	case err != nil:
		return false, fmt.Errorf("failed to query dedupe entry: %w", err)
	default:
		if now.Sub(parseTime(markedAt)) < window {
			return false, nil
		}
	}

	_, err = s.db.Exec("INSERT OR REPLACE INTO dedupe (key, marked_at) VALUES (?, ?)",
		key, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to record dedupe entry: %w", err)
	}
	return true, nil
}

// Helper functions for time formatting
func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
