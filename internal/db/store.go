package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnknownKey is returned for keys outside Keys.
var ErrUnknownKey = errors.New("unknown setting")

const schema = `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updatedAt REAL NOT NULL
	);
`

// Store provides access to the settings database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "teleprompter", "settings.sqlite")
}

// Open opens (creating if needed) the database at path with WAL.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return open(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
}

// OpenMemory opens a private in-memory database.
func OpenMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the setting for key. ok is false when it was never set.
func (s *Store) Get(key string) (setting Setting, ok bool, err error) {
	if err := checkKey(key); err != nil {
		return Setting{}, false, err
	}

	row := s.db.QueryRow(`SELECT key, value, updatedAt FROM settings WHERE key = ?`, key)
	var updatedAt float64
	if err := row.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Setting{}, false, nil
		}
		return Setting{}, false, fmt.Errorf("scan setting: %w", err)
	}
	setting.UpdatedAt = timeFromUnix(updatedAt)
	return setting, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = excluded.updatedAt
	`, key, value, unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Unset removes key. Removing a missing key is not an error.
func (s *Store) Unset(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting ordered by key.
func (s *Store) All() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value, updatedAt FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		var updatedAt float64
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		st.UpdatedAt = timeFromUnix(updatedAt)
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

func checkKey(key string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
