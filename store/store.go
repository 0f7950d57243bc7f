// Package store persists small pieces of client state in a SQLite database:
// whether the client has ever connected, and which update the user was last
// told about.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yllada/vpn-client/common"
)

const (
	keyRanBefore           = "ran_before"
	keyLastNotifiedVersion = "last_notified_version"
)

const getQuery = `SELECT value FROM state WHERE key = ?`
const setQuery = `
INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// Store is a key/value table in SQLite. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	ranBefore *bool // nil until first read
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=busy_timeout(5000)&_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The GUI and the update checker both write; one connection avoids
	// SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite setup: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DefaultPath returns the database location in the data directory.
func DefaultPath() (string, error) {
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.StateFileName), nil
}

// Migrate creates the state table if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, setQuery, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RanBefore reports whether the client has ever connected successfully. The
// first call reads the database; later calls use the cached value.
func (s *Store) RanBefore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ranBefore != nil {
		return *s.ranBefore, nil
	}
	value, ok, err := s.get(ctx, keyRanBefore)
	if err != nil {
		return false, err
	}
	ran := ok && value == "true"
	s.ranBefore = &ran
	return ran, nil
}

// SetRanBefore records a successful connection. Only the first call writes.
func (s *Store) SetRanBefore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ranBefore != nil && *s.ranBefore {
		return nil
	}
	if err := s.set(ctx, keyRanBefore, "true"); err != nil {
		return err
	}
	ran := true
	s.ranBefore = &ran
	return nil
}

// LastNotifiedVersion returns the last release the user was told about.
func (s *Store) LastNotifiedVersion(ctx context.Context) (string, bool, error) {
	return s.get(ctx, keyLastNotifiedVersion)
}

// SetLastNotifiedVersion records that the user was told about version.
func (s *Store) SetLastNotifiedVersion(ctx context.Context, version string) error {
	return s.set(ctx, keyLastNotifiedVersion, version)
}
