package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoAuth is returned when no authentication is stored
var ErrNoAuth = errors.New("no authentication stored")

// ErrActivityNotFound is returned when an activity doesn't exist
var ErrActivityNotFound = errors.New("activity not found")

// ErrWeekNotFound is returned when no weekly row exists for the week
var ErrWeekNotFound = errors.New("week not found")

// ErrNoJob is returned when no recompute job is ready to be claimed
var ErrNoJob = errors.New("no recompute job available")

// ErrDuplicateVersion is returned when a zone configuration already exists
// for the athlete on the given effective date
var ErrDuplicateVersion = errors.New("zone configuration already exists for effective date")

// DateLayout is the storage format of calendar dates (activity dates, week starts,
// effective dates). Dates are civil dates with no time zone attached.
const DateLayout = "2006-01-02"

// DB wraps the SQLite connection used by every component of the engine.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating it if necessary.
// An empty path resolves to ~/.paceload/data.db
func Open(path string) (*DB, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("getting db path: %w", err)
		}
		path = p
	}

	// Ensure directory exists
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions from
	// failing with SQLITE_BUSY and keeps :memory: databases on one handle.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{sqlDB}, nil
}

// DefaultPath returns the path to the SQLite database file
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".paceload", "data.db"), nil
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a stored calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Day truncates t to its calendar date at midnight UTC, keeping the wall-clock
// date of t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// timestampLayout is fixed-width so stored timestamps compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Rows written by SQLite's CURRENT_TIMESTAMP default
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
