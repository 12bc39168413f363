package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	defaultQueryTimeout = 15 * time.Second
	defaultBusyTimeout  = 5 * time.Second
	dirPermission       = 0o755
	memoryPath          = ":memory:"
)

// SQLiteStore implements Store on a single sqlite database file.
type SQLiteStore struct {
	db           *sql.DB
	queryTimeout time.Duration
	busyTimeout  time.Duration
	now          func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		queryTimeout: defaultQueryTimeout,
		busyTimeout:  defaultBusyTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: serialises writers and keeps ":memory:" databases and
	// per-connection pragmas stable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	qctx, cancel := s.bound(ctx)
	defer cancel()
	for _, p := range pragmas {
		if _, err := db.ExecContext(qctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if err := InitSchema(qctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func checkLimit(limit int) error {
	if limit < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}
