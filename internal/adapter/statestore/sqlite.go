// Package statestore persists stream cursors in a local SQLite database.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS cursors (
	subject    TEXT PRIMARY KEY,
	ts         TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStore is a domain.CursorStore backed by a single-file database.
type SQLiteStore struct {
	db *sql.DB
}

func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// The store is touched by one goroutine, but sqlite rejects concurrent
	// writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, subject string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT ts FROM cursors WHERE subject = ?`, subject).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: parse %q: %w", raw, err)
	}
	return ts, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, subject string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursors (subject, ts, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET ts = excluded.ts, updated_at = excluded.updated_at`,
		subject,
		ts.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
