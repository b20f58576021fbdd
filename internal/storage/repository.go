package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rareport/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists upload summaries. It never stores transaction
// rows.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertSummary = `INSERT INTO upload_journal
    (session_id, filename, bytes, rows_read, rows_kept, duplicates_removed,
     bad_timestamps, bad_amounts, status, error, received_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Record implements journal.Recorder.
func (r *SQLiteRepository) Record(ctx context.Context, s core.UploadSummary) error {
	_, err := r.db.ExecContext(ctx, insertSummary,
		s.SessionID, s.Filename, s.Bytes, s.RowsRead, s.RowsKept, s.DuplicatesRemoved,
		s.BadTimestamps, s.BadAmounts, s.Status, s.Error,
		s.ReceivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert upload summary: %w", err)
	}
	return nil
}

const selectRecent = `SELECT session_id, filename, bytes, rows_read, rows_kept, duplicates_removed,
    bad_timestamps, bad_amounts, status, error, received_at
FROM upload_journal
ORDER BY id DESC
LIMIT ?`

// Recent implements journal.Lister.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]core.UploadSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload journal: %w", err)
	}
	defer rows.Close()

	var out []core.UploadSummary
	for rows.Next() {
		var (
			s        core.UploadSummary
			received string
		)
		if err := rows.Scan(&s.SessionID, &s.Filename, &s.Bytes, &s.RowsRead, &s.RowsKept,
			&s.DuplicatesRemoved, &s.BadTimestamps, &s.BadAmounts, &s.Status, &s.Error, &received); err != nil {
			return nil, fmt.Errorf("scan upload summary: %w", err)
		}
		s.ReceivedAt, err = time.Parse(time.RFC3339Nano, received)
		if err != nil {
			return nil, fmt.Errorf("parse received_at %q: %w", received, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload journal: %w", err)
	}
	return out, nil
}
