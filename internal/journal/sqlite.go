package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/s3mirror/internal/dbx"
)

const schema = `
CREATE TABLE IF NOT EXISTS upload_outcomes (
  task_id     TEXT PRIMARY KEY,
  remote_key  TEXT NOT NULL,
  local_path  TEXT NOT NULL,
  status      TEXT NOT NULL,
  attempts    INTEGER NOT NULL,
  detail      TEXT NOT NULL DEFAULT '',
  recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upload_outcomes_recorded_at
  ON upload_outcomes (recorded_at);
`

// Open opens (creating if needed) the journal database at path and applies
// the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// modernc sqlite does not tolerate concurrent writers on one handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return db, nil
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	query := `INSERT INTO upload_outcomes (task_id, remote_key, local_path, status, attempts, detail, recorded_at)
			values (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(task_id) DO UPDATE SET status = excluded.status,
				attempts = excluded.attempts,
				detail = excluded.detail,
				recorded_at = excluded.recorded_at
	`
	_, err := r.db.ExecContext(ctx, query,
		e.TaskID, e.RemoteKey, e.LocalPath, e.Status, e.Attempts, e.Detail, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT task_id, remote_key, local_path, status, attempts, detail, recorded_at
			FROM upload_outcomes ORDER BY recorded_at DESC, task_id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.TaskID, &e.RemoteKey, &e.LocalPath, &e.Status, &e.Attempts, &e.Detail, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
