package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"genstudio/internal/core"
)

const sqliteColumns = `id, timestamp, prompt, negative_prompt, model, status, params, reference_images, image_ids`

// SQLiteIndex implements Index for SQLite databases.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex creates the history_records table if needed.
func NewSQLiteIndex(ctx context.Context, db *sql.DB) (*SQLiteIndex, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS history_records (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			negative_prompt TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			params TEXT NOT NULL,
			reference_images TEXT,
			image_ids TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create history_records table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_history_records_timestamp ON history_records(timestamp)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &SQLiteIndex{db: db}, nil
}

func (x *SQLiteIndex) Save(ctx context.Context, rec *core.HistoryRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	imageIDs, err := json.Marshal(nonNil(rec.ImageIDs))
	if err != nil {
		return fmt.Errorf("failed to encode image ids: %w", err)
	}
	var refs any
	if len(rec.ReferenceImages) > 0 {
		data, err := json.Marshal(rec.ReferenceImages)
		if err != nil {
			return fmt.Errorf("failed to encode reference images: %w", err)
		}
		refs = string(data)
	}

	_, err = x.db.ExecContext(ctx, `INSERT OR REPLACE INTO history_records (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.Prompt, rec.NegativePrompt, rec.Model, rec.Status,
		string(params), refs, string(imageIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to save history record %s: %w", rec.ID, err)
	}
	return nil
}

func (x *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var total int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history_records").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return total, nil
}

func (x *SQLiteIndex) Page(ctx context.Context, offset, size int) ([]*core.HistoryRecord, error) {
	return x.query(ctx, `SELECT `+sqliteColumns+` FROM history_records
		ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, size, offset)
}

// Search scans the whole table and filters in Go; SQLite's LIKE folds ASCII only.
func (x *SQLiteIndex) Search(ctx context.Context, query string) ([]*core.HistoryRecord, error) {
	records, err := x.query(ctx, `SELECT `+sqliteColumns+` FROM history_records ORDER BY timestamp DESC, id DESC`)
	if err != nil || query == "" {
		return records, err
	}
	matches := make([]*core.HistoryRecord, 0)
	for _, rec := range records {
		if promptContains(rec.Prompt, query) {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

func (x *SQLiteIndex) Get(ctx context.Context, id string) (*core.HistoryRecord, error) {
	records, err := x.query(ctx, `SELECT `+sqliteColumns+` FROM history_records WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound
	}
	return records[0], nil
}

func (x *SQLiteIndex) Delete(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, "DELETE FROM history_records WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete history record %s: %w", id, err)
	}
	return nil
}

func (x *SQLiteIndex) Clear(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, "DELETE FROM history_records"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close is a no-op; the database is managed by the storage layer.
func (x *SQLiteIndex) Close() error {
	return nil
}

func (x *SQLiteIndex) query(ctx context.Context, query string, args ...any) ([]*core.HistoryRecord, error) {
	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := make([]*core.HistoryRecord, 0)
	for rows.Next() {
		var rec core.HistoryRecord
		var ts int64
		var params, imageIDs string
		var refs sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.Prompt, &rec.NegativePrompt, &rec.Model, &rec.Status,
			&params, &refs, &imageIDs); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		decodeColumns(&rec, []byte(params), []byte(refs.String))
		if err := json.Unmarshal([]byte(imageIDs), &rec.ImageIDs); err != nil {
			slog.Warn("failed to decode history image ids", "id", rec.ID, "error", err)
		}
		rec.ImageIDs = nonNil(rec.ImageIDs)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return records, nil
}

// decodeColumns fills the JSON-encoded columns. A corrupt column is logged
// and left empty so one bad row does not hide the rest of the history.
func decodeColumns(rec *core.HistoryRecord, params, refs []byte) {
	if err := json.Unmarshal(params, &rec.Params); err != nil {
		slog.Warn("failed to decode history params", "id", rec.ID, "error", err)
	}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &rec.ReferenceImages); err != nil {
			slog.Warn("failed to decode history reference images", "id", rec.ID, "error", err)
		}
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
