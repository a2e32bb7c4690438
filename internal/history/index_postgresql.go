package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genstudio/internal/core"
)

const postgresColumns = `id, timestamp, prompt, negative_prompt, model, status, params, reference_images, image_ids`

// PostgreSQLIndex implements Index for PostgreSQL.
type PostgreSQLIndex struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLIndex creates the history_records table if needed.
func NewPostgreSQLIndex(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS history_records (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			prompt TEXT NOT NULL,
			negative_prompt TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			params JSONB NOT NULL,
			reference_images JSONB,
			image_ids TEXT[] NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create history_records table: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_history_records_timestamp ON history_records(timestamp)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &PostgreSQLIndex{pool: pool}, nil
}

func (x *PostgreSQLIndex) Save(ctx context.Context, rec *core.HistoryRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	var refs []byte
	if len(rec.ReferenceImages) > 0 {
		if refs, err = json.Marshal(rec.ReferenceImages); err != nil {
			return fmt.Errorf("failed to encode reference images: %w", err)
		}
	}

	_, err = x.pool.Exec(ctx, `INSERT INTO history_records (`+postgresColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			prompt = EXCLUDED.prompt,
			negative_prompt = EXCLUDED.negative_prompt,
			model = EXCLUDED.model,
			status = EXCLUDED.status,
			params = EXCLUDED.params,
			reference_images = EXCLUDED.reference_images,
			image_ids = EXCLUDED.image_ids`,
		rec.ID, rec.Timestamp.UTC(), rec.Prompt, rec.NegativePrompt, rec.Model, rec.Status,
		params, refs, nonNil(rec.ImageIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to save history record %s: %w", rec.ID, err)
	}
	return nil
}

func (x *PostgreSQLIndex) Count(ctx context.Context) (int, error) {
	var total int
	if err := x.pool.QueryRow(ctx, "SELECT COUNT(*) FROM history_records").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return total, nil
}

func (x *PostgreSQLIndex) Page(ctx context.Context, offset, size int) ([]*core.HistoryRecord, error) {
	return x.query(ctx, `SELECT `+postgresColumns+` FROM history_records
		ORDER BY timestamp DESC, id DESC LIMIT $1 OFFSET $2`, size, offset)
}

func (x *PostgreSQLIndex) Search(ctx context.Context, query string) ([]*core.HistoryRecord, error) {
	if query == "" {
		return x.query(ctx, `SELECT `+postgresColumns+` FROM history_records ORDER BY timestamp DESC, id DESC`)
	}
	return x.query(ctx, `SELECT `+postgresColumns+` FROM history_records
		WHERE prompt ILIKE $1 ESCAPE '\' ORDER BY timestamp DESC, id DESC`,
		"%"+escapeLikeWildcards(query)+"%")
}

func (x *PostgreSQLIndex) Get(ctx context.Context, id string) (*core.HistoryRecord, error) {
	records, err := x.query(ctx, `SELECT `+postgresColumns+` FROM history_records WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, core.ErrNotFound
	}
	return records[0], nil
}

func (x *PostgreSQLIndex) Delete(ctx context.Context, id string) error {
	if _, err := x.pool.Exec(ctx, "DELETE FROM history_records WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete history record %s: %w", id, err)
	}
	return nil
}

func (x *PostgreSQLIndex) Clear(ctx context.Context) error {
	if _, err := x.pool.Exec(ctx, "DELETE FROM history_records"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is managed by the storage layer.
func (x *PostgreSQLIndex) Close() error {
	return nil
}

func (x *PostgreSQLIndex) query(ctx context.Context, query string, args ...any) ([]*core.HistoryRecord, error) {
	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.HistoryRecord, error) {
		var rec core.HistoryRecord
		var params, refs []byte
		if err := row.Scan(&rec.ID, &rec.Timestamp, &rec.Prompt, &rec.NegativePrompt, &rec.Model, &rec.Status,
			&params, &refs, &rec.ImageIDs); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		rec.ImageIDs = nonNil(rec.ImageIDs)
		decodeColumns(&rec, params, refs)
		return &rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history rows: %w", err)
	}
	if records == nil {
		records = []*core.HistoryRecord{}
	}
	return records, nil
}
