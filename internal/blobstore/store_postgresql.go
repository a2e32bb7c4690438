package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genstudio/internal/core"
)

// PostgreSQLStore implements Store for PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the cached_images table if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cached_images (
			id TEXT PRIMARY KEY,
			content BYTEA NOT NULL,
			original_reference TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			byte_size BIGINT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			metadata JSONB
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached_images table: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_cached_images_created_at ON cached_images(created_at)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) Put(ctx context.Context, img *core.CachedImage) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cached_images
		(id, content, original_reference, mime_type, byte_size, checksum, width, height, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			original_reference = EXCLUDED.original_reference,
			mime_type = EXCLUDED.mime_type,
			byte_size = EXCLUDED.byte_size,
			checksum = EXCLUDED.checksum,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			created_at = EXCLUDED.created_at,
			metadata = EXCLUDED.metadata`,
		img.ID, img.Content, img.OriginalReference, img.MimeType, img.ByteSize, img.Checksum,
		img.Width, img.Height, img.CreatedAt.UTC(), marshalMetadata(img.Metadata, img.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to write image %s: %w", img.ID, err)
	}
	return nil
}

func (s *PostgreSQLStore) Get(ctx context.Context, id string) (*core.CachedImage, error) {
	var img core.CachedImage
	var metadata []byte
	err := s.pool.QueryRow(ctx, `SELECT id, content, original_reference, mime_type, byte_size, checksum,
		width, height, created_at, metadata FROM cached_images WHERE id = $1 LIMIT 1`, id).
		Scan(&img.ID, &img.Content, &img.OriginalReference, &img.MimeType, &img.ByteSize, &img.Checksum,
			&img.Width, &img.Height, &img.CreatedAt, &metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	img.CreatedAt = img.CreatedAt.UTC()
	img.Metadata = unmarshalMetadata(metadata, img.ID)
	return &img, nil
}

func (s *PostgreSQLStore) List(ctx context.Context) ([]*core.CachedImage, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, original_reference, mime_type, byte_size, checksum,
		width, height, created_at, metadata FROM cached_images`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var out []*core.CachedImage
	for rows.Next() {
		var img core.CachedImage
		var metadata []byte
		if err := rows.Scan(&img.ID, &img.OriginalReference, &img.MimeType, &img.ByteSize, &img.Checksum,
			&img.Width, &img.Height, &img.CreatedAt, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		img.CreatedAt = img.CreatedAt.UTC()
		img.Metadata = unmarshalMetadata(metadata, img.ID)
		out = append(out, &img)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM cached_images WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return nil
}

func (s *PostgreSQLStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM cached_images"); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is managed by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
