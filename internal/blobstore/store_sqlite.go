package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"genstudio/internal/core"
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the cached_images table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cached_images (
			id TEXT PRIMARY KEY,
			content BLOB NOT NULL,
			original_reference TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			byte_size INTEGER NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			metadata TEXT
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached_images table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_cached_images_created_at ON cached_images(created_at)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, img *core.CachedImage) error {
	var metadata any
	if data := marshalMetadata(img.Metadata, img.ID); data != nil {
		metadata = string(data)
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO cached_images
		(id, content, original_reference, mime_type, byte_size, checksum, width, height, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.Content, img.OriginalReference, img.MimeType, img.ByteSize, img.Checksum,
		img.Width, img.Height, img.CreatedAt.UnixMilli(), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to write image %s: %w", img.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.CachedImage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content, original_reference, mime_type, byte_size, checksum,
		width, height, created_at, metadata FROM cached_images WHERE id = ? LIMIT 1`, id)

	var img core.CachedImage
	var createdAt int64
	var metadata sql.NullString
	err := row.Scan(&img.ID, &img.Content, &img.OriginalReference, &img.MimeType, &img.ByteSize, &img.Checksum,
		&img.Width, &img.Height, &createdAt, &metadata)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	img.CreatedAt = time.UnixMilli(createdAt).UTC()
	if metadata.Valid {
		img.Metadata = unmarshalMetadata([]byte(metadata.String), img.ID)
	}
	return &img, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*core.CachedImage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, original_reference, mime_type, byte_size, checksum,
		width, height, created_at, metadata FROM cached_images`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var out []*core.CachedImage
	for rows.Next() {
		var img core.CachedImage
		var createdAt int64
		var metadata sql.NullString
		if err := rows.Scan(&img.ID, &img.OriginalReference, &img.MimeType, &img.ByteSize, &img.Checksum,
			&img.Width, &img.Height, &createdAt, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		img.CreatedAt = time.UnixMilli(createdAt).UTC()
		if metadata.Valid {
			img.Metadata = unmarshalMetadata([]byte(metadata.String), img.ID)
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cached_images WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cached_images"); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}
	return nil
}

// Close is a no-op; the database is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
