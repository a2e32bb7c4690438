package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	"genstudio/internal/core"
	"genstudio/internal/storage"
)

// Store is the persistence backend behind Cache.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes img, replacing any entry with the same ID.
	Put(ctx context.Context, img *core.CachedImage) error
	// Get returns core.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*core.CachedImage, error)
	// List returns every entry without content.
	List(ctx context.Context) ([]*core.CachedImage, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	// Close releases store resources. The shared connection is owned by storage.
	Close() error
}

// NewStore builds the Store matching the storage backend.
func NewStore(ctx context.Context, store storage.Storage) (Store, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// marshalMetadata encodes metadata for SQL storage. Returns nil for empty maps.
func marshalMetadata(metadata map[string]any, id string) []byte {
	if len(metadata) == 0 {
		return nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		slog.Warn("failed to marshal image metadata", "error", err, "id", id)
		return []byte("{}")
	}
	return data
}

func unmarshalMetadata(data []byte, id string) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		slog.Warn("failed to unmarshal image metadata", "error", err, "id", id)
		return nil
	}
	return metadata
}

func cloneImage(img *core.CachedImage, withContent bool) *core.CachedImage {
	cp := *img
	cp.DisplayURL = ""
	cp.Metadata = maps.Clone(img.Metadata)
	if withContent {
		cp.Content = append([]byte(nil), img.Content...)
	} else {
		cp.Content = nil
	}
	return &cp
}
