// Package history is the index of successful generations.
//
// Index is the backend contract (SQLite, PostgreSQL, MongoDB or memory).
// Service wraps an Index and turns backend failures into logged boolean or
// empty results, which is what the generation pipeline and the gallery consume.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"genstudio/internal/core"
	"genstudio/internal/storage"
)

// Page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Index stores history records ordered by timestamp, newest first.
// Implementations must be safe for concurrent use.
type Index interface {
	// Save upserts rec by ID.
	Save(ctx context.Context, rec *core.HistoryRecord) error
	Count(ctx context.Context) (int, error)
	// Page returns up to size records starting at offset (already normalized).
	Page(ctx context.Context, offset, size int) ([]*core.HistoryRecord, error)
	// Search matches query case-insensitively against prompts over the whole index.
	// An empty query matches every record.
	Search(ctx context.Context, query string) ([]*core.HistoryRecord, error)
	// Get returns core.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*core.HistoryRecord, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// NewIndex builds the Index matching the storage backend.
func NewIndex(ctx context.Context, store storage.Storage) (Index, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteIndex(ctx, store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLIndex(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBIndex(ctx, store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

// NormalizePage clamps page to >= 1 and size to [1, MaxPageSize]
// (DefaultPageSize when non-positive), and returns the matching offset.
func NormalizePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size, (page - 1) * size
}

// Service is the failure-tolerant facade over an Index.
type Service struct {
	index Index
}

// NewService wraps index.
func NewService(index Index) *Service {
	return &Service{index: index}
}

// Save upserts rec. Records without an ID are rejected.
func (s *Service) Save(ctx context.Context, rec *core.HistoryRecord) bool {
	if rec == nil || rec.ID == "" {
		slog.Warn("refusing to save history record without id")
		return false
	}
	if rec.Status == "" {
		rec.Status = core.RecordStatusSuccess
	}
	if err := s.index.Save(ctx, rec); err != nil {
		slog.Error("failed to save history record", "id", rec.ID, "error", err)
		return false
	}
	return true
}

// CountAll returns the number of records, or 0 when the index is unreadable.
func (s *Service) CountAll(ctx context.Context) int {
	n, err := s.index.Count(ctx)
	if err != nil {
		slog.Error("failed to count history records", "error", err)
		return 0
	}
	return n
}

// Page returns page number page (1-based) of size records, newest first.
func (s *Service) Page(ctx context.Context, page, size int) []*core.HistoryRecord {
	_, size, offset := NormalizePage(page, size)
	records, err := s.index.Page(ctx, offset, size)
	if err != nil {
		slog.Error("failed to load history page", "page", page, "size", size, "error", err)
		return nil
	}
	return records
}

// Search returns every record whose prompt contains query, newest first.
// A blank query returns the full history.
func (s *Service) Search(ctx context.Context, query string) []*core.HistoryRecord {
	records, err := s.index.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		slog.Error("failed to search history", "error", err)
		return nil
	}
	return records
}

// Get returns the record with id.
func (s *Service) Get(ctx context.Context, id string) (*core.HistoryRecord, bool) {
	rec, err := s.index.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.Error("failed to read history record", "id", id, "error", err)
		}
		return nil, false
	}
	return rec, true
}

// Delete removes id. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) bool {
	if err := s.index.Delete(ctx, id); err != nil {
		slog.Error("failed to delete history record", "id", id, "error", err)
		return false
	}
	return true
}

// Clear removes every record.
func (s *Service) Clear(ctx context.Context) bool {
	if err := s.index.Clear(ctx); err != nil {
		slog.Error("failed to clear history", "error", err)
		return false
	}
	return true
}

// promptContains reports whether query occurs in prompt ignoring Unicode case.
func promptContains(prompt, query string) bool {
	return strings.Contains(strings.ToLower(prompt), strings.ToLower(query))
}

func escapeLikeWildcards(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
