// Package gallery joins history records with their cached images.
//
// The blob store and the history index are only eventually consistent:
// eviction removes images without touching the records that reference them.
// Reads here drop image ids that no longer resolve instead of failing the record.
package gallery

import (
	"context"
	"log/slog"

	"genstudio/internal/core"
	"genstudio/internal/history"
)

// Images is the part of the blob store the gallery reads and deletes from.
type Images interface {
	Get(ctx context.Context, id string) (*core.CachedImage, bool)
	Delete(ctx context.Context, id string) bool
	Clear(ctx context.Context) bool
}

// Records is the part of the history index the gallery uses.
type Records interface {
	CountAll(ctx context.Context) int
	Page(ctx context.Context, page, size int) []*core.HistoryRecord
	Search(ctx context.Context, query string) []*core.HistoryRecord
	Get(ctx context.Context, id string) (*core.HistoryRecord, bool)
	Delete(ctx context.Context, id string) bool
	Clear(ctx context.Context) bool
}

// ResolvedRecord is a history record with the images that still exist.
type ResolvedRecord struct {
	*core.HistoryRecord
	Images []*core.CachedImage `json:"images"`
}

// PageResult is one page of resolved history.
type PageResult struct {
	Records []*ResolvedRecord `json:"records"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
	HasMore bool              `json:"has_more"`
}

// Gallery is the read-side view over history and images.
type Gallery struct {
	records Records
	images  Images
}

// New creates a Gallery.
func New(records Records, images Images) *Gallery {
	return &Gallery{records: records, images: images}
}

// Page returns page number page of size records, newest first, with images resolved.
func (g *Gallery) Page(ctx context.Context, page, size int) *PageResult {
	page, size, offset := history.NormalizePage(page, size)
	total := g.records.CountAll(ctx)
	records := g.records.Page(ctx, page, size)

	return &PageResult{
		Records: g.resolveAll(ctx, records),
		Total:   total,
		Page:    page,
		Size:    size,
		HasMore: offset+len(records) < total,
	}
}

// Search returns every record whose prompt contains query, with images resolved.
func (g *Gallery) Search(ctx context.Context, query string) []*ResolvedRecord {
	return g.resolveAll(ctx, g.records.Search(ctx, query))
}

// Get returns one resolved record.
func (g *Gallery) Get(ctx context.Context, id string) (*ResolvedRecord, bool) {
	rec, ok := g.records.Get(ctx, id)
	if !ok {
		return nil, false
	}
	return g.Resolve(ctx, rec), true
}

// Resolve looks up each image id of rec in order. Ids that no longer resolve
// are left out of Images; rec itself is not modified.
func (g *Gallery) Resolve(ctx context.Context, rec *core.HistoryRecord) *ResolvedRecord {
	resolved := &ResolvedRecord{HistoryRecord: rec, Images: make([]*core.CachedImage, 0, len(rec.ImageIDs))}
	for _, id := range rec.ImageIDs {
		img, ok := g.images.Get(ctx, id)
		if !ok {
			slog.Debug("history image no longer cached", "record_id", rec.ID, "image_id", id)
			continue
		}
		resolved.Images = append(resolved.Images, img)
	}
	return resolved
}

func (g *Gallery) resolveAll(ctx context.Context, records []*core.HistoryRecord) []*ResolvedRecord {
	out := make([]*ResolvedRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, g.Resolve(ctx, rec))
	}
	return out
}

// DeleteRecord deletes every image of record id one by one, then the record.
// Image delete failures are logged and do not stop the record delete.
// Deleting an unknown id succeeds.
func (g *Gallery) DeleteRecord(ctx context.Context, id string) bool {
	if rec, ok := g.records.Get(ctx, id); ok {
		for _, imageID := range rec.ImageIDs {
			if !g.images.Delete(ctx, imageID) {
				slog.Warn("failed to delete image of history record", "record_id", id, "image_id", imageID)
			}
		}
	}
	return g.records.Delete(ctx, id)
}

// DeleteRecords deletes ids sequentially and returns how many succeeded.
// Earlier deletions are kept when a later one fails.
func (g *Gallery) DeleteRecords(ctx context.Context, ids []string) int {
	deleted := 0
	for _, id := range ids {
		if g.DeleteRecord(ctx, id) {
			deleted++
		}
	}
	return deleted
}

// ClearAll empties both the history and the image cache.
func (g *Gallery) ClearAll(ctx context.Context) bool {
	historyOK := g.records.Clear(ctx)
	imagesOK := g.images.Clear(ctx)
	return historyOK && imagesOK
}
