// Package blobstore persists generated image content keyed by image id.
//
// Cache is the service used by the rest of the application: it resolves
// locators into bytes, stamps size, checksum and dimensions, and converts
// every backend failure into a boolean result so callers never see storage
// errors. Store is the pluggable backend (SQLite, PostgreSQL, MongoDB or memory).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"genstudio/internal/core"
)

// DefaultEvictionTimeout bounds a single asynchronous eviction run.
const DefaultEvictionTimeout = 30 * time.Second

// Evictor enforces the cache limits. It is run after every successful Put.
type Evictor interface {
	Run(ctx context.Context) (int, error)
}

// Cache is the image cache service.
type Cache struct {
	store    Store
	resolver *Resolver
	now      func() time.Time

	mu      sync.RWMutex
	evictor Evictor
	pending sync.WaitGroup
}

// NewCache creates a Cache over store.
func NewCache(store Store, resolver *Resolver) *Cache {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Cache{
		store:    store,
		resolver: resolver,
		now:      time.Now,
	}
}

// SetEvictor installs the eviction engine triggered after each Put.
func (c *Cache) SetEvictor(e Evictor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictor = e
}

// Put resolves locator and writes the image under id, replacing any previous
// entry. It reports false when the locator cannot be resolved or the write fails.
func (c *Cache) Put(ctx context.Context, id, locator string, metadata map[string]any) bool {
	if strings.TrimSpace(id) == "" {
		slog.Warn("refusing to cache image without id")
		imagePuts.WithLabelValues("invalid").Inc()
		return false
	}

	payload, err := c.resolver.Resolve(ctx, locator)
	if err != nil {
		slog.Warn("failed to resolve image locator", "id", id, "error", err)
		imagePuts.WithLabelValues("resolve_error").Inc()
		return false
	}

	width, height, _ := probeDimensions(payload.Data)
	img := &core.CachedImage{
		ID:                id,
		Content:           payload.Data,
		OriginalReference: locator,
		MimeType:          payload.MimeType,
		ByteSize:          int64(len(payload.Data)),
		Checksum:          checksum(payload.Data),
		Width:             width,
		Height:            height,
		CreatedAt:         c.now().UTC().Truncate(time.Millisecond),
		Metadata:          metadata,
	}

	if err := c.store.Put(ctx, img); err != nil {
		slog.Error("failed to store image", "id", id, "error", err)
		imagePuts.WithLabelValues("store_error").Inc()
		return false
	}

	imagePuts.WithLabelValues("success").Inc()
	slog.Debug("image cached", "id", id, "bytes", img.ByteSize, "mime_type", img.MimeType)
	c.scheduleEviction()
	return true
}

func (c *Cache) scheduleEviction() {
	c.mu.RLock()
	evictor := c.evictor
	c.mu.RUnlock()
	if evictor == nil {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultEvictionTimeout)
		defer cancel()
		if _, err := evictor.Run(ctx); err != nil {
			slog.Warn("eviction after put failed", "error", err)
		}
	}()
}

// Wait blocks until every eviction scheduled by Put has finished.
func (c *Cache) Wait() {
	c.pending.Wait()
}

// Get returns the image with a freshly built DisplayURL. Missing, unreadable
// and corrupted entries all report false.
func (c *Cache) Get(ctx context.Context, id string) (*core.CachedImage, bool) {
	img, err := c.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.Error("failed to read image", "id", id, "error", err)
		}
		return nil, false
	}

	if img.Checksum != "" && img.Checksum != checksum(img.Content) {
		slog.Warn("image content failed checksum verification", "id", id)
		return nil, false
	}

	img.DisplayURL = img.DataURL()
	return img, true
}

// GetAll returns every entry without content, in no particular order.
func (c *Cache) GetAll(ctx context.Context) []*core.CachedImage {
	images, err := c.store.List(ctx)
	if err != nil {
		slog.Error("failed to list images", "error", err)
		return nil
	}
	return images
}

// Delete removes id. Deleting an unknown id succeeds.
func (c *Cache) Delete(ctx context.Context, id string) bool {
	if err := c.store.Delete(ctx, id); err != nil {
		slog.Error("failed to delete image", "id", id, "error", err)
		return false
	}
	return true
}

// Clear removes every image.
func (c *Cache) Clear(ctx context.Context) bool {
	if err := c.store.Clear(ctx); err != nil {
		slog.Error("failed to clear image cache", "error", err)
		return false
	}
	cacheImages.Set(0)
	cacheBytes.Set(0)
	return true
}

// Stats summarizes the cache. OldestCreatedAt is now when the cache is empty.
func (c *Cache) Stats(ctx context.Context) core.CacheStats {
	now := c.now().UTC()
	stats := core.CacheStats{OldestCreatedAt: now}

	for _, img := range c.GetAll(ctx) {
		stats.Count++
		stats.TotalSizeBytes += img.ByteSize
		if img.CreatedAt.Before(stats.OldestCreatedAt) {
			stats.OldestCreatedAt = img.CreatedAt
		}
	}

	cacheImages.Set(float64(stats.Count))
	cacheBytes.Set(float64(stats.TotalSizeBytes))
	return stats
}

// Export writes the raw content of id to w and returns its mime type.
func (c *Cache) Export(ctx context.Context, id string, w io.Writer) (string, error) {
	img, ok := c.Get(ctx, id)
	if !ok {
		return "", core.ErrNotFound
	}
	if _, err := w.Write(img.Content); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", id, err)
	}
	return img.MimeType, nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
