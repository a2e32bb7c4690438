// Package catalog lists the image-capable models a user can pick from.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"genstudio/internal/core"
)

// imageModelKeyword marks image-generation model ids.
const imageModelKeyword = "-image"

// DefaultTTL is how long a group's model list is reused.
const DefaultTTL = 5 * time.Minute

// DefaultImageModels are offered when discovery yields nothing and are always
// appended to a discovered list when missing.
var DefaultImageModels = []string{
	"gemini-3.1-flash-image-preview",
	"gemini-3-pro-image-preview",
	"gemini-2.5-flash-image-preview",
	"gemini-2.5-flash-image",
}

// FilterImageModels keeps ids containing "-image" (case-insensitive) in their
// original order, then appends any default model not already present.
func FilterImageModels(models []string) []string {
	out := make([]string, 0, len(models)+len(DefaultImageModels))
	for _, m := range models {
		if strings.Contains(strings.ToLower(m), imageModelKeyword) {
			out = append(out, m)
		}
	}
	for _, d := range DefaultImageModels {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

// Source discovers models and tokens upstream.
type Source interface {
	ListModels(ctx context.Context, group string) ([]string, error)
	ListTokens(ctx context.Context) ([]core.Token, error)
}

// Catalog caches filtered model lists per group. Concurrent lookups for the
// same group share one upstream call.
type Catalog struct {
	source Source
	cache  *cache.Cache
	group  singleflight.Group
}

// New creates a catalog whose entries expire after ttl.
func New(source Source, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Models returns the image models for group. Discovery failures are logged
// and yield the default list, which is not cached.
func (c *Catalog) Models(ctx context.Context, group string) []string {
	key := "models:" + group
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v.([]string))
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		models, err := c.source.ListModels(ctx, group)
		if err != nil {
			slog.Warn("model discovery failed, using defaults", "group", group, "error", err)
			return slices.Clone(DefaultImageModels), nil
		}
		filtered := FilterImageModels(models)
		c.cache.SetDefault(key, filtered)
		return filtered, nil
	})
	return slices.Clone(v.([]string))
}

// Tokens returns the enabled tokens. Tokens are not cached.
func (c *Catalog) Tokens(ctx context.Context) ([]core.Token, error) {
	return c.source.ListTokens(ctx)
}

// Invalidate drops every cached list.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
