// Package eviction enforces the image cache age, count and size limits.
package eviction

import (
	"cmp"
	"slices"
	"time"

	"genstudio/internal/core"
)

// Plan returns the ids to delete so that entries satisfy cfg at now.
//
// Three passes run over the entries sorted oldest first and their results are
// unioned: entries older than MaxAge, the oldest count-MaxCount entries, and
// the oldest entries whose removal brings the total size to MaxSizeBytes or
// below. Each pass looks at the full list, not at what earlier passes kept.
// The result is ordered oldest first with no duplicates.
func Plan(entries []*core.CachedImage, cfg core.CacheConfig, now time.Time) []string {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b *core.CachedImage) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	marked := make([]bool, len(sorted))

	// age
	maxAge := cfg.MaxAge()
	for i, img := range sorted {
		if now.Sub(img.CreatedAt) > maxAge {
			marked[i] = true
		}
	}

	// count
	if excess := len(sorted) - cfg.MaxCount; excess > 0 {
		for i := 0; i < excess; i++ {
			marked[i] = true
		}
	}

	// size
	var total int64
	for _, img := range sorted {
		total += img.ByteSize
	}
	for i := 0; i < len(sorted) && total > cfg.MaxSizeBytes; i++ {
		marked[i] = true
		total -= sorted[i].ByteSize
	}

	var ids []string
	seen := make(map[string]struct{}, len(sorted))
	for i, img := range sorted {
		if !marked[i] {
			continue
		}
		if _, dup := seen[img.ID]; dup {
			continue
		}
		seen[img.ID] = struct{}{}
		ids = append(ids, img.ID)
	}
	return ids
}
