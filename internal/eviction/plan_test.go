package eviction

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"genstudio/internal/core"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(id string, age time.Duration, size int64) *core.CachedImage {
	return &core.CachedImage{ID: id, CreatedAt: now.Add(-age), ByteSize: size}
}

func roomy() core.CacheConfig {
	return core.CacheConfig{MaxAgeMs: (24 * time.Hour).Milliseconds(), MaxCount: 1000, MaxSizeBytes: 1 << 30}
}

func TestPlan_Age(t *testing.T) {
	cfg := roomy()
	cfg.MaxAgeMs = time.Hour.Milliseconds()

	entries := []*core.CachedImage{
		entry("fresh", 10*time.Minute, 1),
		entry("boundary", time.Hour, 1),
		entry("stale", time.Hour+time.Millisecond, 1),
		entry("ancient", 48*time.Hour, 1),
	}

	assert.Equal(t, []string{"ancient", "stale"}, Plan(entries, cfg, now))
}

func TestPlan_HugeMaxAgeKeepsEverything(t *testing.T) {
	cfg := roomy()
	cfg.MaxAgeMs = 1e13

	entries := []*core.CachedImage{
		entry("fresh", time.Minute, 1),
		entry("old", 365*24*time.Hour, 1),
	}
	assert.Empty(t, Plan(entries, cfg, now))
}

func TestPlan_Count(t *testing.T) {
	cfg := roomy()
	cfg.MaxCount = 5

	var entries []*core.CachedImage
	for i := 0; i < 8; i++ {
		// i=0 is the newest
		entries = append(entries, entry(fmt.Sprintf("img-%d", i), time.Duration(i)*time.Minute, 1))
	}

	assert.Equal(t, []string{"img-7", "img-6", "img-5"}, Plan(entries, cfg, now))
}

func TestPlan_Size(t *testing.T) {
	cfg := roomy()
	cfg.MaxSizeBytes = 1000

	entries := []*core.CachedImage{
		entry("oldest", 3*time.Minute, 400),
		entry("middle", 2*time.Minute, 400),
		entry("newest", 1*time.Minute, 400),
	}

	assert.Equal(t, []string{"oldest"}, Plan(entries, cfg, now))
}

func TestPlan_SizeExactlyAtLimit(t *testing.T) {
	cfg := roomy()
	cfg.MaxSizeBytes = 800

	entries := []*core.CachedImage{
		entry("a", 2*time.Minute, 400),
		entry("b", 1*time.Minute, 400),
	}
	assert.Empty(t, Plan(entries, cfg, now))
}

func TestPlan_UnionIsDeduplicated(t *testing.T) {
	cfg := core.CacheConfig{MaxAgeMs: time.Hour.Milliseconds(), MaxCount: 2, MaxSizeBytes: 500}

	entries := []*core.CachedImage{
		entry("old-big", 2*time.Hour, 400),
		entry("old-small", 90*time.Minute, 100),
		entry("recent-1", 30*time.Minute, 200),
		entry("recent-2", 20*time.Minute, 200),
	}

	// every pass flags old-big; age and count also flag old-small
	assert.Equal(t, []string{"old-big", "old-small"}, Plan(entries, cfg, now))
}

func TestPlan_PassesAreIndependent(t *testing.T) {
	// The size pass counts the bytes of entries the count pass already flagged.
	cfg := core.CacheConfig{MaxAgeMs: time.Hour.Milliseconds(), MaxCount: 2, MaxSizeBytes: 250}

	entries := []*core.CachedImage{
		entry("a", 4*time.Minute, 100),
		entry("b", 3*time.Minute, 100),
		entry("c", 2*time.Minute, 100),
		entry("d", 1*time.Minute, 100),
	}

	assert.Equal(t, []string{"a", "b"}, Plan(entries, cfg, now))
}

func TestPlan_TiesBreakByID(t *testing.T) {
	cfg := roomy()
	cfg.MaxCount = 1

	entries := []*core.CachedImage{
		entry("rec-2", time.Minute, 1),
		entry("rec-0", time.Minute, 1),
		entry("rec-1", time.Minute, 1),
	}
	assert.Equal(t, []string{"rec-0", "rec-1"}, Plan(entries, cfg, now))
}

func TestPlan_Empty(t *testing.T) {
	assert.Empty(t, Plan(nil, core.DefaultCacheConfig(), now))
}

func TestPlan_DoesNotReorderInput(t *testing.T) {
	entries := []*core.CachedImage{entry("new", time.Minute, 1), entry("old", time.Hour, 1)}
	_ = Plan(entries, roomy(), now)
	assert.Equal(t, "new", entries[0].ID)
}
