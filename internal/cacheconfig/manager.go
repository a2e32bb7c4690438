// Package cacheconfig owns the process-wide image cache limits.
package cacheconfig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"genstudio/internal/core"
	"genstudio/internal/kvstore"
)

// Key is the kv key the limits are persisted under.
const Key = "image_cache_config"

// Manager reads and writes the CacheConfig singleton.
type Manager struct {
	mu    sync.Mutex
	store kvstore.Store
}

// NewManager creates a Manager over store.
func NewManager(store kvstore.Store) *Manager {
	return &Manager{store: store}
}

// Get returns the persisted limits, creating them with defaults on first read.
// Unreadable or invalid values fall back to the defaults.
func (m *Manager) Get(ctx context.Context) core.CacheConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg core.CacheConfig
	found, err := kvstore.GetJSON(ctx, m.store, Key, &cfg)
	if err != nil {
		slog.Warn("failed to read cache config, using defaults", "error", err)
		return core.DefaultCacheConfig()
	}
	if !found {
		cfg = core.DefaultCacheConfig()
		if err := kvstore.SetJSON(ctx, m.store, Key, cfg); err != nil {
			slog.Warn("failed to persist default cache config", "error", err)
		}
		return cfg
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("stored cache config is invalid, using defaults", "error", err)
		return core.DefaultCacheConfig()
	}
	return cfg
}

// Set validates and persists cfg.
func (m *Manager) Set(ctx context.Context, cfg core.CacheConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := kvstore.SetJSON(ctx, m.store, Key, cfg); err != nil {
		return fmt.Errorf("failed to save cache config: %w", err)
	}
	return nil
}

// Reset restores and persists the default limits.
func (m *Manager) Reset(ctx context.Context) (core.CacheConfig, error) {
	cfg := core.DefaultCacheConfig()
	return cfg, m.Set(ctx, cfg)
}
