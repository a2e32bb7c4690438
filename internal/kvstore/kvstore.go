// Package kvstore is the small key-value substrate used for persisted settings
// such as the cache limits. Values are opaque bytes, usually JSON documents.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"genstudio/internal/core"
)

// Backend type names.
const (
	TypeFile   = "file"
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// Store defines the key-value interface.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns core.ErrNotFound when key has never been set.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Type      string
	FilePath  string
	RedisURL  string
	KeyPrefix string
}

// New builds the store selected by cfg.Type.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFile, "":
		return NewFileStore(cfg.FilePath), nil
	case TypeRedis:
		return NewRedisStore(RedisConfig{URL: cfg.RedisURL, Prefix: cfg.KeyPrefix})
	case TypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown kv type: %s (valid: file, redis, memory)", cfg.Type)
	}
}

// GetJSON decodes the value stored under key into v.
// It reports false without error when the key is missing.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
