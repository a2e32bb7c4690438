package core

import (
	"fmt"
	"math"
	"time"
)

// Cache limit defaults.
const (
	DefaultCacheMaxAge   = 7 * 24 * time.Hour
	DefaultCacheMaxCount = 100
	DefaultCacheMaxSize  = 50 * 1024 * 1024
)

// MaxCacheAgeMs is the largest maxAge a time.Duration can hold.
const MaxCacheAgeMs = int64(math.MaxInt64 / int64(time.Millisecond))

// CacheConfig bounds the blob store. The JSON shape is the persisted one.
type CacheConfig struct {
	MaxAgeMs     int64 `json:"maxAge" yaml:"max_age_ms"`
	MaxCount     int   `json:"maxCount" yaml:"max_count"`
	MaxSizeBytes int64 `json:"maxSize" yaml:"max_size_bytes"`
}

// DefaultCacheConfig returns the 7 day / 100 image / 50 MiB limits.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAgeMs:     DefaultCacheMaxAge.Milliseconds(),
		MaxCount:     DefaultCacheMaxCount,
		MaxSizeBytes: DefaultCacheMaxSize,
	}
}

// MaxAge returns MaxAgeMs as a duration, saturating at the largest duration.
func (c CacheConfig) MaxAge() time.Duration {
	if c.MaxAgeMs > MaxCacheAgeMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(c.MaxAgeMs) * time.Millisecond
}

// Validate requires all three limits to be positive and maxAge to fit a
// time.Duration.
func (c CacheConfig) Validate() error {
	switch {
	case c.MaxAgeMs <= 0:
		return fmt.Errorf("maxAge must be positive, got %d", c.MaxAgeMs)
	case c.MaxAgeMs > MaxCacheAgeMs:
		return fmt.Errorf("maxAge must be at most %d, got %d", MaxCacheAgeMs, c.MaxAgeMs)
	case c.MaxCount <= 0:
		return fmt.Errorf("maxCount must be positive, got %d", c.MaxCount)
	case c.MaxSizeBytes <= 0:
		return fmt.Errorf("maxSize must be positive, got %d", c.MaxSizeBytes)
	}
	return nil
}
