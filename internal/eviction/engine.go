package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"genstudio/internal/core"
)

// DefaultSweepInterval is how often Start re-checks the limits.
const DefaultSweepInterval = 1 * time.Hour

// ConfigSource provides the current limits.
type ConfigSource interface {
	Get(ctx context.Context) core.CacheConfig
}

// Target is the store being evicted from.
type Target interface {
	List(ctx context.Context) ([]*core.CachedImage, error)
	Delete(ctx context.Context, id string) error
}

// Engine runs eviction against a Target. Runs are serialized.
type Engine struct {
	config ConfigSource
	target Target
	now    func() time.Time

	runMu sync.Mutex

	stopMu   sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an Engine.
func NewEngine(config ConfigSource, target Target) *Engine {
	return &Engine{
		config: config,
		target: target,
		now:    time.Now,
	}
}

// Run deletes every entry selected by Plan and returns how many were deleted.
// Delete failures are logged and skipped; only a failed listing is returned.
func (e *Engine) Run(ctx context.Context) (int, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	cfg := e.config.Get(ctx)
	entries, err := e.target.List(ctx)
	if err != nil {
		slog.Error("eviction: failed to list cached images", "error", err)
		return 0, fmt.Errorf("failed to list cached images: %w", err)
	}

	ids := Plan(entries, cfg, e.now())
	if len(ids) == 0 {
		return 0, nil
	}

	deleted := 0
	for _, id := range ids {
		if err := e.target.Delete(ctx, id); err != nil {
			slog.Warn("eviction: failed to delete image", "id", id, "error", err)
			continue
		}
		deleted++
	}

	evictedImages.Add(float64(deleted))
	slog.Info("evicted cached images", "deleted", deleted, "planned", len(ids), "total", len(entries))
	return deleted, nil
}

// Start runs eviction immediately and then every interval until Stop.
func (e *Engine) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	if e.stop != nil {
		return
	}
	e.stop = make(chan struct{})
	e.stopped = make(chan struct{})

	go func(stop <-chan struct{}, stopped chan<- struct{}) {
		defer close(stopped)
		runSweepLoop(stop, interval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			_, _ = e.Run(ctx)
		})
	}(e.stop, e.stopped)
}

// Stop ends the periodic sweep and waits for it to exit. Safe to call multiple times.
func (e *Engine) Stop() {
	e.stopMu.Lock()
	stop, stopped := e.stop, e.stopped
	e.stopMu.Unlock()
	if stop == nil {
		return
	}
	e.stopOnce.Do(func() { close(stop) })
	<-stopped
}

// runSweepLoop runs fn immediately, then on every tick until stop is closed.
func runSweepLoop(stop <-chan struct{}, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-stop:
			return
		}
	}
}
