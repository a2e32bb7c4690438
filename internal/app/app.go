// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the GenStudio server and CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"genstudio/config"
	"genstudio/internal/blobstore"
	"genstudio/internal/cacheconfig"
	"genstudio/internal/catalog"
	"genstudio/internal/eviction"
	"genstudio/internal/gallery"
	"genstudio/internal/generation"
	"genstudio/internal/history"
	"genstudio/internal/httpclient"
	"genstudio/internal/kvstore"
	"genstudio/internal/server"
	"genstudio/internal/storage"
	"genstudio/internal/upstream"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config *config.Config

	storage      storage.Storage
	blobs        blobstore.Store
	kv           kvstore.Store
	images       *blobstore.Cache
	cacheConfig  *cacheconfig.Manager
	evictor      *eviction.Engine
	index        history.Index
	history      *history.Service
	gallery      *gallery.Gallery
	client       *upstream.Client
	catalog      *catalog.Catalog
	orchestrator *generation.Orchestrator
	server       *server.Server

	sweeping bool

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration.
	AppConfig *config.Config

	// Transport overrides the upstream client used for generation.
	// Nil uses the client built from AppConfig.Upstream.
	Transport generation.Transport

	// Sweep starts the periodic eviction sweep. The CLI leaves it off.
	Sweep bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	app := &App{config: appCfg}

	store, err := storage.New(ctx, storage.Config{
		Type:       appCfg.Storage.Type,
		SQLite:     storage.SQLiteConfig{Path: appCfg.Storage.SQLite.Path},
		PostgreSQL: storage.PostgreSQLConfig{URL: appCfg.Storage.PostgreSQL.URL, MaxConns: appCfg.Storage.PostgreSQL.MaxConns},
		MongoDB:    storage.MongoDBConfig{URL: appCfg.Storage.MongoDB.URL, Database: appCfg.Storage.MongoDB.Database},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.storage = store

	app.blobs, err = blobstore.NewStore(ctx, store)
	if err != nil {
		return nil, app.abort("failed to initialize image store", err)
	}

	app.index, err = history.NewIndex(ctx, store)
	if err != nil {
		return nil, app.abort("failed to initialize history index", err)
	}

	app.kv, err = kvstore.New(kvstore.Config{
		Type:      appCfg.KV.Type,
		FilePath:  appCfg.KV.FilePath,
		RedisURL:  appCfg.KV.RedisURL,
		KeyPrefix: appCfg.KV.KeyPrefix,
	})
	if err != nil {
		return nil, app.abort("failed to initialize settings store", err)
	}

	httpClient := httpclient.NewHTTPClient(httpclient.WithTimeout(appCfg.Upstream.RequestTimeoutDuration()))
	resolver := blobstore.NewResolver(
		httpClient,
		blobstore.WithRateLimit(appCfg.Cache.FetchRPS, appCfg.Cache.FetchBurst),
		blobstore.WithMaxBytes(appCfg.Cache.MaxImageBytes),
	)
	app.images = blobstore.NewCache(app.blobs, resolver)
	app.cacheConfig = cacheconfig.NewManager(app.kv)
	app.evictor = eviction.NewEngine(app.cacheConfig, app.blobs)
	app.images.SetEvictor(app.evictor)

	app.history = history.NewService(app.index)
	app.gallery = gallery.New(app.history, app.images)

	app.client = upstream.NewWithHTTPClient(httpClient, upstream.Config{
		BaseURL:     appCfg.Upstream.BaseURL,
		APIKey:      appCfg.Upstream.APIKey,
		AccessToken: appCfg.Upstream.AccessToken,
		UserID:      appCfg.Upstream.UserID,
	})
	app.catalog = catalog.New(app.client, appCfg.Upstream.ModelCacheTTLDuration())

	var transport generation.Transport = app.client
	if cfg.Transport != nil {
		transport = cfg.Transport
	}
	app.orchestrator = generation.NewOrchestrator(transport, app.images, app.history, generation.RetryPolicy{
		MaxRetries:     appCfg.Generation.MaxRetries,
		InitialBackoff: appCfg.Generation.InitialBackoff(),
		MaxBackoff:     appCfg.Generation.MaxBackoff(),
	})

	app.logStartupInfo()

	if cfg.Sweep {
		app.evictor.Start(appCfg.Cache.SweepIntervalDuration())
		app.sweeping = true
	}

	handler := server.NewHandler(server.Services{
		Generator:   app.orchestrator,
		Gallery:     app.gallery,
		Images:      app.images,
		CacheConfig: app.cacheConfig,
		Evictor:     app.evictor,
		Catalog:     app.catalog,
		Settings:    app.kv,
	})
	app.server = server.New(handler, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Server.MetricsEnabled,
		MetricsEndpoint: appCfg.Server.MetricsEndpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		SwaggerEnabled:  appCfg.Server.SwaggerEnabled,
	})

	if appCfg.Server.SwaggerEnabled {
		slog.Debug("swagger UI enabled", "path", "/swagger/index.html")
	}

	return app, nil
}

// abort releases whatever New opened so far and wraps err.
func (a *App) abort(msg string, err error) error {
	if closeErr := a.closeStores(); closeErr != nil {
		return fmt.Errorf("%s: %w (also: close error: %v)", msg, err, closeErr)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Images returns the image cache.
func (a *App) Images() *blobstore.Cache { return a.images }

// CacheConfig returns the eviction limit store.
func (a *App) CacheConfig() *cacheconfig.Manager { return a.cacheConfig }

// Evictor returns the eviction engine.
func (a *App) Evictor() *eviction.Engine { return a.evictor }

// History returns the history service.
func (a *App) History() *history.Service { return a.history }

// Gallery returns the history gallery.
func (a *App) Gallery() *gallery.Gallery { return a.gallery }

// Catalog returns the model and token catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Orchestrator returns the generation orchestrator.
func (a *App) Orchestrator() *generation.Orchestrator { return a.orchestrator }

// Settings returns the key-value store holding UI settings.
func (a *App) Settings() kvstore.Store { return a.kv }

// Handler returns the HTTP handler for the REST surface.
func (a *App) Handler() http.Handler { return a.server }

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context timeout/cancellation.
// 2. Periodic eviction sweep stop.
// 3. Pending post-write eviction runs drain.
// 4. History index, image store and settings store close.
// 5. Shared database connection close.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Debug("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.sweeping {
		a.evictor.Stop()
	}
	if a.images != nil {
		a.images.Wait()
	}

	if err := a.closeStores(); err != nil {
		slog.Error("store close error", "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Debug("application shutdown complete")
	return nil
}

func (a *App) closeStores() error {
	var errs []error
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("image store close: %w", err))
		}
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("settings close: %w", err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Debug("GENSTUDIO_MASTER_KEY not set, API routes are unauthenticated")
	}
	if cfg.Upstream.BaseURL == "" {
		slog.Warn("UPSTREAM_BASE_URL not set, generation requests will fail")
	}

	slog.Debug("storage configured", "type", cfg.Storage.Type)
	slog.Debug("settings store configured", "type", cfg.KV.Type)
	slog.Debug("retry policy",
		"max_retries", cfg.Generation.MaxRetries,
		"initial_backoff_ms", cfg.Generation.InitialBackoffMs,
		"max_backoff_ms", cfg.Generation.MaxBackoffMs,
	)
}
