package server

import (
	"context"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"genstudio/internal/core"
)

// DefaultBodySizeLimit allows twenty 15MB reference images as base64.
const DefaultBodySizeLimit = "400M"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string // Optional: Master key for authentication
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   string // Max request body size in echo notation (default: 400M)
	SwaggerEnabled  bool   // Whether to serve /swagger/*
}

// New creates a new HTTP server
func New(handler *Handler, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	authSkipPaths := []string{"/health"}

	metricsPath := "/metrics"
	if cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}
	if cfg.SwaggerEnabled {
		authSkipPaths = append(authSkipPaths, "/swagger/")
	}

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := core.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg.BodySizeLimit != "" {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(bodySizeLimit))

	if cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := e.Group("/api")

	api.POST("/generations", handler.StartGeneration)
	api.GET("/generations/current", handler.CurrentGeneration)
	api.POST("/generations/reset", handler.ResetGeneration)

	api.GET("/history", handler.ListHistory)
	api.DELETE("/history", handler.ClearHistory)
	api.GET("/history/search", handler.SearchHistory)
	api.GET("/history/:id", handler.GetHistory)
	api.DELETE("/history/:id", handler.DeleteHistory)

	api.GET("/images/:id", handler.GetImage)

	api.GET("/cache/stats", handler.CacheStats)
	api.GET("/cache/config", handler.GetCacheConfig)
	api.PUT("/cache/config", handler.PutCacheConfig)
	api.POST("/cache/cleanup", handler.CleanupCache)
	api.DELETE("/cache", handler.ClearCache)

	api.GET("/models", handler.ListModels)
	api.GET("/tokens", handler.ListTokens)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
