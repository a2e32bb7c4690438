// Package server provides the REST surface over the image cache, the history
// gallery and the generation orchestrator.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"genstudio/internal/core"
	"genstudio/internal/gallery"
	"genstudio/internal/generation"
	"genstudio/internal/kvstore"
	"genstudio/internal/upstream"
)

// Generator runs generations in the background.
type Generator interface {
	Start(ctx context.Context, req generation.Request) (generation.Snapshot, error)
	Snapshot() generation.Snapshot
	Reset() error
}

// Gallery is the read side of history.
type Gallery interface {
	Page(ctx context.Context, page, size int) *gallery.PageResult
	Search(ctx context.Context, query string) []*gallery.ResolvedRecord
	Get(ctx context.Context, id string) (*gallery.ResolvedRecord, bool)
	DeleteRecord(ctx context.Context, id string) bool
	ClearAll(ctx context.Context) bool
}

// ImageCache is the part of the blob store exposed over HTTP.
type ImageCache interface {
	Export(ctx context.Context, id string, w io.Writer) (string, error)
	Stats(ctx context.Context) core.CacheStats
	Clear(ctx context.Context) bool
}

// CacheConfigStore reads and writes the eviction limits.
type CacheConfigStore interface {
	Get(ctx context.Context) core.CacheConfig
	Set(ctx context.Context, cfg core.CacheConfig) error
}

// Evictor runs an eviction pass.
type Evictor interface {
	Run(ctx context.Context) (int, error)
}

// Catalog lists models and tokens.
type Catalog interface {
	Models(ctx context.Context, group string) []string
	Tokens(ctx context.Context) ([]core.Token, error)
}

// Services are the dependencies of Handler. Settings may be nil.
type Services struct {
	Generator   Generator
	Gallery     Gallery
	Images      ImageCache
	CacheConfig CacheConfigStore
	Evictor     Evictor
	Catalog     Catalog
	Settings    kvstore.Store
}

// HeaderTokenKey selects the API token for model discovery.
const HeaderTokenKey = "X-Token-Key"

// Handler holds the HTTP handlers
type Handler struct {
	svc Services
}

// NewHandler creates a new handler with the given services
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// GenerateRequest is the body of POST /api/generations.
type GenerateRequest struct {
	generation.Request
	// TokenKey selects the API token used for this generation
	TokenKey string `json:"token_key,omitempty"`
}

// CacheConfigResponse is returned after updating the cache limits.
type CacheConfigResponse struct {
	Config  core.CacheConfig `json:"config"`
	Evicted int              `json:"evicted"`
}

// Health handles GET /health
//
//	@Summary	Health check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StartGeneration handles POST /api/generations
//
//	@Summary		Start a generation
//	@Description	Starts one generation in the background. Poll /api/generations/current for progress.
//	@Tags			generations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GenerateRequest	true	"Generation request"
//	@Success		202		{object}	generation.Snapshot
//	@Failure		400		{object}	map[string]any
//	@Failure		409		{object}	map[string]any
//	@Router			/api/generations [post]
func (h *Handler) StartGeneration(c echo.Context) error {
	var body GenerateRequest
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	ctx := upstream.ContextWithAPIKey(c.Request().Context(), body.TokenKey)
	snap, err := h.svc.Generator.Start(ctx, body.Request)
	if err != nil {
		return handleError(c, err)
	}

	if h.svc.Settings != nil {
		req := body.Request
		req.Normalize()
		if err := generation.SaveSettings(c.Request().Context(), h.svc.Settings, req); err != nil {
			slog.Warn("failed to save generation settings", "error", err)
		}
	}
	return c.JSON(http.StatusAccepted, snap)
}

// CurrentGeneration handles GET /api/generations/current
//
//	@Summary	Current generation state
//	@Tags		generations
//	@Produce	json
//	@Success	200	{object}	generation.Snapshot
//	@Router		/api/generations/current [get]
func (h *Handler) CurrentGeneration(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Generator.Snapshot())
}

// ResetGeneration handles POST /api/generations/reset
//
//	@Summary	Return a finished generation to idle
//	@Tags		generations
//	@Produce	json
//	@Success	200	{object}	generation.Snapshot
//	@Failure	409	{object}	map[string]any
//	@Router		/api/generations/reset [post]
func (h *Handler) ResetGeneration(c echo.Context) error {
	if err := h.svc.Generator.Reset(); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.Generator.Snapshot())
}

// ListHistory handles GET /api/history
//
//	@Summary	Page through history, newest first
//	@Tags		history
//	@Produce	json
//	@Param		page	query		int	false	"Page number (1-based)"
//	@Param		size	query		int	false	"Page size (max 100)"
//	@Success	200		{object}	gallery.PageResult
//	@Router		/api/history [get]
func (h *Handler) ListHistory(c echo.Context) error {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 0)
	return c.JSON(http.StatusOK, h.svc.Gallery.Page(c.Request().Context(), page, size))
}

// SearchHistory handles GET /api/history/search
//
//	@Summary	Search history prompts
//	@Tags		history
//	@Produce	json
//	@Param		q	query	string	false	"Case-insensitive prompt substring"
//	@Success	200	{array}	gallery.ResolvedRecord
//	@Router		/api/history/search [get]
func (h *Handler) SearchHistory(c echo.Context) error {
	records := h.svc.Gallery.Search(c.Request().Context(), c.QueryParam("q"))
	if records == nil {
		records = []*gallery.ResolvedRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

// GetHistory handles GET /api/history/:id
//
//	@Summary	Get one history record
//	@Tags		history
//	@Produce	json
//	@Param		id	path		string	true	"Record ID"
//	@Success	200	{object}	gallery.ResolvedRecord
//	@Failure	404	{object}	map[string]any
//	@Router		/api/history/{id} [get]
func (h *Handler) GetHistory(c echo.Context) error {
	rec, ok := h.svc.Gallery.Get(c.Request().Context(), c.Param("id"))
	if !ok {
		return notFound(c, "history record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// DeleteHistory handles DELETE /api/history/:id
//
//	@Summary	Delete a history record and its images
//	@Tags		history
//	@Param		id	path	string	true	"Record ID"
//	@Success	204
//	@Failure	500	{object}	map[string]any
//	@Router		/api/history/{id} [delete]
func (h *Handler) DeleteHistory(c echo.Context) error {
	if !h.svc.Gallery.DeleteRecord(c.Request().Context(), c.Param("id")) {
		return storageFailure(c, "failed to delete history record")
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearHistory handles DELETE /api/history
//
//	@Summary	Delete all history and cached images
//	@Tags		history
//	@Success	204
//	@Failure	500	{object}	map[string]any
//	@Router		/api/history [delete]
func (h *Handler) ClearHistory(c echo.Context) error {
	if !h.svc.Gallery.ClearAll(c.Request().Context()) {
		return storageFailure(c, "failed to clear history")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetImage handles GET /api/images/:id
//
//	@Summary	Download a cached image
//	@Tags		images
//	@Produce	image/png,image/jpeg,image/webp
//	@Param		id	path	string	true	"Image ID"
//	@Success	200	{file}	binary
//	@Failure	404	{object}	map[string]any
//	@Router		/api/images/{id} [get]
func (h *Handler) GetImage(c echo.Context) error {
	var buf bytes.Buffer
	mimeType, err := h.svc.Images.Export(c.Request().Context(), c.Param("id"), &buf)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return notFound(c, "image not found")
		}
		return handleError(c, err)
	}
	if c.QueryParam("download") != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+c.Param("id")+`"`)
	}
	return c.Blob(http.StatusOK, mimeType, buf.Bytes())
}

// CacheStats handles GET /api/cache/stats
//
//	@Summary	Image cache statistics
//	@Tags		cache
//	@Produce	json
//	@Success	200	{object}	core.CacheStats
//	@Router		/api/cache/stats [get]
func (h *Handler) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Images.Stats(c.Request().Context()))
}

// GetCacheConfig handles GET /api/cache/config
//
//	@Summary	Current eviction limits
//	@Tags		cache
//	@Produce	json
//	@Success	200	{object}	core.CacheConfig
//	@Router		/api/cache/config [get]
func (h *Handler) GetCacheConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.CacheConfig.Get(c.Request().Context()))
}

// PutCacheConfig handles PUT /api/cache/config
//
//	@Summary		Update eviction limits
//	@Description	Saves the limits and immediately runs an eviction pass.
//	@Tags			cache
//	@Accept			json
//	@Produce		json
//	@Param			config	body		core.CacheConfig	true	"Limits"
//	@Success		200		{object}	CacheConfigResponse
//	@Failure		400		{object}	map[string]any
//	@Router			/api/cache/config [put]
func (h *Handler) PutCacheConfig(c echo.Context) error {
	var cfg core.CacheConfig
	if err := c.Bind(&cfg); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if err := cfg.Validate(); err != nil {
		return handleError(c, core.NewInvalidRequestError(err.Error(), err))
	}
	if err := h.svc.CacheConfig.Set(c.Request().Context(), cfg); err != nil {
		return handleError(c, core.NewStorageError("failed to save cache config", err))
	}

	evicted, err := h.svc.Evictor.Run(c.Request().Context())
	if err != nil {
		slog.Warn("eviction after config change failed", "error", err)
	}
	return c.JSON(http.StatusOK, CacheConfigResponse{Config: cfg, Evicted: evicted})
}

// CleanupCache handles POST /api/cache/cleanup
//
//	@Summary	Run an eviction pass now
//	@Tags		cache
//	@Produce	json
//	@Success	200	{object}	map[string]int
//	@Failure	500	{object}	map[string]any
//	@Router		/api/cache/cleanup [post]
func (h *Handler) CleanupCache(c echo.Context) error {
	evicted, err := h.svc.Evictor.Run(c.Request().Context())
	if err != nil {
		return handleError(c, core.NewStorageError("eviction failed", err))
	}
	return c.JSON(http.StatusOK, map[string]int{"evicted": evicted})
}

// ClearCache handles DELETE /api/cache
//
//	@Summary	Delete every cached image
//	@Description	History records are kept; their images no longer resolve.
//	@Tags		cache
//	@Success	204
//	@Failure	500	{object}	map[string]any
//	@Router		/api/cache [delete]
func (h *Handler) ClearCache(c echo.Context) error {
	if !h.svc.Images.Clear(c.Request().Context()) {
		return storageFailure(c, "failed to clear image cache")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListModels handles GET /api/models
//
//	@Summary	Image-capable models
//	@Tags		discovery
//	@Produce	json
//	@Param		group			query	string	false	"Token group"
//	@Param		X-Token-Key		header	string	false	"Token used for the /v1/models fallback"
//	@Success	200		{array}	string
//	@Router		/api/models [get]
func (h *Handler) ListModels(c echo.Context) error {
	ctx := upstream.ContextWithAPIKey(c.Request().Context(), c.Request().Header.Get(HeaderTokenKey))
	return c.JSON(http.StatusOK, h.svc.Catalog.Models(ctx, c.QueryParam("group")))
}

// ListTokens handles GET /api/tokens
//
//	@Summary	Enabled API tokens
//	@Tags		discovery
//	@Produce	json
//	@Success	200	{array}		core.Token
//	@Failure	502	{object}	map[string]any
//	@Router		/api/tokens [get]
func (h *Handler) ListTokens(c echo.Context) error {
	tokens, err := h.svc.Catalog.Tokens(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, tokens)
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"type":    "not_found_error",
			"message": message,
		},
	})
}

func storageFailure(c echo.Context, message string) error {
	return handleError(c, core.NewStorageError(message, nil))
}

// handleError converts pipeline errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	if errors.Is(err, core.ErrBusy) {
		return c.JSON(http.StatusConflict, map[string]any{
			"error": map[string]any{
				"type":    "conflict_error",
				"message": err.Error(),
			},
		})
	}

	var genErr *core.GenerationError
	if errors.As(err, &genErr) {
		return c.JSON(genErr.HTTPStatusCode(), genErr.ToJSON())
	}

	slog.Error("unexpected handler error", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
