// Package generation drives image generation against the upstream API:
// request building, a bounded retry loop with exponential backoff, and
// write-through of the results to the image cache and history index.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/core"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 15
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 10 * time.Second
)

// Transport submits requests to the upstream API and returns the raw
// response body. Failures are returned as *core.GenerationError.
type Transport interface {
	SubmitNativeMultimodal(ctx context.Context, model string, payload any) ([]byte, error)
	SubmitGenericImage(ctx context.Context, payload any) ([]byte, error)
}

// ImageCache is where generated images are written.
type ImageCache interface {
	Put(ctx context.Context, id, locator string, metadata map[string]any) bool
	Get(ctx context.Context, id string) (*core.CachedImage, bool)
	Stats(ctx context.Context) core.CacheStats
}

// RecordStore is where the history record of a successful generation is written.
type RecordStore interface {
	Save(ctx context.Context, rec *core.HistoryRecord) bool
}

// RetryPolicy bounds the retry loop.
type RetryPolicy struct {
	// MaxRetries counts retries after the first attempt, so a generation
	// makes at most MaxRetries+1 upstream calls.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns 15 retries with 1s..10s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Backoff returns the wait before retry n (1-based): min(initial*2^(n-1), max).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.InitialBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(d, p.MaxBackoff)
}

// Orchestrator runs one generation at a time.
type Orchestrator struct {
	transport Transport
	images    ImageCache
	records   RecordStore
	machine   *Machine
	policy    RetryPolicy

	now   func() time.Time
	sleep func(time.Duration)
	newID func() string
}

// NewOrchestrator creates an orchestrator with an idle machine.
func NewOrchestrator(transport Transport, images ImageCache, records RecordStore, policy RetryPolicy) *Orchestrator {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultInitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	return &Orchestrator{
		transport: transport,
		images:    images,
		records:   records,
		machine:   NewMachine(),
		policy:    policy,
		now:       time.Now,
		sleep:     time.Sleep,
		newID:     newRecordID,
	}
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Machine exposes the state machine for observation.
func (o *Orchestrator) Machine() *Machine {
	return o.machine
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.machine.Snapshot()
}

// Reset returns a finished generation to Idle.
func (o *Orchestrator) Reset() error {
	return o.machine.Reset()
}

// Generate runs a generation to completion and returns the final snapshot.
// A failed generation returns its *core.GenerationError. A request arriving
// while another is outstanding returns core.ErrBusy.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Snapshot, error) {
	if err := o.begin(&req); err != nil {
		return o.machine.Snapshot(), err
	}
	snap := o.runRecovered(ctx, req)
	if snap.Error != nil {
		return snap, snap.Error
	}
	return snap, nil
}

// Start validates req, moves to Submitting and runs the generation in the
// background. The run ignores cancellation of ctx.
func (o *Orchestrator) Start(ctx context.Context, req Request) (Snapshot, error) {
	if err := o.begin(&req); err != nil {
		return o.machine.Snapshot(), err
	}
	snap := o.machine.Snapshot()
	go o.runRecovered(context.WithoutCancel(ctx), req)
	return snap, nil
}

func (o *Orchestrator) begin(req *Request) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	return o.machine.Begin(req.Prompt, req.Model, o.now())
}

// runRecovered runs req and turns a panic into a Failed generation.
func (o *Orchestrator) runRecovered(ctx context.Context, req Request) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger := slog.With("model", req.Model)
			logger.Error("generation panicked", "panic", r, "stack", string(debug.Stack()))
			snap = o.fail(core.NewStorageError("generation aborted by an internal error", fmt.Errorf("panic: %v", r)), logger)
		}
	}()
	return o.run(ctx, req)
}

func (o *Orchestrator) run(ctx context.Context, req Request) Snapshot {
	family := DetectFamily(req.Model)
	logger := slog.With("model", req.Model, "family", family)

	body, gerr := o.submitWithRetry(ctx, family, req, logger)
	if gerr != nil {
		return o.fail(gerr, logger)
	}

	var generated []GeneratedImage
	if family == FamilyNative {
		generated = ExtractNativeImages(body)
	} else {
		generated = ExtractGenericImages(body)
	}
	if len(generated) == 0 {
		return o.fail(core.NewEmptyResultError(), logger)
	}

	return o.persist(ctx, req, generated, logger)
}

func (o *Orchestrator) submitWithRetry(ctx context.Context, family Family, req Request, logger *slog.Logger) ([]byte, *core.GenerationError) {
	retries := 0
	for {
		body, err := o.submit(ctx, family, req)
		if err == nil {
			generationAttempts.WithLabelValues(string(family), "success").Inc()
			return body, nil
		}

		gerr := core.AsGenerationError(err)
		generationAttempts.WithLabelValues(string(family), string(gerr.Type)).Inc()

		if !gerr.Retryable() {
			return nil, gerr
		}
		if retries >= o.policy.MaxRetries {
			return nil, exhausted(gerr, retries)
		}

		retries++
		o.machine.Retry(gerr)
		generationRetries.Inc()
		wait := o.policy.Backoff(retries)
		logger.Warn("transient upstream failure, retrying",
			"status", gerr.StatusCode,
			"retry", retries,
			"max_retries", o.policy.MaxRetries,
			"backoff", wait,
		)
		o.sleep(wait)
		o.machine.Resubmit()
	}
}

func exhausted(last *core.GenerationError, retries int) *core.GenerationError {
	if retries == 0 {
		return last
	}
	out := *last
	out.Message = fmt.Sprintf("%s (retried %d times)", last.Message, retries)
	return &out
}

func (o *Orchestrator) submit(ctx context.Context, family Family, req Request) ([]byte, error) {
	if family == FamilyNative {
		return o.transport.SubmitNativeMultimodal(ctx, req.Model, BuildNativePayload(&req))
	}
	return o.transport.SubmitGenericImage(ctx, BuildGenericPayload(&req))
}

// persist writes every image before the history record.
func (o *Orchestrator) persist(ctx context.Context, req Request, generated []GeneratedImage, logger *slog.Logger) Snapshot {
	recordID := o.newID()
	timestamp := o.now().UTC().Truncate(time.Millisecond)

	imageIDs := make([]string, 0, len(generated))
	images := make([]*core.CachedImage, 0, len(generated))
	for i, g := range generated {
		id := fmt.Sprintf("%s-%d", recordID, i)
		meta := map[string]any{
			"prompt":    req.Prompt,
			"model":     req.Model,
			"timestamp": timestamp.UnixMilli(),
		}
		if g.RevisedPrompt != "" {
			meta["revised_prompt"] = g.RevisedPrompt
		}
		if !o.images.Put(ctx, id, g.Locator, meta) {
			logger.Warn("generated image was not stored", "image_id", id)
			continue
		}
		imageIDs = append(imageIDs, id)
		if img, ok := o.images.Get(ctx, id); ok {
			images = append(images, img)
		}
	}

	if len(imageIDs) == 0 {
		return o.fail(core.NewStorageError("failed to store generated images", nil), logger)
	}
	if len(imageIDs) < len(generated) {
		logger.Warn("partial generation stored", "stored", len(imageIDs), "returned", len(generated))
	}

	rec := &core.HistoryRecord{
		ID:              recordID,
		Timestamp:       timestamp,
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		Model:           req.Model,
		Params:          req.Params(),
		ReferenceImages: req.ReferenceDescriptors(),
		ImageIDs:        imageIDs,
		Status:          core.RecordStatusSuccess,
	}
	if !o.records.Save(ctx, rec) {
		logger.Error("failed to save history record", "record_id", recordID)
	}

	stats := o.images.Stats(ctx)
	logger.Debug("image cache stats refreshed", "count", stats.Count, "bytes", stats.TotalSizeBytes)

	// Images were stored, so Get misses only mean a concurrent eviction.
	if len(images) == 0 {
		for _, id := range imageIDs {
			images = append(images, &core.CachedImage{ID: id})
		}
	}
	o.machine.Succeed(recordID, images, o.now())
	generationResults.WithLabelValues(string(StateSucceeded)).Inc()
	logger.Info("generation succeeded", "record_id", recordID, "images", len(imageIDs))
	return o.machine.Snapshot()
}

func (o *Orchestrator) fail(gerr *core.GenerationError, logger *slog.Logger) Snapshot {
	o.machine.Fail(gerr, o.now())
	generationResults.WithLabelValues(string(StateFailed)).Inc()
	logger.Warn("generation failed", "error", gerr.Error())
	return o.machine.Snapshot()
}
