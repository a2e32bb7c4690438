package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/core"
)

type fakeSource struct {
	calls  atomic.Int32
	models []string
	err    error
	delay  time.Duration
}

func (f *fakeSource) ListModels(context.Context, string) ([]string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.models, f.err
}

func (f *fakeSource) ListTokens(context.Context) ([]core.Token, error) {
	return []core.Token{{ID: 1, Name: "main", Key: "k"}}, nil
}

func TestFilterImageModels(t *testing.T) {
	got := FilterImageModels([]string{"gpt-4o", "Flux-IMAGE-pro", "gemini-2.5-flash-image", "imagen"})
	assert.Equal(t, []string{
		"Flux-IMAGE-pro",
		"gemini-2.5-flash-image",
		"gemini-3.1-flash-image-preview",
		"gemini-3-pro-image-preview",
		"gemini-2.5-flash-image-preview",
	}, got)

	assert.Equal(t, DefaultImageModels, FilterImageModels(nil))
}

func TestCatalog_CachesPerGroup(t *testing.T) {
	src := &fakeSource{models: []string{"a-image"}}
	c := New(src, time.Minute)
	ctx := context.Background()

	first := c.Models(ctx, "default")
	assert.Equal(t, "a-image", first[0])
	first[0] = "mutated"

	second := c.Models(ctx, "default")
	assert.Equal(t, "a-image", second[0])
	assert.Equal(t, int32(1), src.calls.Load())

	c.Models(ctx, "vip")
	assert.Equal(t, int32(2), src.calls.Load())

	c.Invalidate()
	c.Models(ctx, "default")
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestCatalog_FailureUsesDefaultsWithoutCaching(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	c := New(src, time.Minute)

	assert.Equal(t, DefaultImageModels, c.Models(context.Background(), ""))
	assert.Equal(t, DefaultImageModels, c.Models(context.Background(), ""))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCatalog_ConcurrentLookupsShareOneCall(t *testing.T) {
	src := &fakeSource{models: []string{"x-image"}, delay: 100 * time.Millisecond}
	c := New(src, time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			models := c.Models(context.Background(), "g")
			assert.Equal(t, "x-image", models[0])
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCatalog_Tokens(t *testing.T) {
	c := New(&fakeSource{}, 0)
	tokens, err := c.Tokens(context.Background())
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}
