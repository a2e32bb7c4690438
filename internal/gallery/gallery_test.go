package gallery

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/blobstore"
	"genstudio/internal/core"
	"genstudio/internal/history"
)

type fixture struct {
	gallery *Gallery
	history *history.Service
	images  *blobstore.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := history.NewService(history.NewMemoryIndex())
	images := blobstore.NewCache(blobstore.NewMemoryStore(), blobstore.NewResolver(http.DefaultClient))
	return &fixture{gallery: New(h, images), history: h, images: images}
}

func (f *fixture) generate(t *testing.T, i int, prompt string, imageCount int) *core.HistoryRecord {
	t.Helper()
	ctx := context.Background()
	recID := fmt.Sprintf("rec-%02d", i)
	rec := &core.HistoryRecord{
		ID:        recID,
		Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		Prompt:    prompt,
		Model:     "m",
	}
	for j := 0; j < imageCount; j++ {
		id := fmt.Sprintf("%s-%d", recID, j)
		require.True(t, f.images.Put(ctx, id, "data:text/plain,"+id, nil))
		rec.ImageIDs = append(rec.ImageIDs, id)
	}
	require.True(t, f.history.Save(ctx, rec))
	return rec
}

func imageIDs(images []*core.CachedImage) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, img.ID)
	}
	return out
}

func TestGallery_DanglingReferencesAreDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := f.generate(t, 1, "a cat", 3)

	require.True(t, f.images.Delete(ctx, "rec-01-1"))

	resolved, ok := f.gallery.Get(ctx, rec.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"rec-01-0", "rec-01-2"}, imageIDs(resolved.Images))
	assert.Equal(t, []string{"rec-01-0", "rec-01-1", "rec-01-2"}, resolved.ImageIDs, "record is not rewritten")
	for _, img := range resolved.Images {
		assert.NotEmpty(t, img.DisplayURL)
	}
}

func TestGallery_RecordWithNoSurvivingImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.generate(t, 1, "gone", 2)
	require.True(t, f.images.Clear(ctx))

	page := f.gallery.Page(ctx, 1, 10)
	require.Len(t, page.Records, 1)
	assert.Empty(t, page.Records[0].Images)
}

func TestGallery_Page(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.generate(t, i, fmt.Sprintf("prompt %d", i), 1)
	}

	first := f.gallery.Page(ctx, 1, 10)
	assert.Equal(t, 25, first.Total)
	assert.True(t, first.HasMore)
	assert.Len(t, first.Records, 10)
	assert.Equal(t, "rec-24", first.Records[0].ID)

	last := f.gallery.Page(ctx, 3, 10)
	assert.False(t, last.HasMore)
	assert.Len(t, last.Records, 5)

	clamped := f.gallery.Page(ctx, 0, 0)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, history.DefaultPageSize, clamped.Size)
}

func TestGallery_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.generate(t, 0, "A cat on a mat", 1)
	f.generate(t, 1, "A dog", 1)

	results := f.gallery.Search(ctx, "cat")
	require.Len(t, results, 1)
	assert.Equal(t, "rec-00", results[0].ID)
	assert.Equal(t, []string{"rec-00-0"}, imageIDs(results[0].Images))
}

func TestGallery_DeleteRecordCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.generate(t, 1, "keep", 2)
	f.generate(t, 2, "drop", 2)

	assert.True(t, f.gallery.DeleteRecord(ctx, "rec-02"))
	assert.True(t, f.gallery.DeleteRecord(ctx, "rec-02"))
	assert.True(t, f.gallery.DeleteRecord(ctx, "never-existed"))

	_, ok := f.history.Get(ctx, "rec-02")
	assert.False(t, ok)
	_, ok = f.images.Get(ctx, "rec-02-0")
	assert.False(t, ok)
	_, ok = f.images.Get(ctx, "rec-01-0")
	assert.True(t, ok)
}

type flakyImages struct {
	Images
	failID string
}

func (f flakyImages) Delete(ctx context.Context, id string) bool {
	if id == f.failID {
		return false
	}
	return f.Images.Delete(ctx, id)
}

func TestGallery_DeleteRecordContinuesPastImageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.generate(t, 1, "x", 3)

	g := New(f.history, flakyImages{Images: f.images, failID: "rec-01-0"})
	assert.True(t, g.DeleteRecord(ctx, "rec-01"))

	_, ok := f.images.Get(ctx, "rec-01-0")
	assert.True(t, ok, "failed delete is left behind")
	_, ok = f.images.Get(ctx, "rec-01-2")
	assert.False(t, ok)
	_, ok = f.history.Get(ctx, "rec-01")
	assert.False(t, ok)
}

func TestGallery_DeleteRecordsAndClearAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.generate(t, i, "p", 1)
	}

	assert.Equal(t, 2, f.gallery.DeleteRecords(ctx, []string{"rec-00", "rec-01"}))
	assert.Equal(t, 2, f.history.CountAll(ctx))

	assert.True(t, f.gallery.ClearAll(ctx))
	assert.Zero(t, f.history.CountAll(ctx))
	assert.Empty(t, f.images.GetAll(ctx))
}
