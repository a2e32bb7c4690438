package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/app"
	"genstudio/internal/core"
	"genstudio/internal/generation"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

type stubTransport struct {
	body  []byte
	calls int
}

func (s *stubTransport) SubmitNativeMultimodal(context.Context, string, any) ([]byte, error) {
	s.calls++
	return s.body, nil
}

func (s *stubTransport) SubmitGenericImage(context.Context, any) ([]byte, error) {
	s.calls++
	return s.body, nil
}

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "genstudio.db"))
	t.Setenv("KV_TYPE", "file")
	t.Setenv("KV_FILE_PATH", filepath.Join(dir, "settings.json"))
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("UPSTREAM_BASE_URL", "http://upstream.invalid")
	t.Setenv("UPSTREAM_API_KEY", "sk-test-1234567890")
	return dir
}

func runCLI(t *testing.T, transport generation.Transport, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cli := &cliContext{
		out:    &out,
		errOut: &errOut,
		newApp: func(ctx context.Context, cfg app.Config) (*app.App, error) {
			cfg.Transport = transport
			return app.New(ctx, cfg)
		},
	}
	cmd := rootCommand(cli)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, nil, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "max_retries: 15")
	assert.Contains(t, out, "base_url: http://upstream.invalid")
	assert.NotContains(t, out, "1234567890")
}

func TestCacheConfig_ShowAndUpdate(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, nil, "--json", "cache", "config")
	require.NoError(t, err)
	var cfg core.CacheConfig
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, core.DefaultCacheConfig(), cfg)

	_, err = runCLI(t, nil, "cache", "config", "--max-count", "5", "--max-age", "1h")
	require.NoError(t, err)

	out, err = runCLI(t, nil, "--json", "cache", "config")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 5, cfg.MaxCount)
	assert.Equal(t, int64(3600000), cfg.MaxAgeMs)
	assert.Equal(t, int64(core.DefaultCacheMaxSize), cfg.MaxSizeBytes)

	_, err = runCLI(t, nil, "cache", "config", "--max-count", "0")
	assert.ErrorContains(t, err, "maxCount must be positive")
}

func TestGenerate_StoresHistoryAndSettings(t *testing.T) {
	dir := setupCLIEnv(t)
	transport := &stubTransport{body: []byte(`{"data":[{"b64_json":"` + onePixelPNG + `","revised_prompt":"a calm lake"}]}`)}

	out, err := runCLI(t, transport, "--json", "generate",
		"--prompt", "a lake", "--model", "dall-e-3", "--aspect", "16:9", "--out", filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)

	var snap generation.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, generation.StateSucceeded, snap.State)
	require.Len(t, snap.Images, 1)
	assert.Equal(t, snap.RecordID+"-0", snap.Images[0].ID)

	written, err := os.ReadFile(filepath.Join(dir, "out", snap.Images[0].ID+".png"))
	require.NoError(t, err)
	assert.NotEmpty(t, written)

	out, err = runCLI(t, nil, "history", "search", "LAKE")
	require.NoError(t, err)
	assert.Contains(t, out, snap.RecordID)
	assert.Contains(t, out, "dall-e-3")

	out, err = runCLI(t, nil, "--json", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)

	// The aspect ratio is remembered; the next run without --aspect reuses it.
	transport.calls = 0
	out, err = runCLI(t, transport, "--json", "generate", "--prompt", "a river", "--model", "dall-e-3")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)

	out, err = runCLI(t, nil, "--json", "history", "list")
	require.NoError(t, err)
	var page struct {
		Total   int `json:"total"`
		Records []struct {
			Prompt string                `json:"prompt"`
			Params core.GenerationParams `json:"params"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "a river", page.Records[0].Prompt)
	assert.Equal(t, "16:9", page.Records[0].Params.AspectRatio)
}

func TestHistoryDeleteAndClear(t *testing.T) {
	setupCLIEnv(t)
	transport := &stubTransport{body: []byte(`{"data":[{"b64_json":"` + onePixelPNG + `"}]}`)}

	out, err := runCLI(t, transport, "--json", "generate", "--prompt", "one", "--model", "dall-e-3")
	require.NoError(t, err)
	var snap generation.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))

	out, err = runCLI(t, nil, "history", "delete", snap.RecordID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 of 1")

	out, err = runCLI(t, nil, "--json", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 0`)

	out, err = runCLI(t, nil, "history", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "history cleared")
}

func TestCacheStats_Table(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, nil, "cache", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "images")
	assert.Contains(t, out, "50.0 MiB")
	assert.Contains(t, out, "168h0m0s")
}

func TestGenerate_RequiresPrompt(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, &stubTransport{}, "generate", "--model", "dall-e-3")

	assert.ErrorContains(t, err, "prompt")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "50.0 MiB", formatBytes(50*1024*1024))
}
