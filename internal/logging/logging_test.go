package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Format: FormatAuto, Level: "info"})

	logger.Debug("hidden")
	logger.Info("generation succeeded", "record_id", "r1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "generation succeeded", entry["msg"])
	assert.Equal(t, "r1", entry["record_id"])
}

func TestNew_PrettyWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Format: FormatPretty, Level: "debug"})

	logger.Debug("evicted images", "count", 3)
	out := buf.String()
	assert.Contains(t, out, "evicted images")
	assert.Contains(t, out, "count=3")
	assert.NotContains(t, out, "\033[")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
