package generation

import (
	"context"
	"log/slog"

	"genstudio/internal/kvstore"
)

// SettingsKey is the kv key holding the last-used generation settings.
const SettingsKey = "generation_settings"

// Settings are the sizing options remembered between runs.
type Settings struct {
	Resolution     string `json:"resolution"`
	AspectRatio    string `json:"aspectRatio"`
	NumberOfImages int    `json:"numberOfImages"`
}

// DefaultSettings returns 1k, 1:1, one image.
func DefaultSettings() Settings {
	return Settings{Resolution: DefaultResolution, AspectRatio: DefaultAspectRatio, NumberOfImages: DefaultCount}
}

// LoadSettings reads the stored settings, falling back to defaults for
// missing or unusable values.
func LoadSettings(ctx context.Context, store kvstore.Store) Settings {
	def := DefaultSettings()
	var s Settings
	found, err := kvstore.GetJSON(ctx, store, SettingsKey, &s)
	if err != nil {
		slog.Warn("failed to read generation settings", "error", err)
		return def
	}
	if !found {
		return def
	}
	if !ValidResolution(s.Resolution) {
		s.Resolution = def.Resolution
	}
	if !ValidAspectRatio(s.AspectRatio) {
		s.AspectRatio = def.AspectRatio
	}
	if s.NumberOfImages < 1 || s.NumberOfImages > MaxCount {
		s.NumberOfImages = def.NumberOfImages
	}
	return s
}

// SaveSettings remembers the sizing options of req.
func SaveSettings(ctx context.Context, store kvstore.Store, req Request) error {
	return kvstore.SetJSON(ctx, store, SettingsKey, Settings{
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
		NumberOfImages: req.Count,
	})
}
