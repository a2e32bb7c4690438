// Package logging builds the process slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Formats accepted by New.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
	FormatAuto   = "auto"
)

// Options selects the handler.
type Options struct {
	Format string
	Level  string
}

// New returns a logger writing to out. Pretty output uses tint with colors
// only when out is a terminal; auto picks pretty on a terminal and JSON otherwise.
func New(out io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	tty := isTerminal(out)

	format := strings.ToLower(opts.Format)
	if format == FormatAuto || format == "" {
		format = FormatJSON
		if tty {
			format = FormatPretty
		}
	}

	if format == FormatPretty {
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !tty,
		}))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
