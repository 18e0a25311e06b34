// Package logging builds the process logger: JSON or text for machines,
// tinted console output for terminals, and GCP Cloud Logging fields when
// running on Google Cloud.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const serviceName = "routerhelper"

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// NewLogger returns a *slog.Logger configured for the given format and cloud mode.
// Format: "json" (default), "text" or "console".
// Cloud mode: "" (none), "gcp" (add severity), "gcp_with_resource" (severity + resource).
// Cloud mode always emits JSON, since that is what Cloud Logging parses.
func NewLogger(w io.Writer, level slog.Level, format string, cloudFormat string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	switch cloudFormat {
	case "gcp":
		return slog.New(NewGCPHandler(slog.NewJSONHandler(w, opts), false))
	case "gcp_with_resource":
		return slog.New(NewGCPHandler(slog.NewJSONHandler(w, opts), true))
	}

	var base slog.Handler
	switch format {
	case "text":
		base = slog.NewTextHandler(w, opts)
	case "console":
		return Console(w, level, isTerminal(w))
	default:
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(base)
}

// Console returns a logger writing tinted, human-readable lines to w.
func Console(w io.Writer, level slog.Level, color bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		NoColor:    !color,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))
}

type fder interface {
	Fd() uintptr
}

// isTerminal reports whether w is a terminal. Writers without a file
// descriptor are treated as plain.
func isTerminal(w io.Writer) bool {
	f, ok := w.(fder)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
