package logging

import (
	"context"
	"log/slog"
)

// severity maps slog.Level to GCP Cloud Logging severity strings.
// https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
var severityByLevel = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARNING",
	slog.LevelError: "ERROR",
}

// GCPHandler wraps a slog.Handler and adds "severity" (and optionally "resource")
// so that JSON logs are natively parsed by GCP Cloud Logging.
type GCPHandler struct {
	inner       slog.Handler
	addResource bool
}

// NewGCPHandler returns a handler that adds severity to every record.
// If addResource is true, adds a "resource" object with type "generic_task"
// labelled with the routerhelper service name.
func NewGCPHandler(inner slog.Handler, addResource bool) *GCPHandler {
	return &GCPHandler{inner: inner, addResource: addResource}
}

// Enabled reports whether the inner handler would log this level.
func (h *GCPHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds severity (and optionally resource) then forwards to the inner handler.
func (h *GCPHandler) Handle(ctx context.Context, r slog.Record) error {
	sev := severityByLevel[r.Level]
	if sev == "" {
		sev = "DEFAULT"
	}
	r.AddAttrs(slog.String("severity", sev))
	if h.addResource {
		r.AddAttrs(slog.Any("resource", map[string]any{
			"type": "generic_task",
			"labels": map[string]string{
				"service": serviceName,
			},
		}))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes.
func (h *GCPHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GCPHandler{
		inner:       h.inner.WithAttrs(attrs),
		addResource: h.addResource,
	}
}

// WithGroup returns a new handler for the given group.
func (h *GCPHandler) WithGroup(name string) slog.Handler {
	return &GCPHandler{
		inner:       h.inner.WithGroup(name),
		addResource: h.addResource,
	}
}
