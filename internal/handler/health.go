// Package handler implements the routerhelper service routes and mounts them
// through the composed registration entry point.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/version"
)

// Health handles liveness checks. It always returns 200 if the server is running.
// Response includes "version" so you can see which routerhelper build is running.
//
//	GET /health
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	}
}

// Prober checks whether a dependency is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Ready handles readiness checks. It returns 200 when p is nil or answers
// within the probe timeout, and 503 otherwise.
//
//	GET /health/ready
func Ready(p Prober, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if err := p.Probe(ctx); err != nil {
				middleware.UpstreamHealth.Set(0)
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status":  "unavailable",
					"error":   err.Error(),
					"version": version.Version,
				})
				return
			}
			middleware.UpstreamHealth.Set(1)
		}

		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ready",
			"version": version.Version,
		})
	}
}

// VersionInfo handles version info. Returns JSON with version and optional commit.
//
//	GET /version
func VersionInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		out := map[string]string{"version": version.Version}
		if version.Commit != "" {
			out["commit"] = version.Commit
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
