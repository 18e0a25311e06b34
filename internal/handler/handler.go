package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/menezmethod/routerhelper/internal/config"
	"github.com/menezmethod/routerhelper/internal/observability"
	"github.com/menezmethod/routerhelper/internal/route"
)

// Deps are the collaborators of the service routes.
type Deps struct {
	Routes   RouteLister
	Upstream config.Upstream
	Logger   *slog.Logger

	// Client fetches the upstream. Nil builds one with trace propagation
	// and the upstream timeout.
	Client *http.Client
}

func (d Deps) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	timeout := d.Upstream.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: observability.Transport(nil)}
}

var (
	opsTags = []string{"ops"}
	apiTags = []string{"api"}
)

// Register mounts the service routes on ep.
//
//	GET      /health, /health/ready, /version, /metrics
//	GET|HEAD /routes
//	GET      /api/v1/ping, /api/v1/delay, /api/v1/upstream
//	GET|POST /api/v1/echo
func Register(ep route.EntryPoint, d Deps) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := d.client()

	var prober Prober
	if d.Upstream.URL != "" {
		prober = HTTPProber{Client: client, URL: d.Upstream.URL}
	}

	if err := ep.Register(
		route.Definition{
			Path:    "/health",
			Method:  http.MethodGet,
			Handler: route.Native{Handler: Health()},
			Config:  &route.Config{Description: "liveness", Tags: opsTags},
		},
		route.Definition{
			Path:    "/health/ready",
			Method:  http.MethodGet,
			Handler: route.Native{Handler: Ready(prober, 2*time.Second)},
			Config:  &route.Config{Description: "readiness, probes the upstream when configured", Tags: opsTags},
		},
		route.Definition{
			Path:    "/version",
			Method:  http.MethodGet,
			Handler: route.Native{Handler: VersionInfo()},
			Config:  &route.Config{Description: "build version", Tags: opsTags},
		},
		route.Definition{
			Path:    "/metrics",
			Method:  http.MethodGet,
			Handler: route.Native{Handler: promhttp.Handler()},
			Config:  &route.Config{Description: "Prometheus metrics", Tags: opsTags},
		},
		route.Definition{
			Path:    "/routes",
			Methods: []string{http.MethodGet, http.MethodHead},
			Handler: route.Native{Handler: Routes(d.Routes, logger)},
			Config:  &route.Config{Description: "registered routes as JSON or YAML", Tags: opsTags},
		},
	); err != nil {
		return fmt.Errorf("register ops routes: %w", err)
	}

	api := ep.Nested("/api").Nested("/v1")
	if err := api.Get("/ping", &route.Config{Description: "answers pong", Tags: apiTags}, Ping()); err != nil {
		return fmt.Errorf("register ping: %w", err)
	}
	delayCfg := &route.Config{
		Description: "answers after ?ms= milliseconds",
		Tags:        apiTags,
		Validate:    &route.Validate{Query: delayQuery},
	}
	if err := api.Get("/delay", delayCfg, Delay()); err != nil {
		return fmt.Errorf("register delay: %w", err)
	}
	if d.Upstream.URL != "" {
		cfg := &route.Config{Description: "relays " + d.Upstream.URL, Tags: apiTags}
		if err := api.Get("/upstream", cfg, Upstream(client, d.Upstream.URL)); err != nil {
			return fmt.Errorf("register upstream: %w", err)
		}
	}

	// Group routes skip method expansion, so echo goes through the root.
	if err := ep.Register(route.Definition{
		Path:    "/api/v1/echo",
		Methods: []string{http.MethodGet, http.MethodPost},
		Handler: Echo(),
		Config: &route.Config{
			Description: "echoes the query or payload",
			Tags:        apiTags,
			Validate:    &route.Validate{Payload: echoPayload},
		},
	}); err != nil {
		return fmt.Errorf("register echo: %w", err)
	}
	return nil
}
