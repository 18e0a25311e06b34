package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routerhelper",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "routerhelper",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routerhelper",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})

	RoutesRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "routerhelper",
		Name:      "routes_registered_total",
		Help:      "Routes registered with the host router by method.",
	}, []string{"method"})

	DeferredFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "routerhelper",
		Name:      "deferred_failures_total",
		Help:      "Deferred handler results that were rejected and answered with 502.",
	})

	UpstreamHealth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "routerhelper",
		Subsystem: "upstream",
		Name:      "healthy",
		Help:      "Whether the configured upstream answered the last readiness probe (1=healthy, 0=unhealthy).",
	})
)

// routePattern returns the chi route pattern that matched r. It is only
// complete once routing has finished. Unmatched requests share one label to
// avoid cardinality explosion.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "/other"
}

// Metrics returns middleware that records Prometheus metrics for every request.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			status := strconv.Itoa(sw.status)
			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
