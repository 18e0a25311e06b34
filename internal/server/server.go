// Package server is the host the route helper is installed on: a chi router
// that owns the live registration entry point, registers route definitions
// and dispatches requests to their handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/config"
	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/observability"
	"github.com/menezmethod/routerhelper/internal/route"
)

// Server hosts routes on a chi router.
//
// EntryPoint and SetEntryPoint are meant for single-threaded setup before the
// server starts serving.
type Server struct {
	mux           *chi.Mux
	logger        *slog.Logger
	defaultMethod string

	mu     sync.RWMutex
	routes []RouteInfo
	paths  map[string]map[string]struct{} // path → registered methods

	entry route.EntryPoint
}

// New creates a Server with the global middleware stack installed. With
// tracing enabled, spans started outside the router are renamed to the
// matched route pattern.
func New(cfg config.Config, logger *slog.Logger) *Server {
	mux := chi.NewRouter()

	// The route pattern is only known inside the router.
	if cfg.Observability.OTelEnabled {
		mux.Use(observability.RouteSpan)
	}
	// Order (outermost → innermost): RequestID → Recover → Metrics → Logging → Timeout
	mux.Use(
		middleware.RequestID(),
		middleware.Recover(logger),
		middleware.Metrics(),
		middleware.Logging(logger),
	)
	if cfg.Server.HandlerTimeout > 0 {
		mux.Use(middleware.Timeout(cfg.Server.HandlerTimeout))
	}
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.NotFound())
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.MethodNotAllowed())
	})

	s := &Server{
		mux:           mux,
		logger:        logger,
		defaultMethod: strings.ToUpper(cfg.Routing.DefaultMethod),
		paths:         make(map[string]map[string]struct{}),
	}
	if s.defaultMethod == "" {
		s.defaultMethod = http.MethodGet
	}
	s.entry = s.hostEntryPoint()
	return s
}

// EntryPoint returns the live registration entry point.
func (s *Server) EntryPoint() route.EntryPoint {
	return s.entry
}

// SetEntryPoint replaces the live registration entry point.
func (s *Server) SetEntryPoint(ep route.EntryPoint) {
	s.entry = ep
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Routes returns the registered routes in registration order.
func (s *Server) Routes() []RouteInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RouteInfo, len(s.routes))
	copy(out, s.routes)
	return out
}

// HTTP returns an *http.Server serving s with the listener settings of cfg.
func (s *Server) HTTP(cfg config.Server) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.mux,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
}

// Shutdown gracefully shuts down the server with the given context.
func Shutdown(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	logger.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// hostEntryPoint is the entry point before any augmenter is installed: a
// registration function and the verb shorthands, without nesting.
func (s *Server) hostEntryPoint() route.EntryPoint {
	verb := func(method string) route.VerbFunc {
		return func(path string, cfg *route.Config, h route.Handler) error {
			return s.register(route.Definition{Path: path, Method: method, Handler: h, Config: cfg})
		}
	}
	return route.EntryPoint{
		Route: s.register,
		Verbs: route.Verbs{
			Get:  verb(http.MethodGet),
			Post: verb(http.MethodPost),
			Put:  verb(http.MethodPut),
			Del:  verb(http.MethodDelete),
			Any:  verb(methodAny),
		},
	}
}
