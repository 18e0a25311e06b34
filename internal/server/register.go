package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/route"
)

// methodAny registers a route for every method.
const methodAny = "*"

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodConnect: true,
	http.MethodTrace:   true,
	methodAny:          true,
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method      string   `json:"method" yaml:"method"`
	Path        string   `json:"path" yaml:"path"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Native      bool     `json:"native,omitempty" yaml:"native,omitempty"`
	Validates   []string `json:"validates,omitempty" yaml:"validates,omitempty"`
}

// register is the terminal registration function.
func (s *Server) register(defs ...route.Definition) error {
	for _, def := range defs {
		if err := s.registerOne(def); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) registerOne(def route.Definition) (err error) {
	if !strings.HasPrefix(def.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, def.Path)
	}
	if !hasHandler(def.Handler) {
		return fmt.Errorf("%w: %s", ErrNoHandler, def.Path)
	}
	methods, err := s.methods(def)
	if err != nil {
		return fmt.Errorf("%s: %w", def.Path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range methods {
		if s.conflicts(m, def.Path) {
			return fmt.Errorf("%w: %s %s", ErrRouteConflict, m, def.Path)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("register %s: %v", def.Path, p)
		}
	}()

	h := s.httpHandler(def)
	for _, m := range methods {
		if m == methodAny {
			s.mux.Handle(def.Path, h)
		} else {
			s.mux.Method(m, def.Path, h)
		}
		s.record(m, def)
		middleware.RoutesRegistered.WithLabelValues(m).Inc()
		s.logger.Debug("route registered", "method", m, "path", def.Path)
	}
	return nil
}

// methods resolves the definition's methods: the sequence when present,
// otherwise the scalar or the default method. Names are upper-cased.
func (s *Server) methods(def route.Definition) ([]string, error) {
	names := def.Methods
	if names == nil {
		m := def.Method
		if m == "" {
			m = s.defaultMethod
		}
		names = []string{m}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty method list", ErrUnsupportedMethod)
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		m := strings.ToUpper(n)
		if !knownMethods[m] {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, n)
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// conflicts reports whether m on path collides with a registered route.
// A wildcard route collides with any route on the same path.
func (s *Server) conflicts(m, path string) bool {
	registered := s.paths[path]
	if len(registered) == 0 {
		return false
	}
	if m == methodAny {
		return true
	}
	_, exact := registered[m]
	_, wildcard := registered[methodAny]
	return exact || wildcard
}

func (s *Server) record(m string, def route.Definition) {
	if s.paths[def.Path] == nil {
		s.paths[def.Path] = make(map[string]struct{})
	}
	s.paths[def.Path][m] = struct{}{}

	info := RouteInfo{Method: m, Path: def.Path}
	_, info.Native = def.Handler.(route.Native)
	if cfg := def.Config; cfg != nil {
		info.Description = cfg.Description
		info.Tags = cfg.Tags
		info.Validates = validatedParts(cfg.Validate)
	}
	s.routes = append(s.routes, info)
}

func hasHandler(h route.Handler) bool {
	switch h := h.(type) {
	case route.HandlerFunc:
		return h != nil
	case route.Native:
		return h.Handler != nil
	}
	return false
}
