package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/route"
)

// httpHandler adapts a definition's handler, adding validation when the
// definition carries rules.
func (s *Server) httpHandler(def route.Definition) http.Handler {
	var h http.Handler
	switch hd := def.Handler.(type) {
	case route.HandlerFunc:
		h = s.dispatch(hd)
	case route.Native:
		h = hd.Handler
	}
	if def.Config != nil && def.Config.Validate != nil {
		h = s.validated(*def.Config.Validate, h)
	}
	return h
}

// dispatch calls fn and writes its result. A deferred result is awaited
// until it settles or the request context ends. Once the context has ended,
// a pending or rejected result is answered by the host: a handler timeout
// with 504, a client disconnect with nothing. Either way the reply is then
// closed to late writers.
func (s *Server) dispatch(fn route.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := &reply{w: w}
		res := fn(r, rep)

		f, deferred := res.Future()
		if !deferred {
			_ = rep.deliver(res.Value())
			return
		}

		select {
		case <-f.Done():
		case <-r.Context().Done():
		}

		v, err := f.Result()
		if ctxErr := r.Context().Err(); ctxErr != nil && err != nil {
			if !rep.Written() {
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					_ = rep.Error(apierror.GatewayTimeout())
				}
				s.logger.Warn("request ended before deferred result settled",
					"path", r.URL.Path,
					"err", ctxErr,
					"request_id", middleware.RequestIDFromContext(r.Context()),
				)
			}
			rep.close()
			return
		}

		if rep.Written() {
			return
		}
		if err != nil {
			s.logger.Error("deferred result rejected without a reply",
				"path", r.URL.Path,
				"err", err,
				"request_id", middleware.RequestIDFromContext(r.Context()),
			)
			_ = rep.Error(apierror.Internal("An internal server error occurred"))
			return
		}
		_ = rep.deliver(v)
	})
}

// reply is the route.Reply handed to handlers. It writes at most once and
// refuses writes after the request has ended.
type reply struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	written bool
	closed  bool
}

// Send writes v with status.
func (rp *reply) Send(status int, v any) error {
	return rp.once(func() { writeValue(rp.w, status, v) })
}

// Error writes err in the error envelope.
func (rp *reply) Error(err *apierror.Error) error {
	return rp.once(func() { apierror.Write(rp.w, err) })
}

// Written reports whether a reply has been sent.
func (rp *reply) Written() bool {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.written
}

func (rp *reply) once(write func()) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	switch {
	case rp.closed:
		return route.ErrReplyClosed
	case rp.written:
		return route.ErrAlreadyReplied
	}
	rp.written = true
	write()
	return nil
}

func (rp *reply) close() {
	rp.mu.Lock()
	rp.closed = true
	rp.mu.Unlock()
}

// deliver writes a handler's value: nil as 204, anything else as 200 unless
// it is an error reply.
func (rp *reply) deliver(v any) error {
	switch v := v.(type) {
	case nil:
		return rp.Send(http.StatusNoContent, nil)
	case *apierror.Error:
		return rp.Error(v)
	default:
		return rp.Send(http.StatusOK, v)
	}
}

func writeValue(w http.ResponseWriter, status int, v any) {
	switch v := v.(type) {
	case nil:
		w.WriteHeader(status)
	case *apierror.Error:
		apierror.Write(w, v)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, v)
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(status)
		_, _ = w.Write(v)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}
