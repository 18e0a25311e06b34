package helper

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/route"
)

// stackTracer is implemented by errors that carry the stack of their origin,
// such as *future.PanicError.
type stackTracer interface {
	Stack() []byte
}

// AsyncHandler returns an Augmenter that watches deferred handler results.
// When a deferred result is rejected, the failure is logged and the request
// is answered with 502 "server error". A rejection after the request context
// ended is left to the host, which answers deadlines itself. Native handlers
// are left untouched and synchronous panics are left to the host.
func AsyncHandler(logger *slog.Logger) route.Augmenter {
	return route.Map(func(def route.Definition) route.Definition {
		fn, ok := def.Handler.(route.HandlerFunc)
		if !ok || fn == nil {
			return def
		}
		def.Handler = observeDeferred(fn, logger)
		return def
	})
}

func observeDeferred(fn route.HandlerFunc, logger *slog.Logger) route.HandlerFunc {
	return func(r *http.Request, reply route.Reply) route.Result {
		start := time.Now()
		res := fn(r, reply)
		f, ok := res.Future()
		if !ok {
			return res
		}
		f.OnResolve(func(any) {
			logger.Debug("deferred handler resolved",
				"path", r.URL.Path,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
		f.OnReject(func(err error) {
			if r.Context().Err() != nil {
				logger.Debug("deferred handler ended with its request", "err", err, "path", r.URL.Path)
				return
			}
			attrs := []any{
				"error", err.Error(),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.RequestIDFromContext(r.Context()),
			}
			var st stackTracer
			if errors.As(err, &st) && len(st.Stack()) > 0 {
				attrs = append(attrs, "stack", string(st.Stack()))
			}
			logger.Error("deferred handler failed", attrs...)
			middleware.DeferredFailures.Inc()

			if err := reply.Error(apierror.BadGateway("server error")); err != nil {
				logger.Debug("deferred failure not replied", "err", err, "path", r.URL.Path)
			}
		})
		return res
	}
}
