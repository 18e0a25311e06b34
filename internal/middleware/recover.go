package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/menezmethod/routerhelper/internal/apierror"
)

// Recover returns middleware that catches panics raised synchronously by a
// handler, logs the stack trace and answers 500 instead of crashing the server.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				)
				apierror.Write(w, apierror.Internal("An internal server error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
