package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns middleware that bounds each request's context to d.
// It writes nothing itself; handlers that observe the deadline reply with
// 504.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
