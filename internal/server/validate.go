package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/route"
	"github.com/menezmethod/routerhelper/internal/validation"
)

// maxPayload bounds the body read for payload validation.
const maxPayload = 1 << 20

// validated checks params, query and payload against rules before calling
// next. The body is restored so next can read it again.
func (s *Server) validated(rules route.Validate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rules.Params != nil {
			var keys, values []string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				keys, values = rctx.URLParams.Keys, rctx.URLParams.Values
			}
			if err := rules.Params.Validate(validation.Params(keys, values)); err != nil {
				reject(w, "params", err)
				return
			}
		}

		if rules.Query != nil {
			if err := rules.Query.Validate(validation.Query(r.URL.Query())); err != nil {
				reject(w, "query", err)
				return
			}
		}

		if rules.Payload != nil {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayload))
			_ = r.Body.Close()
			if err != nil {
				reject(w, "payload", err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var doc any
			if len(bytes.TrimSpace(body)) > 0 {
				if doc, err = validation.DecodeJSON(bytes.NewReader(body)); err != nil {
					reject(w, "payload", err)
					return
				}
			}
			if err := rules.Payload.Validate(doc); err != nil {
				reject(w, "payload", err)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter, part string, err error) {
	apierror.Write(w, apierror.InvalidRequest(fmt.Sprintf("invalid %s: %v", part, err)))
}

func validatedParts(v *route.Validate) []string {
	if v == nil {
		return nil
	}
	var parts []string
	if v.Payload != nil {
		parts = append(parts, "payload")
	}
	if v.Query != nil {
		parts = append(parts, "query")
	}
	if v.Params != nil {
		parts = append(parts, "params")
	}
	return parts
}
