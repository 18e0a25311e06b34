package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/config"
	"github.com/menezmethod/routerhelper/internal/future"
	"github.com/menezmethod/routerhelper/internal/helper"
	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/observability"
	"github.com/menezmethod/routerhelper/internal/route"
	"github.com/menezmethod/routerhelper/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestServer(modify func(*config.Config)) *Server {
	cfg := config.Defaults()
	if modify != nil {
		modify(&cfg)
	}
	return New(cfg, testLogger())
}

func immediate(v any) route.HandlerFunc {
	return func(*http.Request, route.Reply) route.Result { return route.Immediate(v) }
}

func serve(s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, body))
	return w
}

func decodeError(w *httptest.ResponseRecorder) apierror.Error {
	var e apierror.Error
	Expect(json.NewDecoder(w.Body).Decode(&e)).To(Succeed())
	return e
}

var _ = Describe("registration", func() {
	var s *Server

	BeforeEach(func() {
		s = newTestServer(nil)
	})

	It("rejects paths without a leading slash", func() {
		err := s.EntryPoint().Register(route.Definition{Path: "ping", Handler: immediate("pong")})
		Expect(err).To(MatchError(ErrInvalidPath))
	})

	It("rejects definitions without a handler", func() {
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a"})).To(MatchError(ErrNoHandler))
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Handler: route.HandlerFunc(nil)})).To(MatchError(ErrNoHandler))
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Handler: route.Native{}})).To(MatchError(ErrNoHandler))
	})

	It("rejects unknown methods and empty method lists", func() {
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Method: "BREW", Handler: immediate(nil)})).To(MatchError(ErrUnsupportedMethod))
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Methods: []string{}, Handler: immediate(nil)})).To(MatchError(ErrUnsupportedMethod))
		Expect(s.Routes()).To(BeEmpty())
	})

	It("rejects a second route for the same method and path", func() {
		Expect(s.EntryPoint().Get("/a", nil, immediate(nil))).To(Succeed())
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Method: "get", Handler: immediate(nil)})).To(MatchError(ErrRouteConflict))
		Expect(s.EntryPoint().Post("/a", nil, immediate(nil))).To(Succeed())
	})

	It("treats a wildcard route as conflicting with any method on its path", func() {
		Expect(s.EntryPoint().Any("/a", nil, immediate(nil))).To(Succeed())
		Expect(s.EntryPoint().Get("/a", nil, immediate(nil))).To(MatchError(ErrRouteConflict))

		Expect(s.EntryPoint().Put("/b", nil, immediate(nil))).To(Succeed())
		Expect(s.EntryPoint().Any("/b", nil, immediate(nil))).To(MatchError(ErrRouteConflict))
	})

	It("stops a sequence at the first failure and keeps earlier routes", func() {
		err := s.EntryPoint().Register(
			route.Definition{Path: "/one", Handler: immediate(nil)},
			route.Definition{Path: "bad", Handler: immediate(nil)},
			route.Definition{Path: "/three", Handler: immediate(nil)},
		)
		Expect(err).To(MatchError(ErrInvalidPath))

		routes := s.Routes()
		Expect(routes).To(HaveLen(1))
		Expect(routes[0].Path).To(Equal("/one"))
	})

	It("uses the configured default method", func() {
		s := newTestServer(func(c *config.Config) { c.Routing.DefaultMethod = "post" })
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Handler: immediate("ok")})).To(Succeed())

		Expect(s.Routes()[0].Method).To(Equal(http.MethodPost))
		Expect(serve(s, http.MethodPost, "/a", nil).Code).To(Equal(http.StatusOK))
		Expect(serve(s, http.MethodGet, "/a", nil).Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("registers each method of a sequence and folds duplicates", func() {
		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Methods: []string{"get", "GET", "put"}, Handler: immediate(nil)})).To(Succeed())

		var got []string
		for _, r := range s.Routes() {
			got = append(got, r.Method)
		}
		Expect(got).To(Equal([]string{"GET", "PUT"}))
	})

	It("records route metadata in registration order", func() {
		rule := validation.MustCompile("item.json", `{"type": "object"}`)
		Expect(s.EntryPoint().Register(
			route.Definition{Path: "/items", Method: "POST", Handler: immediate(nil), Config: &route.Config{
				Description: "create item",
				Tags:        []string{"api"},
				Validate:    &route.Validate{Payload: rule, Query: rule},
			}},
			route.Definition{Path: "/static", Handler: route.Native{Handler: http.NotFoundHandler()}},
		)).To(Succeed())

		Expect(s.Routes()).To(Equal([]RouteInfo{
			{Method: "POST", Path: "/items", Description: "create item", Tags: []string{"api"}, Validates: []string{"payload", "query"}},
			{Method: "GET", Path: "/static", Native: true},
		}))
	})

	It("returns a copy of the route table", func() {
		Expect(s.EntryPoint().Get("/a", nil, immediate(nil))).To(Succeed())
		routes := s.Routes()
		routes[0].Path = "/changed"
		Expect(s.Routes()[0].Path).To(Equal("/a"))
	})

	It("has no nesting before the helper is installed", func() {
		err := s.EntryPoint().Nested("/api").Register(route.Definition{Path: "/x", Handler: immediate(nil)})
		Expect(err).To(MatchError(route.ErrNoShorthand))
	})

	It("replaces the entry point", func() {
		var seen []string
		orig := s.EntryPoint()
		s.SetEntryPoint(orig.Replace(func(defs ...route.Definition) error {
			for _, d := range defs {
				seen = append(seen, d.Path)
			}
			return orig.Register(defs...)
		}))

		Expect(s.EntryPoint().Register(route.Definition{Path: "/a", Handler: immediate(nil)})).To(Succeed())
		Expect(seen).To(Equal([]string{"/a"}))
		Expect(s.Routes()).To(HaveLen(1))
	})
})

var _ = Describe("dispatch", func() {
	var s *Server

	BeforeEach(func() {
		s = newTestServer(nil)
	})

	DescribeTable("writes immediate values",
		func(v any, status int, contentType, body string) {
			Expect(s.EntryPoint().Get("/v", nil, immediate(v))).To(Succeed())

			w := serve(s, http.MethodGet, "/v", nil)
			Expect(w.Code).To(Equal(status))
			Expect(w.Header().Get("Content-Type")).To(Equal(contentType))
			Expect(strings.TrimSpace(w.Body.String())).To(Equal(body))
		},
		Entry("string", "pong", http.StatusOK, "text/plain; charset=utf-8", "pong"),
		Entry("bytes", []byte("raw"), http.StatusOK, "application/octet-stream", "raw"),
		Entry("struct", map[string]int{"n": 1}, http.StatusOK, "application/json", `{"n":1}`),
		Entry("nil", nil, http.StatusNoContent, "", ""),
		Entry("error reply", apierror.InvalidRequest("nope"), http.StatusBadRequest, "application/json", `{"statusCode":400,"error":"Bad Request","message":"nope"}`),
	)

	It("keeps a reply the handler already sent", func() {
		h := route.HandlerFunc(func(_ *http.Request, reply route.Reply) route.Result {
			Expect(reply.Send(http.StatusCreated, map[string]string{"id": "1"})).To(Succeed())
			Expect(reply.Send(http.StatusOK, "again")).To(MatchError(route.ErrAlreadyReplied))
			return route.Immediate("ignored")
		})
		Expect(s.EntryPoint().Post("/items", nil, h)).To(Succeed())

		w := serve(s, http.MethodPost, "/items", nil)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).To(MatchJSON(`{"id":"1"}`))
	})

	It("writes the value of a resolved deferred result", func() {
		h := route.HandlerFunc(func(*http.Request, route.Reply) route.Result {
			return route.Deferred(future.Go(func() (any, error) {
				time.Sleep(10 * time.Millisecond)
				return map[string]bool{"ok": true}, nil
			}))
		})
		Expect(s.EntryPoint().Get("/later", nil, h)).To(Succeed())

		w := serve(s, http.MethodGet, "/later", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"ok":true}`))
	})

	It("answers 500 for a rejection nobody replied to", func() {
		h := route.HandlerFunc(func(*http.Request, route.Reply) route.Result {
			return route.Deferred(future.Rejected(errors.New("boom")))
		})
		Expect(s.EntryPoint().Get("/fail", nil, h)).To(Succeed())

		w := serve(s, http.MethodGet, "/fail", nil)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decodeError(w).Message).NotTo(ContainSubstring("boom"))
	})

	It("answers 504 when the handler timeout passes first", func() {
		s := newTestServer(func(c *config.Config) { c.Server.HandlerTimeout = 20 * time.Millisecond })
		h := route.HandlerFunc(func(*http.Request, route.Reply) route.Result {
			return route.Deferred(future.New())
		})
		Expect(s.EntryPoint().Get("/slow", nil, h)).To(Succeed())

		w := serve(s, http.MethodGet, "/slow", nil)
		Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
		Expect(decodeError(w).Title).To(Equal("Gateway Timeout"))
	})

	It("answers 504 when a deferred result rejects because of the handler timeout", func() {
		s := newTestServer(func(c *config.Config) { c.Server.HandlerTimeout = 5 * time.Millisecond })
		h := route.HandlerFunc(func(r *http.Request, _ route.Reply) route.Result {
			ctx := r.Context()
			return route.Deferred(future.Go(func() (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}))
		})
		Expect(s.EntryPoint().Get("/slow", nil, h)).To(Succeed())

		for range 20 {
			Expect(serve(s, http.MethodGet, "/slow", nil).Code).To(Equal(http.StatusGatewayTimeout))
		}
	})

	It("writes nothing and closes the reply when the client goes away", func() {
		var captured route.Reply
		f := future.New()
		h := route.HandlerFunc(func(_ *http.Request, reply route.Reply) route.Result {
			captured = reply
			return route.Deferred(f)
		})
		Expect(s.EntryPoint().Get("/gone", nil, h)).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gone", nil).WithContext(ctx))

		Expect(w.Body.Len()).To(BeZero())
		Expect(captured.Send(http.StatusOK, "late")).To(MatchError(route.ErrReplyClosed))
		f.Resolve("late")
	})

	It("serves native handlers as-is", func() {
		native := route.Native{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, "native")
		})}
		Expect(s.EntryPoint().Get("/native", nil, native)).To(Succeed())

		w := serve(s, http.MethodGet, "/native", nil)
		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(Equal("native"))
	})

	It("routes every method to a wildcard route", func() {
		Expect(s.EntryPoint().Any("/any", nil, immediate("hit"))).To(Succeed())

		for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
			Expect(serve(s, m, "/any", nil).Body.String()).To(Equal("hit"), m)
		}
	})

	It("answers unknown paths and methods in the error envelope", func() {
		Expect(s.EntryPoint().Get("/a", nil, immediate(nil))).To(Succeed())

		w := serve(s, http.MethodGet, "/missing", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(w).Status).To(Equal(http.StatusNotFound))

		w = serve(s, http.MethodDelete, "/a", nil)
		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("echoes a request id header", func() {
		Expect(s.EntryPoint().Get("/a", nil, immediate(nil))).To(Succeed())
		Expect(serve(s, http.MethodGet, "/a", nil).Header().Get("X-Request-ID")).NotTo(BeEmpty())
	})
})

var _ = Describe("validation", func() {
	var s *Server

	BeforeEach(func() {
		s = newTestServer(nil)
		payload := validation.MustCompile("echo.json", `{
			"type": "object",
			"required": ["message"],
			"properties": {"message": {"type": "string", "minLength": 1}}
		}`)
		query := validation.MustCompile("query.json", `{
			"type": "object",
			"properties": {"verbose": {"enum": ["true", "false"]}}
		}`)
		params := validation.MustCompile("params.json", `{
			"type": "object",
			"properties": {"id": {"type": "string", "pattern": "^[0-9]+$"}}
		}`)

		echo := route.HandlerFunc(func(r *http.Request, _ route.Reply) route.Result {
			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			return route.Immediate(body)
		})
		Expect(s.EntryPoint().Post("/echo", &route.Config{Validate: &route.Validate{Payload: payload, Query: query}}, echo)).To(Succeed())
		Expect(s.EntryPoint().Get("/items/{id}", &route.Config{Validate: &route.Validate{Params: params}}, immediate("item"))).To(Succeed())
	})

	It("passes a valid payload through with the body intact", func() {
		w := serve(s, http.MethodPost, "/echo", strings.NewReader(`{"message":"hi"}`))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal(`{"message":"hi"}`))
	})

	DescribeTable("rejects invalid payloads with 400",
		func(body string) {
			w := serve(s, http.MethodPost, "/echo", strings.NewReader(body))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(w).Message).To(HavePrefix("invalid payload"))
		},
		Entry("missing field", `{}`),
		Entry("wrong type", `{"message": 3}`),
		Entry("not json", `{"message":`),
		Entry("empty body", ``),
	)

	It("rejects an invalid query", func() {
		w := serve(s, http.MethodPost, "/echo?verbose=maybe", strings.NewReader(`{"message":"hi"}`))
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Message).To(HavePrefix("invalid query"))
	})

	It("validates path parameters", func() {
		Expect(serve(s, http.MethodGet, "/items/42", nil).Code).To(Equal(http.StatusOK))

		w := serve(s, http.MethodGet, "/items/abc", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Message).To(HavePrefix("invalid params"))
	})
})

var _ = Describe("tracing", func() {
	var rec *tracetest.SpanRecorder

	BeforeEach(func() {
		rec = tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		DeferCleanup(func() {
			otel.SetTracerProvider(prev)
			_ = tp.Shutdown(context.Background())
		})
	})

	It("names request spans after the matched route pattern", func() {
		s := newTestServer(func(c *config.Config) { c.Observability.OTelEnabled = true })
		Expect(s.EntryPoint().Get("/items/{id}", nil, immediate("item"))).To(Succeed())

		h := observability.HTTPHandler(s.Handler(), "routerhelper")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		spans := rec.Ended()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Name()).To(Equal("GET /items/{id}"))
	})

	It("leaves span names alone when tracing is disabled", func() {
		s := newTestServer(nil)
		Expect(s.EntryPoint().Get("/items/{id}", nil, immediate("item"))).To(Succeed())

		observability.HTTPHandler(s.Handler(), "routerhelper").
			ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

		spans := rec.Ended()
		Expect(spans).To(HaveLen(1))
		Expect(spans[0].Name()).To(Equal("GET /items/42"))
	})
})

var _ = Describe("with the helper installed", func() {
	var s *Server

	BeforeEach(func() {
		s = newTestServer(nil)
		helper.Register(s, helper.Options{Logger: testLogger()}, nil)
	})

	It("serves /ping registered through the composed entry point", func() {
		Expect(s.EntryPoint().Register(route.Definition{Path: "/ping", Method: "GET", Handler: immediate("pong")})).To(Succeed())

		w := serve(s, http.MethodGet, "/ping", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("pong"))
		Expect(s.Routes()).To(Equal([]RouteInfo{{Method: "GET", Path: "/ping"}}))
	})

	It("answers 502 when a deferred result rejects", func() {
		h := route.HandlerFunc(func(*http.Request, route.Reply) route.Result {
			return route.Deferred(future.Go(func() (any, error) { return nil, errors.New("upstream down") }))
		})
		Expect(s.EntryPoint().Get("/upstream", nil, h)).To(Succeed())

		w := serve(s, http.MethodGet, "/upstream", nil)
		Expect(w.Code).To(Equal(http.StatusBadGateway))
		e := decodeError(w)
		Expect(e.Title).To(Equal("Bad Gateway"))
		Expect(e.Message).To(Equal("server error"))
	})

	It("answers 504 when the handler timeout ends a deferred result first", func() {
		s = newTestServer(func(c *config.Config) { c.Server.HandlerTimeout = 5 * time.Millisecond })
		helper.Register(s, helper.Options{Logger: testLogger()}, nil)
		slow := route.HandlerFunc(func(r *http.Request, _ route.Reply) route.Result {
			ctx := r.Context()
			return route.Deferred(future.Go(func() (any, error) {
				select {
				case <-time.After(100 * time.Millisecond):
					return "late", nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}))
		})
		Expect(s.EntryPoint().Get("/delay", nil, slow)).To(Succeed())

		before := testutil.ToFloat64(middleware.DeferredFailures)
		for range 20 {
			w := serve(s, http.MethodGet, "/delay", nil)
			Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
		}
		Expect(testutil.ToFloat64(middleware.DeferredFailures)).To(Equal(before))
	})

	It("mounts nested groups under their prefix", func() {
		api := s.EntryPoint().Nested("/api").Nested("/v1")
		Expect(api.Get("/ping", nil, immediate("pong"))).To(Succeed())

		Expect(serve(s, http.MethodGet, "/api/v1/ping", nil).Body.String()).To(Equal("pong"))
	})

	It("expands mixed methods and drops the payload rule for GET", func() {
		payload := validation.MustCompile("mixed.json", `{"type": "object", "required": ["message"]}`)
		Expect(s.EntryPoint().Register(route.Definition{
			Path:    "/echo",
			Methods: []string{"GET", "POST"},
			Handler: immediate("ok"),
			Config:  &route.Config{Validate: &route.Validate{Payload: payload}},
		})).To(Succeed())

		Expect(serve(s, http.MethodGet, "/echo", nil).Code).To(Equal(http.StatusOK))
		Expect(serve(s, http.MethodPost, "/echo", strings.NewReader(`{}`)).Code).To(Equal(http.StatusBadRequest))

		routes := s.Routes()
		Expect(routes).To(HaveLen(2))
		Expect(routes[0].Validates).To(BeEmpty())
		Expect(routes[1].Validates).To(Equal([]string{"payload"}))
	})
})
