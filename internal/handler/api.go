package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/future"
	"github.com/menezmethod/routerhelper/internal/route"
	"github.com/menezmethod/routerhelper/internal/validation"
)

// MaxDelay bounds the delay route.
const MaxDelay = 10 * time.Second

// maxUpstreamBody bounds how much of an upstream response is relayed.
const maxUpstreamBody = 64 << 10

var (
	echoPayload = validation.MustCompile("echo-payload.json", `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"message": {"type": "string", "minLength": 1, "maxLength": 1024}
		}
	}`)

	delayQuery = validation.MustCompile("delay-query.json", `{
		"type": "object",
		"properties": {
			"ms": {"type": "string", "pattern": "^[0-9]{1,5}$"}
		}
	}`)
)

// Ping answers "pong".
//
//	GET /api/v1/ping
func Ping() route.HandlerFunc {
	return func(*http.Request, route.Reply) route.Result {
		return route.Immediate("pong")
	}
}

// Delay answers after ?ms= milliseconds, up to MaxDelay. The result is
// deferred, so the request goroutine only waits on it.
//
//	GET /api/v1/delay?ms=250
func Delay() route.HandlerFunc {
	return func(r *http.Request, _ route.Reply) route.Result {
		ms, _ := strconv.Atoi(r.URL.Query().Get("ms"))
		d := time.Duration(ms) * time.Millisecond
		if d > MaxDelay {
			return route.Immediate(apierror.InvalidRequest(fmt.Sprintf("ms must be at most %d", MaxDelay.Milliseconds())))
		}

		ctx := r.Context()
		return route.Deferred(future.Go(func() (any, error) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return map[string]int64{"delayed_ms": d.Milliseconds()}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}))
	}
}

// Echo returns the query on GET and the JSON payload on POST.
//
//	GET|POST /api/v1/echo
func Echo() route.HandlerFunc {
	return func(r *http.Request, _ route.Reply) route.Result {
		if r.Method != http.MethodPost {
			return route.Immediate(map[string]any{"query": validation.Query(r.URL.Query())})
		}
		doc, err := validation.DecodeJSON(r.Body)
		if err != nil {
			return route.Immediate(apierror.InvalidRequest("invalid payload: " + err.Error()))
		}
		return route.Immediate(map[string]any{"payload": doc})
	}
}

// UpstreamResponse is what the upstream route relays.
type UpstreamResponse struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Upstream fetches target and relays the response. A transport failure or a
// 5xx answer rejects the deferred result.
//
//	GET /api/v1/upstream
func Upstream(client *http.Client, target string) route.HandlerFunc {
	return func(r *http.Request, _ route.Reply) route.Result {
		ctx := r.Context()
		return route.Deferred(future.Go(func() (any, error) {
			return fetch(ctx, client, target)
		}))
	}
}

func fetch(ctx context.Context, client *http.Client, target string) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status)
	}
	return &UpstreamResponse{URL: target, Status: resp.StatusCode, Body: string(body)}, nil
}

// ErrUpstreamStatus is returned when the upstream answers with a server error.
var ErrUpstreamStatus = errors.New("upstream answered with a server error")

// HTTPProber probes a URL with HEAD; any answer below 500 counts as up.
type HTTPProber struct {
	Client *http.Client
	URL    string
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status)
	}
	return nil
}
