// Package helper installs the route augmenters on a host: deferred handler
// failure replies, nested path prefixes and mixed-method expansion.
package helper

import (
	"errors"
	"log/slog"

	"github.com/menezmethod/routerhelper/internal/route"
)

// ErrMalformedPath is returned by strict prefix checking.
var ErrMalformedPath = errors.New("malformed route path")

// Descriptor identifies the helper to a host's plugin loader.
type Descriptor struct {
	Name string
}

// Attributes is the helper's static descriptor.
var Attributes = Descriptor{Name: "hapi-router-helper"}

// Host owns the live registration entry point.
type Host interface {
	EntryPoint() route.EntryPoint
	SetEntryPoint(route.EntryPoint)
}

// Options configures Register.
type Options struct {
	Logger      *slog.Logger
	PrefixCheck PrefixCheck
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Install composes the augmenters over ep in their fixed order:
// deferred failures, then nesting, then mixed methods.
func Install(ep route.EntryPoint, opts Options) route.EntryPoint {
	return route.Compose(ep,
		AsyncHandler(opts.logger().With("component", "async-handler")),
		Nested(opts),
		MixedMethod(),
	)
}

// Register installs the augmenters on host with a single entry point
// assignment, then calls next.
func Register(host Host, opts Options, next func()) {
	host.SetEntryPoint(Install(host.EntryPoint(), opts))
	if next != nil {
		next()
	}
}
