package helper

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/menezmethod/routerhelper/internal/route"
)

// PrefixCheck controls how joined paths are checked. Joining is always plain
// string concatenation; the check only decides what happens to suspicious
// results such as "/api//users" or "apiusers".
type PrefixCheck int

const (
	// PrefixCheckOff joins paths without looking at them.
	PrefixCheckOff PrefixCheck = iota
	// PrefixCheckWarn logs suspicious joins and registers them anyway.
	PrefixCheckWarn
	// PrefixCheckStrict rejects suspicious joins with ErrMalformedPath.
	PrefixCheckStrict
)

// ParsePrefixCheck parses "off", "warn" or "strict". The empty string is off.
func ParsePrefixCheck(s string) (PrefixCheck, error) {
	switch strings.ToLower(s) {
	case "", "off":
		return PrefixCheckOff, nil
	case "warn":
		return PrefixCheckWarn, nil
	case "strict":
		return PrefixCheckStrict, nil
	default:
		return PrefixCheckOff, fmt.Errorf("unknown prefix check %q", s)
	}
}

func (c PrefixCheck) String() string {
	switch c {
	case PrefixCheckWarn:
		return "warn"
	case PrefixCheckStrict:
		return "strict"
	default:
		return "off"
	}
}

// Group registers routes under an accumulated path prefix. It is an immutable
// value: Nested returns a new Group and leaves the receiver as it was.
type Group struct {
	prefix string
	orig   route.EntryPoint
	check  PrefixCheck
	logger *slog.Logger
}

// Nested returns an Augmenter that replaces the entry point with the root
// Group. Routes registered through a Group, its shorthands and its nested
// groups go straight to the entry point that was current when Nested was
// installed.
func Nested(opts Options) route.Augmenter {
	return func(orig route.EntryPoint) route.EntryPoint {
		return Group{
			orig:   orig,
			check:  opts.PrefixCheck,
			logger: opts.logger(),
		}.EntryPoint()
	}
}

// Prefix returns the accumulated prefix.
func (g Group) Prefix() string {
	return g.prefix
}

// Nested returns a group for prefix under g.
func (g Group) Nested(prefix string) Group {
	g.prefix += prefix
	return g
}

// Route registers defs with the group prefix prepended to their paths.
// Methods and validation rules are forwarded as given.
func (g Group) Route(defs ...route.Definition) error {
	for _, def := range defs {
		path, err := g.join(def.Path)
		if err != nil {
			return err
		}
		def.Path = path
		if err := g.orig.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EntryPoint returns g as an entry point with get, post, put, del, any and
// nested shorthands.
func (g Group) EntryPoint() route.EntryPoint {
	return route.EntryPoint{
		Route: g.Route,
		Verbs: route.Verbs{
			Get:  g.verb(http.MethodGet),
			Post: g.verb(http.MethodPost),
			Put:  g.verb(http.MethodPut),
			Del:  g.verb(http.MethodDelete),
			Any:  g.verb("*"),
			Nested: func(prefix string) route.EntryPoint {
				return g.Nested(prefix).EntryPoint()
			},
		},
	}
}

func (g Group) verb(method string) route.VerbFunc {
	return func(path string, cfg *route.Config, h route.Handler) error {
		full, err := g.join(path)
		if err != nil {
			return err
		}
		return g.orig.Register(route.Definition{
			Path:    full,
			Method:  method,
			Handler: h,
			Config:  cfg,
		})
	}
}

func (g Group) join(path string) (string, error) {
	full := g.prefix + path
	if g.check == PrefixCheckOff || !suspicious(full) {
		return full, nil
	}
	if g.check == PrefixCheckStrict {
		return "", fmt.Errorf("%w: %q + %q", ErrMalformedPath, g.prefix, path)
	}
	g.logger.Warn("suspicious route path", "prefix", g.prefix, "path", path, "joined", full)
	return full, nil
}

func suspicious(path string) bool {
	return !strings.HasPrefix(path, "/") || strings.Contains(path, "//")
}
