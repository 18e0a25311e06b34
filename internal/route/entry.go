package route

import "fmt"

// RouteFunc registers one or more definitions. Definitions are registered
// independently and in order; the first failure stops the rest and earlier
// registrations stay in place.
type RouteFunc func(defs ...Definition) error

// VerbFunc registers a single route whose method is fixed by the shorthand.
type VerbFunc func(path string, cfg *Config, h Handler) error

// Verbs are the shorthand forms carried alongside a RouteFunc.
type Verbs struct {
	Get    VerbFunc
	Post   VerbFunc
	Put    VerbFunc
	Del    VerbFunc
	Any    VerbFunc
	Nested func(prefix string) EntryPoint
}

// EntryPoint is the registration entry point of a host.
type EntryPoint struct {
	Route RouteFunc
	Verbs Verbs
}

// Replace returns an entry point that registers through fn and keeps every
// shorthand of ep.
func (ep EntryPoint) Replace(fn RouteFunc) EntryPoint {
	return EntryPoint{
		Route: fn,
		Verbs: Verbs{
			Get:    ep.Verbs.Get,
			Post:   ep.Verbs.Post,
			Put:    ep.Verbs.Put,
			Del:    ep.Verbs.Del,
			Any:    ep.Verbs.Any,
			Nested: ep.Verbs.Nested,
		},
	}
}

// Register calls ep.Route, failing with ErrNoRoute when it is unset.
func (ep EntryPoint) Register(defs ...Definition) error {
	if ep.Route == nil {
		return ErrNoRoute
	}
	return ep.Route(defs...)
}

// Get registers a GET route through the Get shorthand.
func (ep EntryPoint) Get(path string, cfg *Config, h Handler) error {
	return call(ep.Verbs.Get, "get", path, cfg, h)
}

// Post registers a POST route through the Post shorthand.
func (ep EntryPoint) Post(path string, cfg *Config, h Handler) error {
	return call(ep.Verbs.Post, "post", path, cfg, h)
}

// Put registers a PUT route through the Put shorthand.
func (ep EntryPoint) Put(path string, cfg *Config, h Handler) error {
	return call(ep.Verbs.Put, "put", path, cfg, h)
}

// Del registers a DELETE route through the Del shorthand.
func (ep EntryPoint) Del(path string, cfg *Config, h Handler) error {
	return call(ep.Verbs.Del, "del", path, cfg, h)
}

// Any registers a route matching every method through the Any shorthand.
func (ep EntryPoint) Any(path string, cfg *Config, h Handler) error {
	return call(ep.Verbs.Any, "any", path, cfg, h)
}

// Nested returns the entry point for routes under prefix. When the host has
// no nesting support, registrations through the result fail with
// ErrNoShorthand.
func (ep EntryPoint) Nested(prefix string) EntryPoint {
	if ep.Verbs.Nested == nil {
		return EntryPoint{Route: func(...Definition) error {
			return fmt.Errorf("nested: %w", ErrNoShorthand)
		}}
	}
	return ep.Verbs.Nested(prefix)
}

func call(fn VerbFunc, name, path string, cfg *Config, h Handler) error {
	if fn == nil {
		return fmt.Errorf("%s: %w", name, ErrNoShorthand)
	}
	return fn(path, cfg, h)
}

// Augmenter replaces an entry point with one that delegates to it.
type Augmenter func(EntryPoint) EntryPoint

// Compose installs augs over ep in the order given. The last augmenter
// installed is the first to see a registration call.
//
//	Compose(ep, A, B)
//	// Registration order: B → A → ep
func Compose(ep EntryPoint, augs ...Augmenter) EntryPoint {
	for _, aug := range augs {
		ep = aug(ep)
	}
	return ep
}

// Map returns an Augmenter that rewrites every definition with fn before
// forwarding it to the wrapped entry point.
func Map(fn func(Definition) Definition) Augmenter {
	return func(orig EntryPoint) EntryPoint {
		return orig.Replace(func(defs ...Definition) error {
			for _, def := range defs {
				if err := orig.Register(fn(def)); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// Expand returns an Augmenter that lets fn split a definition into several.
// When fn reports true, each produced definition is registered again through
// the returned entry point; otherwise the input is forwarded unchanged.
func Expand(fn func(Definition) ([]Definition, bool)) Augmenter {
	return func(orig EntryPoint) EntryPoint {
		var inner RouteFunc
		inner = func(defs ...Definition) error {
			for _, def := range defs {
				expanded, ok := fn(def)
				if !ok {
					if err := orig.Register(def); err != nil {
						return err
					}
					continue
				}
				if err := inner(expanded...); err != nil {
					return err
				}
			}
			return nil
		}
		return orig.Replace(inner)
	}
}
