package helper

import (
	"strings"

	"github.com/menezmethod/routerhelper/internal/route"
)

// MixedMethod returns an Augmenter that expands a definition declared with a
// sequence of methods into one definition per method, in order. GET, HEAD and
// DELETE carry no request body, so their copy drops the payload rule.
func MixedMethod() route.Augmenter {
	return route.Expand(func(def route.Definition) ([]route.Definition, bool) {
		if def.Methods == nil {
			return nil, false
		}
		out := make([]route.Definition, 0, len(def.Methods))
		for _, m := range def.Methods {
			d := def
			d.Methods = nil
			d.Method = m
			if bodiless(m) {
				d.Config = withoutPayload(def.Config)
			}
			out = append(out, d)
		}
		return out, true
	})
}

func bodiless(method string) bool {
	switch strings.ToLower(method) {
	case "get", "head", "delete":
		return true
	}
	return false
}

// withoutPayload replaces cfg with a config holding only a shallow copy of
// its rules minus the payload rule. Without rules the config is empty.
func withoutPayload(cfg *route.Config) *route.Config {
	out := &route.Config{}
	if cfg != nil && cfg.Validate != nil {
		v := *cfg.Validate
		v.Payload = nil
		out.Validate = &v
	}
	return out
}
