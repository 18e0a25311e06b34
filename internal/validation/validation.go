// Package validation compiles JSON Schema rules for route validation and
// decodes request parts into the shapes those rules check.
package validation

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Compile compiles schemaJSON under id. The returned schema satisfies
// route.Rule.
func Compile(id, schemaJSON string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", id, err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(id, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", id, err)
	}
	sch, err := c.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", id, err)
	}
	return sch, nil
}

// MustCompile is like Compile but panics on error. It is meant for schemas
// declared alongside route definitions at startup.
func MustCompile(id, schemaJSON string) *jsonschema.Schema {
	sch, err := Compile(id, schemaJSON)
	if err != nil {
		panic(err)
	}
	return sch
}

// DecodeJSON decodes a JSON document keeping numbers exact.
func DecodeJSON(r io.Reader) (any, error) {
	v, err := jsonschema.UnmarshalJSON(r)
	if err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return v, nil
}

// Query converts query values to a JSON object. Keys with one value map to
// a string, repeated keys to an array of strings.
func Query(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		arr := make([]any, len(vs))
		for i, v := range vs {
			arr[i] = v
		}
		out[k] = arr
	}
	return out
}

// Params converts path parameter names and values to a JSON object.
func Params(keys, values []string) map[string]any {
	out := make(map[string]any, len(keys))
	for i, k := range keys {
		if k == "*" || i >= len(values) {
			continue
		}
		out[k] = values[i]
	}
	return out
}
