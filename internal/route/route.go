// Package route defines route definitions and the registration entry point
// that route augmenters wrap.
//
// An EntryPoint is a registration function plus its verb shorthands. An
// Augmenter takes the current entry point and returns a replacement that
// delegates to it; Compose installs a sequence of augmenters without mutating
// the entry point it starts from.
package route

import (
	"net/http"

	"github.com/menezmethod/routerhelper/internal/apierror"
	"github.com/menezmethod/routerhelper/internal/future"
)

// Definition is the unit of registration.
type Definition struct {
	// Path may contain chi parameter placeholders such as {id}.
	Path string

	// Method is the scalar form. Empty means the host's default method.
	Method string

	// Methods is the sequence form. When non-nil it takes precedence over Method.
	Methods []string

	Handler Handler
	Config  *Config
}

// Config holds optional per-route options.
type Config struct {
	Description string
	Tags        []string
	Validate    *Validate
}

// Validate holds validation rules keyed by request part. A nil Rule means
// the part is not validated.
type Validate struct {
	Payload Rule
	Query   Rule
	Params  Rule
}

// Rule validates one decoded request part. *jsonschema.Schema satisfies it.
type Rule interface {
	Validate(v any) error
}

// RuleFunc adapts an ordinary function to a Rule.
type RuleFunc func(v any) error

// Validate calls f(v).
func (f RuleFunc) Validate(v any) error {
	return f(v)
}

// Handler is either a HandlerFunc or a Native handler.
type Handler interface {
	handler()
}

// HandlerFunc handles a request and returns an immediate or deferred result.
type HandlerFunc func(r *http.Request, reply Reply) Result

func (HandlerFunc) handler() {}

// Native is a handler the host serves as-is, such as a file server or the
// metrics exporter. Augmenters never rewrite it.
type Native struct {
	http.Handler
}

func (Native) handler() {}

// Reply delivers a response for the current request. Only the first reply is
// written; later calls return ErrAlreadyReplied, and calls after the request
// has ended return ErrReplyClosed.
type Reply interface {
	Send(status int, v any) error
	Error(err *apierror.Error) error
	Written() bool
}

// Result is what a HandlerFunc returns: either an immediate value or a
// deferred one. The zero Result is Immediate(nil).
type Result struct {
	value    any
	deferred *future.Future
}

// Immediate returns a Result holding v.
func Immediate(v any) Result {
	return Result{value: v}
}

// Deferred returns a Result whose value is produced by f.
func Deferred(f *future.Future) Result {
	return Result{deferred: f}
}

// Value returns the immediate value. It is nil for deferred results.
func (r Result) Value() any {
	return r.value
}

// Future returns the deferred result, if any.
func (r Result) Future() (*future.Future, bool) {
	return r.deferred, r.deferred != nil
}
