// Package future provides a one-shot deferred result that handlers return
// when their response is produced after the handler call itself returns.
package future

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is a value or error that becomes available later. It settles at most
// once; observers attached before settlement run on the settling goroutine
// before Done is closed, observers attached afterwards run immediately.
// Observer panics are recovered and discarded.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	onResolve []func(any)
	onReject  []func(error)
}

// New returns a pending Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future already settled with v.
func Resolved(v any) *Future {
	f := New()
	f.Resolve(v)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f := New()
	f.Reject(err)
	return f
}

// Go runs fn on its own goroutine and settles the returned Future with its
// result. A panic in fn rejects the Future with a *PanicError.
func Go(fn func() (any, error)) *Future {
	f := New()
	go func() {
		v, err := call(fn)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

func call(fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, &PanicError{Value: p, stack: debug.Stack()}
		}
	}()
	return fn()
}

// Resolve settles f with v. It reports false if f was already settled.
func (f *Future) Resolve(v any) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	observers := f.onResolve
	f.onResolve, f.onReject = nil, nil
	f.mu.Unlock()

	defer close(f.done)
	for _, fn := range observers {
		notify(fn, v)
	}
	return true
}

// Reject settles f with err. A nil err is replaced with ErrNilRejection.
// It reports false if f was already settled.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.err = err
	observers := f.onReject
	f.onResolve, f.onReject = nil, nil
	f.mu.Unlock()

	defer close(f.done)
	for _, fn := range observers {
		notify(fn, err)
	}
	return true
}

// OnResolve registers fn to run when f resolves.
func (f *Future) OnResolve(fn func(any)) {
	f.mu.Lock()
	if !f.settled {
		f.onResolve = append(f.onResolve, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	if err == nil {
		notify(fn, v)
	}
}

// OnReject registers fn to run when f is rejected.
func (f *Future) OnReject(fn func(error)) {
	f.mu.Lock()
	if !f.settled {
		f.onReject = append(f.onReject, fn)
		f.mu.Unlock()
		return
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		notify(fn, err)
	}
}

// notify runs one observer. A panicking observer is dropped so the others
// still run and Done still closes.
func notify[T any](fn func(T), v T) {
	defer func() { _ = recover() }()
	fn(v)
}

// Done is closed once f has settled and its observers have run.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value and error. Before settlement it returns
// ErrPending.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, ErrPending
	}
	return f.value, f.err
}

// Wait blocks until f settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PanicError is the rejection reason of a Go function that panicked.
type PanicError struct {
	Value any
	stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Stack returns the goroutine stack captured when the panic was recovered.
func (e *PanicError) Stack() []byte {
	return e.stack
}
