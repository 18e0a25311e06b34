package server

import "errors"

var (
	// ErrInvalidPath is returned for paths that do not start with "/".
	ErrInvalidPath = errors.New("route path must start with /")

	// ErrNoHandler is returned for definitions without a handler.
	ErrNoHandler = errors.New("route has no handler")

	// ErrUnsupportedMethod is returned for methods chi cannot route.
	ErrUnsupportedMethod = errors.New("unsupported route method")

	// ErrRouteConflict is returned when a method and path are already registered.
	ErrRouteConflict = errors.New("route conflicts with an existing route")
)
