package route

import "errors"

var (
	// ErrNoRoute is returned when an entry point has no registration function.
	ErrNoRoute = errors.New("route: entry point has no registration function")

	// ErrNoShorthand is returned when a shorthand form is not provided.
	ErrNoShorthand = errors.New("route: shorthand not provided by entry point")

	// ErrAlreadyReplied is returned by Reply once a response has been written.
	ErrAlreadyReplied = errors.New("route: reply already sent")

	// ErrReplyClosed is returned by Reply once the request has ended.
	ErrReplyClosed = errors.New("route: request ended before reply")
)
