package future

import "errors"

var (
	// ErrPending is returned by Result before the future has settled.
	ErrPending = errors.New("future: not settled")

	// ErrNilRejection replaces a nil error passed to Reject.
	ErrNilRejection = errors.New("future: rejected without a reason")
)
