// Package apierror provides the HTTP error type used for every error reply.
//
// Errors are serialized in the Boom envelope (statusCode, error, message) so
// clients written against hapi services keep parsing them unchanged.
package apierror

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error represents an HTTP error reply.
type Error struct {
	Status  int    `json:"statusCode"`
	Title   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Title
	}
	return e.Message
}

// New returns an Error for status with the standard status text as title.
func New(status int, msg string) *Error {
	return &Error{
		Status:  status,
		Title:   http.StatusText(status),
		Message: msg,
	}
}

// Write sends an Error as a JSON HTTP response.
func Write(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)

	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		slog.Error("failed to encode error response", "err", encErr)
	}
}

// InvalidRequest returns a 400 error for requests failing route validation.
func InvalidRequest(msg string) *Error {
	return New(http.StatusBadRequest, msg)
}

// NotFound returns a 404 error for unknown paths.
func NotFound() *Error {
	return New(http.StatusNotFound, "Not Found")
}

// MethodNotAllowed returns a 405 error for a known path with no route for the method.
func MethodNotAllowed() *Error {
	return New(http.StatusMethodNotAllowed, "Method Not Allowed")
}

// Internal returns a 500 error for unexpected server failures.
func Internal(msg string) *Error {
	return New(http.StatusInternalServerError, msg)
}

// BadGateway returns a 502 error, used when a handler's deferred result fails.
func BadGateway(msg string) *Error {
	return New(http.StatusBadGateway, msg)
}

// GatewayTimeout returns a 504 error for requests that outlive the handler timeout.
func GatewayTimeout() *Error {
	return New(http.StatusGatewayTimeout, "Gateway Timeout")
}
