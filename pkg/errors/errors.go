// Package errors defines the sentinel errors shared across the service and
// maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingData means a job has no precomputed word list for a field.
	// It is fatal during provisioning.
	ErrMissingData = errors.New("missing precomputed word data")
	// ErrOracleUnavailable means the membership store could not answer.
	// It is never a substitute for "word absent".
	ErrOracleUnavailable = errors.New("membership oracle unavailable")
	ErrNotProvisioned    = errors.New("indexes not provisioned")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// statusBySentinel is consulted in order; the first sentinel err wraps wins.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrTimeout, http.StatusGatewayTimeout},
	{ErrNotProvisioned, http.StatusServiceUnavailable},
	{ErrOracleUnavailable, http.StatusServiceUnavailable},
}

// AppError pins a sentinel to a status code and a message that is safe to
// show to clients.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode returns the status for err: an AppError's own code, else the
// code of the first known sentinel it wraps, else 500.
func HTTPStatusCode(err error) int {
	if appErr, ok := asAppError(err); ok {
		return appErr.StatusCode
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text to put in an error response body. Only an
// AppError's Message is exposed; anything else yields the status text.
func PublicMessage(err error) string {
	if appErr, ok := asAppError(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return http.StatusText(HTTPStatusCode(err))
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
