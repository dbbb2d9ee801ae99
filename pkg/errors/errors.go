package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels classify failures independently of how they are reported.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
	ErrCorrupted      = errors.New("corrupted data")
)

// kind is the client-facing rendering of a sentinel.
type kind struct {
	sentinel error
	code     string
	status   int
	// message replaces err.Error() for clients; empty means pass it through.
	message string
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests, "too many requests"},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "a dependency is temporarily unavailable"},
}

const (
	internalCode    = "INTERNAL_ERROR"
	internalMessage = "an internal error occurred"
)

// AppError is an error with a stable code and HTTP status for clients.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	return &AppError{Code: internalCode, Message: message, Status: http.StatusInternalServerError, Err: sentinel}
}

// NotFound reports a missing resource, e.g. a product id the catalog does not know.
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidInput reports a request the caller must fix.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

// Unavailable reports an upstream dependency that cannot be reached.
func Unavailable(message string) *AppError {
	return newAppError(ErrServiceUnavail, message)
}

// RateLimited reports that an upstream throttled us.
func RateLimited(message string) *AppError {
	return newAppError(ErrRateLimited, message)
}

// Corrupted wraps a decode failure of persisted data. It is never rendered to
// clients; callers recover from it locally.
func Corrupted(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, ErrCorrupted, err)
}

// From returns the AppError carried by err, or classifies err by the sentinel
// it wraps. Anything unrecognized becomes an opaque internal error.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			msg := k.message
			if msg == "" {
				msg = err.Error()
			}
			return &AppError{Code: k.code, Message: msg, Status: k.status, Err: err}
		}
	}
	return &AppError{Code: internalCode, Message: internalMessage, Status: http.StatusInternalServerError, Err: err}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	return From(err).Status
}
