// Package apperrors implements the error taxonomy from spec.md §7: a small
// set of Kinds, not types, each mapping to one HTTP status and one
// upper-snake code for the API envelope.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for HTTP status mapping and client handling.
type Kind string

const (
	Validation  Kind = "VALIDATION"
	NotFound    Kind = "NOT_FOUND"
	Conflict    Kind = "CONFLICT"
	Persistence Kind = "PERSISTENCE"
	Upstream    Kind = "UPSTREAM"
	Processing  Kind = "PROCESSING"
	Cancelled   Kind = "CANCELLED"
	Timeout     Kind = "TIMEOUT"
	Internal    Kind = "INTERNAL"
)

// Error is the error type surfaced from Store/JobStore/Coordinator calls up
// to the HTTP layer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with an explicit UPPER_SNAKE code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error that records an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithDetails attaches structured detail fields and returns e for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Common, reusable constructors matching spec.md §7's taxonomy.
func NotFoundf(resource, format string, args ...any) *Error {
	return New(NotFound, "RESOURCE_NOT_FOUND", fmt.Sprintf(format, args...)).
		WithDetails(map[string]any{"resource": resource})
}

func Validationf(code, format string, args ...any) *Error {
	return New(Validation, code, fmt.Sprintf(format, args...))
}

func Conflictf(code, format string, args ...any) *Error {
	return New(Conflict, code, fmt.Sprintf(format, args...))
}

func PersistenceErr(err error, format string, args ...any) *Error {
	return Wrap(Persistence, "PERSISTENCE_ERROR", fmt.Sprintf(format, args...), err)
}

func UpstreamErr(err error, code, format string, args ...any) *Error {
	return Wrap(Upstream, code, fmt.Sprintf(format, args...), err)
}

func ProcessingErr(err error, code, format string, args ...any) *Error {
	return Wrap(Processing, code, fmt.Sprintf(format, args...), err)
}

func CancelledErr(format string, args ...any) *Error {
	return New(Cancelled, "JOB_CANCELLED", fmt.Sprintf(format, args...))
}

func TimeoutErr(step string) *Error {
	return New(Timeout, "STEP_TIMEOUT", fmt.Sprintf("step %q exceeded its deadline", step)).
		WithDetails(map[string]any{"step": step})
}

func Internalf(err error, format string, args ...any) *Error {
	return Wrap(Internal, "INTERNAL_ERROR", fmt.Sprintf(format, args...), err)
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to the status code required by spec.md §6.1.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Processing, Cancelled:
		return http.StatusUnprocessableEntity
	case Upstream:
		return http.StatusBadGateway
	case Persistence:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
