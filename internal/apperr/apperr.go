// Package apperr defines the error taxonomy surfaced by the verdict pipeline and its HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind string

const (
	// KindInvalidInput is a client error (empty question, malformed expense). Not retried.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindNotFound means there is nothing to analyze yet (no expenses).
	KindNotFound Kind = "NOT_FOUND"
	// KindServiceUnavailable means an embedding or LLM backend failed, timed out, or returned garbage.
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	// KindInternal covers unexpected failures in formatting, search, or persistence.
	KindInternal Kind = "INTERNAL"
)

// Error is a classified error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidInput creates an invalid-input error.
func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// NotFound creates a not-found error wrapping cause.
func NotFound(msg string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Cause: cause}
}

// Unavailable creates a service-unavailable error wrapping cause.
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: msg, Cause: cause}
}

// Internal creates an internal error wrapping cause.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to end users.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
