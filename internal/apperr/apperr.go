// Package apperr defines the error kinds surfaced by account and channel
// operations and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind discriminates the failure classes reported to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
	KindUploadFailure
	KindCreationFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUploadFailure:
		return "upload_failure"
	case KindCreationFailure:
		return "creation_failure"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code associated with the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying a human readable message, optional
// structured details and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

func newError(kind Kind, err error, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details, Err: err}
}

// Validation reports malformed or missing input.
func Validation(message string, details ...string) *Error {
	return newError(KindValidation, nil, message, details...)
}

// Conflict reports a duplicate unique field.
func Conflict(message string, details ...string) *Error {
	return newError(KindConflict, nil, message, details...)
}

// Unauthorized reports bad credentials or an unusable token.
func Unauthorized(message string, err error) *Error {
	return newError(KindUnauthorized, err, message)
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return newError(KindNotFound, nil, message)
}

// UploadFailure reports a failed call to remote media storage.
func UploadFailure(message string, err error) *Error {
	return newError(KindUploadFailure, err, message)
}

// CreationFailure reports a persistence failure after partial side effects.
func CreationFailure(message string, err error) *Error {
	return newError(KindCreationFailure, err, message)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return newError(KindInternal, err, message)
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the provided kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
