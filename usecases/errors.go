package usecases

import (
	"errors"
	"fmt"

	"cacao-server/repositories"
)

// ErrorKind classifies a use case failure. The HTTP layer maps each kind to a
// status code.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInternal     ErrorKind = "internal"
)

// FieldError is one field-level validation failure, keyed by the JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type returned by use cases.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Invalid(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// InvalidField is shorthand for a validation error on a single field.
func InvalidField(field, message string) *Error {
	return Invalid(message, FieldError{Field: field, Message: message})
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal wraps an unexpected failure. The message is generic; the cause is
// kept for logging only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", err: err}
}

// KindOf returns the kind of err, treating foreign errors as internal.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindInternal
}

// wrap passes use case errors through and turns anything else into an
// internal error.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var ue *Error
	if errors.As(err, &ue) {
		return err
	}
	return Internal(err)
}

// lookup maps a repository miss to a not-found error for entity.
func lookup(err error, entity string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return NotFound(entity)
	}
	return wrap(err)
}
