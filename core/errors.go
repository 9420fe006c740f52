package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Workflow error kinds. All of them are recoverable by the caller: a failed
// transition leaves state unchanged and surfaces as a 4xx-equivalent outcome.

type notFound struct {
	message string
}

func NewNotFoundError(msg string) error { return &notFound{message: msg} }

func (e notFound) Error() string { return e.message }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFound)
	return ok
}

type invalidState struct {
	message string
}

func NewInvalidStateError(msg string) error { return &invalidState{message: msg} }

func (e invalidState) Error() string { return e.message }

func IsInvalidState(err error) bool {
	_, ok := errors.Cause(err).(*invalidState)
	return ok
}

type conflict struct {
	message string
}

func NewConflictError(msg string) error { return &conflict{message: msg} }

func (e conflict) Error() string { return e.message }

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*conflict)
	return ok
}

type authorization struct {
	message string
}

func NewAuthorizationError(msg string) error { return &authorization{message: msg} }

func (e authorization) Error() string { return e.message }

func IsAuthorization(err error) bool {
	_, ok := errors.Cause(err).(*authorization)
	return ok
}

// unavailable is surfaced when bounded retries on transient storage failures
// (lock contention on a conditional update) are exhausted.
type unavailable struct {
	message string
}

func NewUnavailableError(msg string) error { return &unavailable{message: msg} }

func (e unavailable) Error() string { return e.message }

func IsUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*unavailable)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
