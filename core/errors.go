package core

import "github.com/pkg/errors"

// ErrNotFound is the root of all "not found" errors; package errors wrap it so the API can map them to 404.
var ErrNotFound = errors.New("not found")

type notFound struct {
	msg string
}

// NewNotFoundError returns an error reporting a missing entity.
func NewNotFoundError(msg string) error {
	return &notFound{msg: msg}
}

func (nf *notFound) Error() string { return nf.msg }

// Is makes errors.Is(err, ErrNotFound) true for every notFound error.
func (nf *notFound) Is(target error) bool { return target == ErrNotFound }

// IsNotFound reports whether err (or its cause) is a not found error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := errors.Cause(err).(*notFound); ok {
		return true
	}
	return errors.Cause(err) == ErrNotFound
}

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

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// ConflictError reports a request that clashes with the current state (double booking, full class..).
type ConflictError struct {
	Message string
	Details []string
}

func NewConflictError(msg string, details ...string) error {
	return &ConflictError{Message: msg, Details: details}
}

func (err ConflictError) Error() string {
	return err.Message
}

// PermissionError reports an authenticated user acting outside their rights.
type PermissionError struct {
	Permission string
}

func NewPermissionError(perm string) error {
	return &PermissionError{Permission: perm}
}

func (err PermissionError) Error() string {
	if err.Permission == "" {
		return "permission denied"
	}
	return "permission denied: " + err.Permission
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
