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

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field string, err error) error {
	return &ValidationError{Err: err, Fields: []FieldError{{Field: field, Error: err.Error()}}}
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

// NotFoundError is returned when a looked-up resource does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError is returned when a write clashes with existing state: duplicates, locked records...
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

// PermissionError is returned when a user may not act on a resource.
type PermissionError struct {
	Message string
}

func NewPermissionError(msg string) *PermissionError {
	return &PermissionError{Message: msg}
}

func (err PermissionError) Error() string {
	return err.Message
}

var ErrPermissionDenied = NewPermissionError("permission denied")

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

// IsNotFound reports whether the root cause of `err` is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}
