package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write would break a uniqueness or reference rule.
	ErrConflict = errors.New("application: conflict")
	// ErrIOFailure is returned when file bytes could not be written or read.
	ErrIOFailure = errors.New("application: io failure")
	// ErrEmptyBundle is returned when a meeting has no downloadable documents.
	// It also matches ErrNotFound.
	ErrEmptyBundle error = emptyBundleError{}
)

type emptyBundleError struct{}

func (emptyBundleError) Error() string        { return "application: no documents to bundle" }
func (emptyBundleError) Is(target error) bool { return target == ErrNotFound }

// NotFoundError names the kind of entity that was missing.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

// ConflictError carries the reason a write was rejected.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

// IOError reports a storage failure for one uploaded file. FileName is the
// name the client supplied, never a filesystem path.
type IOError struct {
	FileName string
	Op       string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q failed", e.Op, e.FileName)
}

// Unwrap exposes both ErrIOFailure and the underlying cause.
func (e *IOError) Unwrap() []error {
	return []error{ErrIOFailure, e.Err}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func singleFieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
