package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKey is returned when a write references a row that does not exist.
	ErrForeignKey = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a write violates a CHECK or NOT NULL constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInUse is returned when a delete is rejected because other rows still reference the record.
	ErrInUse = errors.New("persistence: record in use")
)
