package repository

import "errors"

var (
	// ErrUniqueViolation is returned when an insert collides with a unique constraint other than the primary key
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrDuplicateID is returned when an insert collides on the primary key.
	// Seeing it means an id was issued twice.
	ErrDuplicateID = errors.New("duplicate primary key")
)
