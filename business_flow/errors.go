// Package businessflow contains the core business logic of the character registry
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants. Every error a flow returns wraps exactly one of these.
var (
	// ErrValidation covers malformed input: empty or oversized names, negative stats, id 0, empty counter names
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateName is returned when another character already holds the name
	ErrDuplicateName = errors.New("character name already exists")

	// ErrCharacterNotFound is returned when no character has the requested id
	ErrCharacterNotFound = errors.New("character not found")

	// ErrStorageUnavailable is returned when the persistence layer fails or is unreachable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// newValidationError wraps ErrValidation with a human-readable reason
func newValidationError(code, message string) *BusinessError {
	return NewBusinessError(code, message, ErrValidation)
}

// newStorageError wraps a persistence failure so it matches ErrStorageUnavailable while keeping the cause
func newStorageError(code, message string, cause error) *BusinessError {
	return NewBusinessError(code, message, fmt.Errorf("%w: %w", ErrStorageUnavailable, cause))
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

func IsCharacterNotFound(err error) bool {
	return errors.Is(err, ErrCharacterNotFound)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// ErrorCode extracts the BusinessError code from err, or "" when err is not a BusinessError
func ErrorCode(err error) string {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr.Code
	}
	return ""
}
