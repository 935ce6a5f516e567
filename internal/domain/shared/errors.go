// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")

	// Storage errors
	ErrStorage                = errors.New("storage failure")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrServiceUnavailable     = errors.New("service unavailable")
	ErrRateLimited            = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "streak", "proficiency", "lesson"
	Op      string // Operation that failed, e.g., "ApplyXP"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds an ErrValidation domain error.
func ValidationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// StorageError wraps a backend failure.
func StorageError(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStorage, "storage operation failed", err)
}

// Account errors
var (
	ErrInvalidUsername = NewDomainError("account", "Validate", ErrValidation,
		"username must be 1-32 characters of letters, digits, '.', '_' or '-'")
	ErrInvalidPassword = NewDomainError("account", "Validate", ErrValidation,
		"password must be between 1 and 72 bytes")
	ErrSessionNotFound = NewDomainError("account", "Resume", ErrUnauthorized, "session not found")
	ErrSessionExpired  = NewDomainError("account", "Resume", ErrExpired, "session expired")
)

// Progression errors
var (
	ErrInvalidLanguage = NewDomainError("proficiency", "Validate", ErrValidation,
		"language must be an ISO code such as \"hi\" or \"pt-BR\"")
	ErrNegativeXP = NewDomainError("proficiency", "ApplyXP", ErrValidation,
		"xp delta cannot be negative")
	ErrXPOverflow = NewDomainError("proficiency", "ApplyXP", ErrValidation,
		"xp delta would overflow the stored total")
	ErrInvalidLevel = NewDomainError("proficiency", "ParseLevel", ErrValidation,
		"level must be one of Beginner, Intermediate, Advanced or None")
	ErrScoreOutOfRange = NewDomainError("lesson", "RecordActivityScore", ErrValidation,
		"score must be between 0 and 100")
	ErrEmptyActivityTitle = NewDomainError("lesson", "RecordActivityScore", ErrValidation,
		"activity title cannot be empty")
	ErrInvalidLessonID = NewDomainError("lesson", "Validate", ErrValidation,
		"lesson id must be positive")
	ErrInvalidDate = NewDomainError("streak", "Validate", ErrValidation,
		"date must use the YYYY-MM-DD format")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsUnauthorized checks if the caller lacks a valid session.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrExpired)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}
