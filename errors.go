package criteria

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// RepositoryError represents an error raised by a repository or its adapter.
type RepositoryError struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Error implements the error interface
func (e RepositoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e RepositoryError) Unwrap() error {
	return e.Cause
}

// Is matches any RepositoryError of the same type
func (e RepositoryError) Is(target error) bool {
	if t, ok := target.(RepositoryError); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new RepositoryError
func NewError(errorType ErrorType, message string) RepositoryError {
	return RepositoryError{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new RepositoryError with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) RepositoryError {
	return RepositoryError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks against the translation failures.
var (
	ErrUnknownCriteria   = RepositoryError{Type: ErrorTypeUnknownCriteria}
	ErrMalformedCriteria = RepositoryError{Type: ErrorTypeMalformedCriteria}
	ErrNotFound          = RepositoryError{Type: ErrorTypeNotFound}
)

// UnknownCriteriaError is returned when a leaf reaches a repository whose
// registry has no translator for its kind. It is a configuration error.
type UnknownCriteriaError struct {
	Kind       Kind
	Repository string
	Path       string
}

func (e *UnknownCriteriaError) Error() string {
	return fmt.Sprintf("%s: no translator for criteria %q in repository %q (at %s)",
		ErrorTypeUnknownCriteria, e.Kind, e.Repository, e.Path)
}

// Is matches ErrUnknownCriteria.
func (e *UnknownCriteriaError) Is(target error) bool {
	t, ok := target.(RepositoryError)
	return ok && t.Type == ErrorTypeUnknownCriteria
}

// MalformedCriteriaError is returned when a criteria tree is structurally
// invalid: an empty composite, a nil node or a payload of the wrong type.
type MalformedCriteriaError struct {
	Repository string
	Path       string
	Reason     string
}

func (e *MalformedCriteriaError) Error() string {
	if e.Repository == "" {
		return fmt.Sprintf("%s: %s (at %s)", ErrorTypeMalformedCriteria, e.Reason, e.Path)
	}
	return fmt.Sprintf("%s: %s in repository %q (at %s)", ErrorTypeMalformedCriteria, e.Reason, e.Repository, e.Path)
}

// Is matches ErrMalformedCriteria.
func (e *MalformedCriteriaError) Is(target error) bool {
	t, ok := target.(RepositoryError)
	return ok && t.Type == ErrorTypeMalformedCriteria
}

// IsUnknownCriteria checks if err is, or wraps, an UnknownCriteriaError
func IsUnknownCriteria(err error) bool {
	var target *UnknownCriteriaError
	return errors.As(err, &target)
}

// IsMalformedCriteria checks if err is, or wraps, a MalformedCriteriaError
func IsMalformedCriteria(err error) bool {
	var target *MalformedCriteriaError
	return errors.As(err, &target)
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a "validation" error
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.Type == errorType
	}
	switch errorType {
	case ErrorTypeUnknownCriteria:
		return IsUnknownCriteria(err)
	case ErrorTypeMalformedCriteria:
		return IsMalformedCriteria(err)
	}
	return false
}

// IsDuplicate checks if an error is a "duplicate" error
func IsDuplicate(err error) bool {
	return IsErrorType(err, ErrorTypeDuplicate)
}

// IsConnection checks if an error is a "connection" error
func IsConnection(err error) bool {
	return IsErrorType(err, ErrorTypeConnection)
}
