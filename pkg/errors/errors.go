// Package errors defines the error taxonomy shared by every persistence
// backend. Callers of the repository layer only ever see these types;
// backend-native failures are translated before they cross the boundary.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure for the caller's retry decision.
type ErrorType string

const (
	// ErrorTypeNotFound means a lookup found nothing. It is not returned by
	// FindByID (absence is a nil result there) but is returned by operations
	// that assert the record must exist.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation covers malformed identifiers, missing required
	// fields, and referential-integrity violations caught at write time.
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict means a concurrent writer won an optimistic-lock
	// race. Retry immediately after a fresh read.
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnavailable means the backing store could not be reached or
	// timed out. Retry with backoff.
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrorTypeConfiguration is fatal and only produced at startup.
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"

	// ErrorTypeInternal is an unexpected failure inside this layer.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError carries the classified type plus the untranslated cause for logs.
type AppError struct {
	Type    ErrorType
	Message string
	Details map[string]any
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured context to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause wraps the underlying backend error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewNotFoundError creates a NOT_FOUND error for the named resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a CONFLICT error.
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnavailableError creates an UNAVAILABLE error for the named backend.
func NewUnavailableError(backend string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: fmt.Sprintf("backend '%s' is unavailable", backend),
		Cause:   err,
	}
}

// NewConfigurationError creates a startup-fatal CONFIGURATION error.
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewInternalError creates an INTERNAL error.
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsUnavailable reports whether err is an UNAVAILABLE error.
func IsUnavailable(err error) bool { return IsType(err, ErrorTypeUnavailable) }

// IsConfiguration reports whether err is a CONFIGURATION error.
func IsConfiguration(err error) bool { return IsType(err, ErrorTypeConfiguration) }

// Wrap adds context to an error, preserving its classification when it is
// already an AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
