package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Domain packages wrap one of these so callers can branch on the
// kind without knowing the concrete sentinel.
var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound = errors.New("resource not found")

	ErrConflict = errors.New("resource conflict")

	ErrUpstream = errors.New("upstream dependency failed")
)

var (
	ErrInvalidArgument = errors.New("invalid argument")

	ErrAlreadyExists = fmt.Errorf("%w: resource already exists", ErrConflict)

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")
)

const (
	KindValidation   = "VALIDATION"
	KindNotFound     = "NOT_FOUND"
	KindConflict     = "CONFLICT"
	KindUpstream     = "UPSTREAM"
	KindUnauthorized = "UNAUTHORIZED"
	KindInternal     = "INTERNAL"
)

// KindOf reports the stable kind of err. Unknown errors are INTERNAL.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// FieldOf returns the offending field of a validation failure, if any.
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// WrapUpstreamError tags a failed call to an external system.
func WrapUpstreamError(cause error, system string) error {
	return &AppError{
		Code:    "UPSTREAM_ERROR",
		Message: fmt.Sprintf("%s request failed", system),
		Cause:   fmt.Errorf("%w: %w", ErrUpstream, cause),
	}
}
