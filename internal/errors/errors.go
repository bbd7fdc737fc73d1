// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors
var (
	ErrMissingTrade     = errors.New("trade data is required")
	ErrMalformedTrade   = errors.New("trade data must be an object")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyCompletion  = errors.New("empty completion")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("operation timed out")
	ErrNoModels         = errors.New("no candidate models configured")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
)

// ValidationError represents a request that cannot be processed at all.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// AuthError represents a caller that failed authentication.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return ErrNotAuthenticated
}

// NewAuthError creates a new AuthError.
func NewAuthError(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

// GenerationError represents a failed narrative completion. It is always
// recovered by the heuristic fallback and never surfaced to callers.
type GenerationError struct {
	Model  string
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation error [%s] %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("generation error [%s] %s", e.Model, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(model, reason string, err error) *GenerationError {
	return &GenerationError{
		Model:  model,
		Reason: reason,
		Err:    err,
	}
}

// UnexpectedError represents anything that escaped normal control flow.
type UnexpectedError struct {
	Operation string
	Cause     interface{}
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error [%s]: %v", e.Operation, e.Cause)
}

func (e *UnexpectedError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// NewUnexpectedError creates a new UnexpectedError.
func NewUnexpectedError(operation string, cause interface{}) *UnexpectedError {
	return &UnexpectedError{
		Operation: operation,
		Cause:     cause,
	}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuth reports whether err carries an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// HTTPStatus maps an error to the status code the caller layer reports.
// Only validation and auth failures are visible as non-200 statuses.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsAuth(err):
		return http.StatusUnauthorized
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
