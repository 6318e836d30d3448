// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Categorization errors.
	ErrNoTransactions = errors.New("no matching transactions found")
	ErrEmptyResponse  = errors.New("no text in response")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports malformed or missing caller input. It is raised
// before any work begins, so no state has changed when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for the named field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthorizationError reports an unauthenticated caller or one that does not
// own the referenced resource.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Reason
}

// NewAuthorizationError creates an authorization error.
func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuthorization reports whether err is or wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
