package errors

import (
	"fmt"
)

// ScopeError is the structured error type for codescope.
// It carries the context needed for error handling, logging, and user presentation.
type ScopeError struct {
	// Code is the unique error code (e.g., "ERR_203_PARSE_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Parse, Embedding, Storage, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScopeError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScopeError.
func (e *ScopeError) Is(target error) bool {
	if t, ok := target.(*ScopeError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScopeError) WithDetail(key, value string) *ScopeError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ScopeError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScopeError {
	return &ScopeError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScopeError from an existing error.
// The error's message becomes the ScopeError message.
func Wrap(code string, err error) *ScopeError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *ScopeError {
	return New(ErrCodeIOFailure, message, cause)
}

// CorruptionError creates an index corruption error.
// Corruption triggers a full rebuild from source, never a crash.
func CorruptionError(message string, cause error) *ScopeError {
	return New(ErrCodeCorruptIndex, message, cause)
}

// QueryError creates a query validation error.
// This is the only error surfaced synchronously to search callers.
func QueryError(message string) *ScopeError {
	return New(ErrCodeInvalidFilter, message, nil)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a ScopeError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScopeError); ok {
		return se.Retryable
	}
	return false
}

// IsCorruption reports whether the error indicates persisted index corruption.
func IsCorruption(err error) bool {
	if se, ok := err.(*ScopeError); ok {
		return se.Code == ErrCodeCorruptIndex
	}
	return false
}

// GetCode extracts the error code from a ScopeError.
// Returns empty string if not a ScopeError.
func GetCode(err error) string {
	if se, ok := err.(*ScopeError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScopeError.
// Returns empty string if not a ScopeError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScopeError); ok {
		return se.Category
	}
	return ""
}
