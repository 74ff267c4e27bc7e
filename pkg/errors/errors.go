// Package errors provides structured error types for graphmem.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the store, query engine, and renderer
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - VALIDATION_*: Input validation failures
//   - NOT_FOUND: Resource not found (including tombstoned nodes)
//   - CONFLICT / VERSION_CONFLICT: Write contention outcomes
//   - TIMEOUT: Substrate deadline exceeded
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidScope, "unknown scope: %s", scope)
//	if errors.Is(err, errors.ErrCodeInvalidScope) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTimeout, origErr, "substrate get %s", key)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeValidation     Code = "VALIDATION_ERROR"
	ErrCodeInvalidScope   Code = "VALIDATION_INVALID_SCOPE"
	ErrCodeInvalidType    Code = "VALIDATION_INVALID_TYPE"
	ErrCodeInvalidOrderBy Code = "VALIDATION_INVALID_ORDER_BY"
	ErrCodeInvalidBucket  Code = "VALIDATION_INVALID_BUCKET_SIZE"
	ErrCodeInvalidLayout  Code = "VALIDATION_INVALID_LAYOUT"
	ErrCodeOversized      Code = "VALIDATION_ATTRIBUTE_TOO_LARGE"

	// Resource outcomes
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeConflict        Code = "CONFLICT"
	ErrCodeVersionConflict Code = "VERSION_CONFLICT"

	// Substrate errors
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeUnavailable Code = "SUBSTRATE_UNAVAILABLE"

	// Rendering errors
	ErrCodeRender Code = "RENDER_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation reports whether err carries any VALIDATION_* code.
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrCodeValidation, ErrCodeInvalidScope, ErrCodeInvalidType,
		ErrCodeInvalidOrderBy, ErrCodeInvalidBucket, ErrCodeInvalidLayout,
		ErrCodeOversized:
		return true
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
