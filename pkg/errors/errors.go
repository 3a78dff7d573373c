// Package errors provides structured error types for tafarru3.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly messages for import failures
//   - Error wrapping with context preservation
//
// The graph store itself never returns errors for stale ids; codes are used
// at the boundaries where untrusted data enters (file import, HTTP requests,
// session backends).
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Resource not found
//   - STORAGE_*: Session backend failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFormat, "row %d: unknown parent %q", row, id)
//	if errors.Is(err, errors.ErrCodeInvalidFormat) {
//	    // Report an import failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStorage, origErr, "save session %s", name)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Storage errors
	ErrCodeStorage  Code = "STORAGE_ERROR"
	ErrCodeConflict Code = "CONFLICT"
	ErrCodeTimeout  Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// RowError locates a decoding failure in a tabular import. It is usually
// wrapped in an *Error with [ErrCodeInvalidFormat].
type RowError struct {
	Row    int    // 1-based data row, not counting the header
	Column string // Column name, empty when the whole row is at fault
	Err    error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RowError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps an error code to the HTTP status the server responds with.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidPath:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeFileNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnsupported:
		return http.StatusNotImplemented
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
