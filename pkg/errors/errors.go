// Package errors provides structured error types for nixpkgs-vault.
//
// Every failure the vault pipeline can report carries a machine-readable
// [Code]. Codes separate run-level failures (which abort a run and produce a
// non-zero exit status) from per-package failures (which are recorded and
// summarized while the rest of the batch continues).
//
// # Error Codes
//
// Run-level:
//   - INGESTION_FAILED: the record source is unavailable or unparsable as a whole
//   - INVALID_INPUT: bad options or configuration
//   - INTERNAL_ERROR: unexpected internal errors
//
// Per-package:
//   - MALFORMED_RECORD: a raw record failed normalization and was skipped
//   - RENDER_FAILED: a package document could not be produced
//   - SINK_WRITE_FAILED: a rendered document could not be written
//
// # Usage
//
//	err := errors.New(errors.ErrCodeIngestion, "no package records in %s", path)
//	if errors.Is(err, errors.ErrCodeIngestion) {
//	    // abort the run
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSinkWrite, origErr, "write %s", path)
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
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidIdentifier Code = "INVALID_IDENTIFIER"
	ErrCodeInvalidPath       Code = "INVALID_PATH"

	// Ingestion errors
	ErrCodeIngestion       Code = "INGESTION_FAILED"
	ErrCodeMalformedRecord Code = "MALFORMED_RECORD"

	// Emission errors
	ErrCodeRenderFailed Code = "RENDER_FAILED"
	ErrCodeSinkWrite    Code = "SINK_WRITE_FAILED"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

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

// IsFatal reports whether err must abort a run. Per-package codes
// (malformed records, render and write failures) are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetCode(err) {
	case ErrCodeMalformedRecord, ErrCodeRenderFailed, ErrCodeSinkWrite:
		return false
	}
	return true
}
