// Package errors provides the unified error type and factory functions for the
// metabo-search engine.  Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information so that the CLI, logs and metrics see the same classification.
package errors

import (
	"errors"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout the engine.
// It satisfies the standard error interface and supports wrapping so that
// errors.Is / errors.As / errors.Unwrap traverse the full chain.
//
// Usage:
//
//	return errors.New(errors.ErrCodeInvalidPattern, "pattern rejected by structure index")
//	return errors.Wrap(err, errors.CodeDatabaseError, "failed to hydrate compounds")
//	return errors.InvalidParam("limit must not be negative").WithDetail("limit=-1")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context (query, entity key, SQLSTATE).
	Detail string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code, so sentinel errors such as
// ErrCacheMiss compare equal across wrapped copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an AppError that wraps err.  Wrap returns nil when err is
// nil.  When code is CodeUnknown the code of the innermost AppError in the
// chain is preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return New(CodeInvalidParam, message)
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// ─────────────────────────────────────────────────────────────────────────────
// Inspection
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err's chain carries CodeNotFound.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// GetCode extracts the ErrorCode of the first *AppError in err's chain.
// A nil error yields CodeOK; a foreign error yields CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name "errors" keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
