// Package errors provides the unified error type and factory functions for
// the aivis service.  Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information, enabling consistent HTTP responses, logging, and metrics.
package errors

import (
	"errors"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// AppError — the canonical service error type
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout aivis.  It
// satisfies the standard error interface and supports Go 1.13+ wrapping so
// errors.Is / errors.As / errors.Unwrap work transparently across layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeTargetNotFound, "target not found")
//	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load target")
//	return errors.SSRFBlocked("url resolves to a private address").
//	           WithDetail("host=" + host)
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description, suitable for
	// inclusion in API responses returned to callers.
	Message string

	// Detail carries supplementary context (hosts, IDs, bounds) that aids
	// debugging without leaking sensitive internals to end users.
	Detail string

	// Cause is the underlying error, enabling errors.Is / errors.As
	// traversal of the full chain.
	Cause error

	// Stack holds the call stack captured at creation.  Populated by New
	// and Wrap unless compiled with -tags nostack.  It is deliberately not
	// part of Error() output; structured logging reads the field directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>", detail omitted when empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As to
// walk the chain without extra boilerplate at call sites.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ─────────────────────────────────────────────────────────────────────────────
// Fluent builder methods
// ─────────────────────────────────────────────────────────────────────────────

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithDetailf is WithDetail with fmt.Sprintf formatting.
func (e *AppError) WithDetailf(format string, args ...interface{}) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
// Use when attaching a lower-level error to an already-constructed AppError
// without going through Wrap.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.  A stack
// snapshot is captured automatically (unless compiled with -tags nostack).
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt.Sprintf formatting of the message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline on repository results.
//
// When err is already an *AppError and code is CodeUnknown the original code
// is preserved, so cross-layer propagation does not lose the original
// classification.
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
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
//
//	if errors.IsCode(err, errors.ErrCodeSSRFBlocked) { ... }
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain.
// Returns CodeOK for nil and CodeUnknown when no AppError is present.  Used
// by middleware and metrics layers that need a single code label.
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

// AsAppError extracts the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsNotFound reports whether err's chain carries a not-found classification.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) || IsCode(err, ErrCodeTargetNotFound)
}

// IsValidation reports whether err's chain carries a validation failure.
func IsValidation(err error) bool {
	return IsCode(err, ErrCodeValidation) || IsCode(err, ErrCodeBadRequest)
}

// IsSSRFBlocked reports whether err's chain carries an SSRF guard rejection.
func IsSSRFBlocked(err error) bool {
	return IsCode(err, ErrCodeSSRFBlocked)
}

// IsFetchTimeout reports whether err's chain carries a fetch deadline failure.
func IsFetchTimeout(err error) bool {
	return IsCode(err, ErrCodeFetchTimeout)
}

// IsFetchFailed reports whether err's chain carries a non-timeout fetch
// failure (connection refused, TLS, non-2xx status, oversized body).
func IsFetchFailed(err error) bool {
	return IsCode(err, ErrCodeFetchFailed)
}

// IsFetchError reports whether err originates anywhere in the page-fetch
// path.  Initialization uses this to decide when the name-only fallback
// applies; SSRF rejections of the original URL are deliberately excluded.
func IsFetchError(err error) bool {
	return IsFetchTimeout(err) || IsFetchFailed(err)
}

// IsAnalysis reports whether err's chain carries an analysis failure
// (analyze invoked on a target without keywords or prompts).
func IsAnalysis(err error) bool {
	return IsCode(err, ErrCodeAnalysis)
}

// IsConflict reports whether err's chain carries a conflict classification.
func IsConflict(err error) bool {
	return IsCode(err, ErrCodeConflict)
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience factories for the taxonomy used across the service
// ─────────────────────────────────────────────────────────────────────────────

// NotFound constructs an ErrCodeTargetNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeTargetNotFound, Message: message, Stack: captureStack(1)}
}

// Validation constructs an ErrCodeValidation AppError.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Stack: captureStack(1)}
}

// SSRFBlocked constructs an ErrCodeSSRFBlocked AppError.
func SSRFBlocked(message string) *AppError {
	return &AppError{Code: ErrCodeSSRFBlocked, Message: message, Stack: captureStack(1)}
}

// FetchTimeout constructs an ErrCodeFetchTimeout AppError.
func FetchTimeout(message string) *AppError {
	return &AppError{Code: ErrCodeFetchTimeout, Message: message, Stack: captureStack(1)}
}

// FetchFailed constructs an ErrCodeFetchFailed AppError.
func FetchFailed(message string) *AppError {
	return &AppError{Code: ErrCodeFetchFailed, Message: message, Stack: captureStack(1)}
}

// Analysis constructs an ErrCodeAnalysis AppError.
func Analysis(message string) *AppError {
	return &AppError{Code: ErrCodeAnalysis, Message: message, Stack: captureStack(1)}
}

// Internal constructs an ErrCodeInternal AppError.  Use for unexpected
// server-side failures where no more specific code applies; always log the
// underlying cause alongside.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}

// Conflict constructs an ErrCodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message, Stack: captureStack(1)}
}

// RateLimit constructs an ErrCodeTooManyRequests AppError.
func RateLimit(message string) *AppError {
	return &AppError{Code: ErrCodeTooManyRequests, Message: message, Stack: captureStack(1)}
}
