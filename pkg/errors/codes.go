package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string identifier for a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_015"
)

// Visibility module error codes.
const (
	// ErrCodeTargetNotFound marks lookups of unknown target IDs.
	ErrCodeTargetNotFound ErrorCode = "VIS_001"

	// ErrCodeSSRFBlocked marks URLs the network guard refused to touch:
	// non-http(s) schemes, localhost names, or hosts resolving to private,
	// loopback, link-local, or cloud-metadata addresses.  Applied to the
	// initial URL and to every redirect hop.
	ErrCodeSSRFBlocked ErrorCode = "VIS_002"

	// ErrCodeFetchTimeout marks page fetches that exceeded their deadline.
	ErrCodeFetchTimeout ErrorCode = "VIS_003"

	// ErrCodeFetchFailed marks non-timeout fetch failures: connection or
	// TLS errors, non-2xx statuses, and oversized response bodies.
	ErrCodeFetchFailed ErrorCode = "VIS_004"

	// ErrCodeAnalysis marks analyze calls on targets without keywords or
	// prompts.  Empty page content is never an error; it triggers the
	// name-only fallback during initialization instead.
	ErrCodeAnalysis ErrorCode = "VIS_005"

	// ErrCodeKeywordInvalid marks keywords outside the 2-40 character
	// bound or keyword lists outside 1-5 entries.
	ErrCodeKeywordInvalid ErrorCode = "VIS_006"

	// ErrCodePromptInvalid marks prompts over 200 characters, prompt lists
	// over 10 entries, or prompts embedding internal-host URLs.
	ErrCodePromptInvalid ErrorCode = "VIS_007"

	// ErrCodeGeneration marks failures of the LLM-backed keyword/prompt
	// generator; callers fall back to the heuristic path on this code.
	ErrCodeGeneration ErrorCode = "VIS_008"
)

// Sentinel-style aliases used by helpers and the SDK.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// ErrInvalidConfig is returned for unusable client or service configuration.
var ErrInvalidConfig = New(ErrCodeValidation, "invalid configuration")

// errorCodeHTTPStatus maps each ErrorCode to the HTTP status the API emits.
var errorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeTargetNotFound: http.StatusNotFound,
	ErrCodeSSRFBlocked:    http.StatusUnprocessableEntity,
	ErrCodeFetchTimeout:   http.StatusGatewayTimeout,
	ErrCodeFetchFailed:    http.StatusBadGateway,
	ErrCodeAnalysis:       http.StatusUnprocessableEntity,
	ErrCodeKeywordInvalid: http.StatusBadRequest,
	ErrCodePromptInvalid:  http.StatusBadRequest,
	ErrCodeGeneration:     http.StatusBadGateway,
}

// errorCodeMessage maps each ErrorCode to its default public message.
var errorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeTargetNotFound: "target not found",
	ErrCodeSSRFBlocked:    "url is not allowed",
	ErrCodeFetchTimeout:   "page fetch timed out",
	ErrCodeFetchFailed:    "page fetch failed",
	ErrCodeAnalysis:       "target has no analyzable content",
	ErrCodeKeywordInvalid: "invalid keyword",
	ErrCodePromptInvalid:  "invalid prompt",
	ErrCodeGeneration:     "content generation failed",
}

// HTTPStatusForCode returns the HTTP status for an ErrorCode, defaulting to
// 500 for unmapped codes so unknown failures never leak as client errors.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default public message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := errorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode ("COMMON", "VIS").
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
