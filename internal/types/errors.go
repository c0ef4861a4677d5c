package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidJSON      ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingRecipient ErrorCode = "validation_missing_recipient"
	ErrCodeValidationMissingBody      ErrorCode = "validation_missing_body"
	ErrCodeValidationMissingSendAt    ErrorCode = "validation_missing_send_at"
	ErrCodeValidationInvalidSendAt    ErrorCode = "validation_invalid_send_at"

	// Routing (404/405)
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"

	// Provider configuration (503)
	ErrCodeSMSNotConfigured ErrorCode = "sms_provider_not_configured"

	// Suppression (429). Not a failure: the request duplicated a recent one.
	ErrCodeSuppressedDuplicate ErrorCode = "suppressed_duplicate"

	// Internal/Upstream (500/502)
	ErrCodeInternalUnexpected        ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamSMSProvider       ErrorCode = "upstream_sms_provider_failed"
	ErrCodeUpstreamPredictionUnavail ErrorCode = "upstream_prediction_unavailable"
	ErrCodeUpstreamUnavailable       ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited       ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Handlers that must follow a fixed status contract (the SMS and predict
// endpoints answer 400 for every dispatch failure) override this mapping.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeNotFound:
		return http.StatusNotFound // 404
	case c == ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed // 405
	case c == ErrCodeSuppressedDuplicate:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeSMSNotConfigured:
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
