package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers and engine packages MUST use these constants instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeInvalidPhoneFormat ErrorCode = "validation_invalid_phone_format"
	ErrCodeBelowMinimum       ErrorCode = "validation_below_minimum"
	ErrCodeExceedsWalletCap   ErrorCode = "validation_exceeds_wallet_cap"
	ErrCodeBudgetOutOfRange   ErrorCode = "validation_budget_out_of_range"
	ErrCodeInvalidRecurrence  ErrorCode = "validation_invalid_recurrence"
	ErrCodeThresholdRange     ErrorCode = "validation_threshold_out_of_range"
	ErrCodeMissingField       ErrorCode = "validation_missing_required_field"
	ErrCodeInvalidBody        ErrorCode = "validation_invalid_request_body"

	// Auth (401)
	ErrCodeAuthRequired ErrorCode = "auth_user_required"

	// Payment (402)
	ErrCodeInsufficientFunds ErrorCode = "insufficient_funds"

	// Limits (403/429)
	ErrCodePhoneLimitReached ErrorCode = "limit_phone_numbers_reached"
	ErrCodeRateLimit         ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundPhone    ErrorCode = "not_found_phone_number"
	ErrCodeNotFoundRule     ErrorCode = "not_found_rule"
	ErrCodeNotFoundSchedule ErrorCode = "not_found_schedule"
	ErrCodeNotFoundBudget   ErrorCode = "not_found_budget"

	// Conflict (409)
	ErrCodeDuplicateRule          ErrorCode = "conflict_duplicate_rule"
	ErrCodeInvalidStateTransition ErrorCode = "conflict_invalid_state_transition"
	ErrCodePrimaryPhoneImmutable  ErrorCode = "conflict_primary_phone_immutable"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamGateway     ErrorCode = "upstream_gateway_unavailable"
	ErrCodeUpstreamLedger      ErrorCode = "upstream_ledger_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case s == string(ErrCodeInsufficientFunds):
		return http.StatusPaymentRequired // 402
	case s == string(ErrCodePhoneLimitReached):
		return http.StatusForbidden // 403
	case s == string(ErrCodeRateLimit):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the engine.
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
// This is useful for adding context without mutating the original error.
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
