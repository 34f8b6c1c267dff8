package api

import (
	"errors"
	"net/http"
	"time"
)

// Error is the structured rejection payload returned by every gate in the
// request pipeline. Code is stable for programmatic handling; Message and
// Suggestion are for humans.
type Error struct {
	Status     int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`

	// RetryAfter is seconds until the caller may retry (429 responses).
	RetryAfter int        `json:"retryAfter,omitempty"`
	Limits     any        `json:"limits,omitempty"`
	Current    any        `json:"current,omitempty"`
	ResetTime  *time.Time `json:"resetTime,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// WindowCounts is the daily/monthly usage snapshot attached to quota rejections.
type WindowCounts struct {
	Daily   int64 `json:"daily"`
	Monthly int64 `json:"monthly"`
}

// PolicyLimits describes a rate-limit policy's capacity for client backoff tuning.
type PolicyLimits struct {
	Capacity      int `json:"capacity"`
	WindowSeconds int `json:"windowSeconds"`
}

var (
	ErrBadRequest     = &Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "bad request"}
	ErrNotFound       = &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrConflict       = &Error{Status: http.StatusConflict, Code: "CONFLICT", Message: "conflict"}
	ErrInternalServer = &Error{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "internal server error"}

	ErrInvalidCredentials = &Error{
		Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS",
		Message:    "invalid email or password",
		Suggestion: "Check your credentials and try again.",
	}
	ErrEmailAlreadyExists = &Error{
		Status: http.StatusConflict, Code: "EMAIL_EXISTS",
		Message: "email already registered",
	}

	ErrAuthHeaderMissing = &Error{
		Status: http.StatusUnauthorized, Code: "AUTH_HEADER_MISSING",
		Message:    "authorization header is missing",
		Suggestion: "Send an Authorization: Bearer <token> header.",
	}
	ErrTokenMissing = &Error{
		Status: http.StatusUnauthorized, Code: "TOKEN_MISSING",
		Message:    "bearer token is missing",
		Suggestion: "Send an Authorization: Bearer <token> header.",
	}
	ErrTokenExpired = &Error{
		Status: http.StatusUnauthorized, Code: "TOKEN_EXPIRED",
		Message:    "access token has expired",
		Suggestion: "Exchange your refresh token for a new token pair.",
	}
	ErrInvalidToken = &Error{
		Status: http.StatusUnauthorized, Code: "INVALID_TOKEN",
		Message:    "access token is invalid",
		Suggestion: "Log in again to obtain a new token.",
	}
	ErrUserNotFound = &Error{
		Status: http.StatusUnauthorized, Code: "USER_NOT_FOUND",
		Message:    "account no longer exists",
		Suggestion: "Log in again or register a new account.",
	}
	ErrAccountDeactivated = &Error{
		Status: http.StatusUnauthorized, Code: "ACCOUNT_DEACTIVATED",
		Message:    "account has been deactivated",
		Suggestion: "Contact support to reactivate your account.",
	}
	ErrEmailVerificationRequired = &Error{
		Status: http.StatusForbidden, Code: "EMAIL_VERIFICATION_REQUIRED",
		Message:    "email address is not verified",
		Suggestion: "Verify your email address before using this endpoint.",
	}
)

// AccountLocked returns a 423 rejection carrying the lockout expiry.
func AccountLocked(until time.Time) *Error {
	retry := int(time.Until(until).Seconds())
	if retry < 1 {
		retry = 1
	}
	return &Error{
		Status: http.StatusLocked, Code: "ACCOUNT_LOCKED",
		Message:    "account is temporarily locked due to repeated failed login attempts",
		Suggestion: "Wait for the lockout to expire before trying again.",
		RetryAfter: retry,
		ResetTime:  &until,
	}
}

// RateLimitExceeded returns a 429 rejection for a blocked rate-limit key.
func RateLimitExceeded(retryAfter time.Duration, limits PolicyLimits) *Error {
	retry := int(retryAfter.Seconds())
	if retry < 1 {
		retry = 1
	}
	return &Error{
		Status: http.StatusTooManyRequests, Code: "RATE_LIMIT_EXCEEDED",
		Message:    "too many requests",
		Suggestion: "Slow down and retry after the indicated delay.",
		RetryAfter: retry,
		Limits:     limits,
	}
}

// DailyLimitExceeded returns a 429 rejection for an exhausted daily quota window.
func DailyLimitExceeded(limits, current WindowCounts, resetAt time.Time) *Error {
	return quotaExceeded("DAILY_API_LIMIT_EXCEEDED", "daily API call limit reached", limits, current, resetAt)
}

// MonthlyLimitExceeded returns a 429 rejection for an exhausted monthly quota window.
func MonthlyLimitExceeded(limits, current WindowCounts, resetAt time.Time) *Error {
	return quotaExceeded("MONTHLY_API_LIMIT_EXCEEDED", "monthly API call limit reached", limits, current, resetAt)
}

func quotaExceeded(code, msg string, limits, current WindowCounts, resetAt time.Time) *Error {
	retry := int(time.Until(resetAt).Seconds())
	if retry < 1 {
		retry = 1
	}
	return &Error{
		Status: http.StatusTooManyRequests, Code: code,
		Message:    msg,
		Suggestion: "Upgrade your plan or wait for the window to reset.",
		RetryAfter: retry,
		Limits:     limits,
		Current:    current,
		ResetTime:  &resetAt,
	}
}

func NewBadRequestError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: msg}
}

func NewValidationError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: msg}
}

func NewUpstreamError(msg string) *Error {
	return &Error{Status: http.StatusBadGateway, Code: "UPSTREAM_ERROR", Message: msg}
}

// HandleError writes err as a structured rejection. Unknown error types are
// masked as a generic 500 so internals never leak to clients.
func HandleError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		WriteError(w, apiErr)
		return
	}
	WriteError(w, ErrInternalServer)
}
