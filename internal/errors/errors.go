// Package errors defines the error taxonomy surfaced on the gateway's
// HTTP boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category on the wire.
type ErrorCode string

const (
	CodeBadRequest   ErrorCode = "bad_request"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeNotFound     ErrorCode = "not_found"
	CodeOriginDenied ErrorCode = "origin_denied"
	CodeRateLimited  ErrorCode = "rate_limited"
	CodeInvalidToken ErrorCode = "invalid_token"
	CodeInternal     ErrorCode = "internal_error"
)

// ServiceError is the error type rendered to clients. HTTPStatus decides
// the response status; Details carry structured context for the body.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a ServiceError with an explicit code, message and status.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// BadRequest reports a malformed or invalid request.
func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized reports missing or failed authentication.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "insufficient permissions"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound reports a missing resource.
func NotFound(message string) *ServiceError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// OriginDenied reports a cross-origin request whose origin is not on the
// allowlist.
func OriginDenied(origin string) *ServiceError {
	e := New(CodeOriginDenied, "origin not allowed", http.StatusForbidden)
	return e.WithDetails("origin", origin)
}

// InvalidToken reports a token that failed validation.
func InvalidToken(err error) *ServiceError {
	e := New(CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized)
	e.Err = err
	return e
}

// RateLimitExceeded reports a caller over its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	e := New(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests)
	e.WithDetails("limit", limit)
	e.WithDetails("window", window)
	return e
}

// Internal reports an unexpected server-side failure. The wrapped error is
// logged, never rendered.
func Internal(message string, err error) *ServiceError {
	e := New(CodeInternal, message, http.StatusInternalServerError)
	e.Err = err
	return e
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// IsNotFound reports whether err is a not-found ServiceError.
func IsNotFound(err error) bool {
	serviceErr := GetServiceError(err)
	return serviceErr != nil && serviceErr.Code == CodeNotFound
}

// IsUnauthorized reports whether err is an authentication ServiceError.
func IsUnauthorized(err error) bool {
	serviceErr := GetServiceError(err)
	return serviceErr != nil && (serviceErr.Code == CodeUnauthorized || serviceErr.Code == CodeInvalidToken)
}
