package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInternal         = errors.New("internal error")
	ErrConflict         = errors.New("conflict")
	ErrServiceUnavail   = errors.New("service unavailable")
	ErrReuseDetected    = errors.New("refresh token reuse detected")
	ErrInvalidCode      = errors.New("invalid verification code")
	ErrDeliveryFailed   = errors.New("message delivery failed")
	ErrEmailNotVerified = errors.New("email not verified")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InvalidCredentials creates the single 401 returned for every login
// failure. The message is identical for unknown accounts and wrong
// passwords so responses do not reveal which emails are registered.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid credentials",
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// EmailNotVerified creates a 401 error for logins on unverified accounts.
func EmailNotVerified() *AppError {
	return &AppError{
		Code:    "EMAIL_NOT_VERIFIED",
		Message: "please verify your email before logging in",
		Status:  http.StatusUnauthorized,
		Err:     ErrEmailNotVerified,
	}
}

// AlreadyRegistered creates a 409 error for registration against a
// verified account.
func AlreadyRegistered() *AppError {
	return &AppError{
		Code:    "ALREADY_REGISTERED",
		Message: "email already registered",
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// AlreadyVerified creates a 400 error for verification of an already
// verified account.
func AlreadyVerified() *AppError {
	return &AppError{
		Code:    "ALREADY_VERIFIED",
		Message: "email already verified",
		Status:  http.StatusBadRequest,
		Err:     ErrConflict,
	}
}

// InvalidCode creates a 400 error for one-time code validation failures.
func InvalidCode(message string) *AppError {
	return &AppError{
		Code:    "INVALID_CODE",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidCode,
	}
}

// ReuseDetected creates a 401 error for refresh token reuse. All sessions
// for the affected account have been revoked by the time this is returned.
func ReuseDetected() *AppError {
	return &AppError{
		Code:    "REUSE_DETECTED",
		Message: "refresh token reuse detected",
		Status:  http.StatusUnauthorized,
		Err:     ErrReuseDetected,
	}
}

// DeliveryFailed creates a 502 error for email dispatch failures.
func DeliveryFailed(err error) *AppError {
	return &AppError{
		Code:    "DELIVERY_FAILED",
		Message: "failed to send email",
		Status:  http.StatusBadGateway,
		Err:     errors.Join(ErrDeliveryFailed, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrReuseDetected), errors.Is(err, ErrEmailNotVerified):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
