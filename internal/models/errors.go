// Package models holds the JSON error and request bodies shared by the
// dashboard API and the profile backend.
package models

import "net/http"

// AppError is a structured application error with HTTP status code. The
// message goes out under "error", the shape profile clients read.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors.
var (
	ErrNotFound = func(msg string) *AppError {
		return &AppError{Code: "NOT_FOUND", Message: msg, Status: http.StatusNotFound}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: http.StatusBadRequest}
	}
	ErrInvalidField = func(field, msg string) *AppError {
		return &AppError{Code: "INVALID_FIELD", Message: msg, Field: field, Status: http.StatusBadRequest}
	}
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "authentication required", Status: http.StatusUnauthorized}
	ErrForbidden    = func(msg string) *AppError {
		return &AppError{Code: "FORBIDDEN", Message: msg, Status: http.StatusForbidden}
	}
	ErrTooManyRequests = &AppError{Code: "RATE_LIMITED", Message: "too many requests", Status: http.StatusTooManyRequests}
	ErrInternal        = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: http.StatusInternalServerError}
	}
	ErrConflict = func(msg string) *AppError {
		return &AppError{Code: "CONFLICT", Message: msg, Status: http.StatusConflict}
	}
	ErrUnavailable = func(msg string) *AppError {
		return &AppError{Code: "UNAVAILABLE", Message: msg, Status: http.StatusServiceUnavailable}
	}
	ErrBadGateway = func(msg string) *AppError {
		return &AppError{Code: "BAD_GATEWAY", Message: msg, Status: http.StatusBadGateway}
	}
)
