package models

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a custom error code for the status API
type ErrorCode string

const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// AppError represents a structured API error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error for error chain support
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

func NewIdentityNotFoundError(name string) *AppError {
	return (&AppError{
		Code:       ErrCodeNotFound,
		Message:    "Identity not found",
		StatusCode: http.StatusNotFound,
	}).WithMetadata("identity", name)
}
