package models

import "fmt"

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors.
var (
	ErrNotFound = func(msg string) *AppError {
		return &AppError{Code: "NOT_FOUND", Message: msg, Status: 404}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: 400}
	}
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "authentication required", Status: 401}
	ErrInternal     = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: 500}
	}
	ErrConflict = func(msg string) *AppError {
		return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
	}
)

// Usage errors. These signal a programming mistake by the caller and are
// compared with errors.Is.
var (
	ErrNotInitialized     = &AppError{Code: "NOT_INITIALIZED", Message: "player used before Initialize", Status: 409}
	ErrAlreadyInitialized = &AppError{Code: "ALREADY_INITIALIZED", Message: "player already initialized", Status: 409}
	ErrClosed             = &AppError{Code: "CLOSED", Message: "session closed", Status: 409}
)

// ErrVolumeRange is returned for volumes outside [0, 1].
func ErrVolumeRange(v float64) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: fmt.Sprintf("volume %v out of range [0, 1]", v), Field: "volume", Status: 400}
}

// ValidVolume reports whether v is in [0, 1].
func ValidVolume(v float64) bool { return v >= 0 && v <= 1 }
