package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrForbidden indicates the caller lacks the role required for the operation.
var ErrForbidden = errors.New("operation not permitted")

// ErrConflict indicates a conflicting ingestion run is already in progress
// against the same dataset.
var ErrConflict = errors.New("conflicting operation in progress")

// AppError wraps a lower-level error with an HTTP-ish status code and a
// message safe to return to the caller.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates a new AppError wrapping err.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/errors.As to see the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Err
}
