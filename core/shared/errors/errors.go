package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Configuration errors: local, never retried
	ErrCodeConfig            ErrorCode = "CONFIG_ERROR"
	ErrCodeUnsupportedEngine ErrorCode = "UNSUPPORTED_ENGINE"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"

	// Connection errors: host unreachable, auth rejected, TLS failure, missing file
	ErrCodeConnect ErrorCode = "CONNECT_ERROR"

	// Execution errors: SQL syntax/runtime errors from the engine
	ErrCodeExecution ErrorCode = "EXECUTION_ERROR"

	// Pool errors: a cached handle failed its health check and could not be rebuilt
	ErrCodePool ErrorCode = "POOL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wraps an existing error with an error code and message
func WrapError(code ErrorCode, message string, err error) *AppError {
	return NewAppError(code, message, err)
}

// CodeOf returns the error code of err, or "" if err is not an AppError
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsConfigError checks if the error is a configuration error
func IsConfigError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeConfig || code == ErrCodeUnsupportedEngine
}

// IsUnsupportedEngine checks if the error reports an unknown engine kind
func IsUnsupportedEngine(err error) bool {
	return CodeOf(err) == ErrCodeUnsupportedEngine
}

// IsConnectError checks if the error is a connection error
func IsConnectError(err error) bool {
	return CodeOf(err) == ErrCodeConnect
}

// IsExecutionError checks if the error is an execution error
func IsExecutionError(err error) bool {
	return CodeOf(err) == ErrCodeExecution
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
