package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeDecode       ErrorType = "DECODE"
	ErrTypeEncode       ErrorType = "ENCODE"
	ErrTypePrecondition ErrorType = "PRECONDITION"
	ErrTypeStorage      ErrorType = "STORAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Detail returns the human-readable cause: the message followed by the
// underlying error, without the type tag.
func (e *AppError) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewDecodeError reports an unreadable, missing or malformed source resource.
func NewDecodeError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDecode, message, cause)
}

// NewEncodeError reports a destination that could not be written.
func NewEncodeError(message string, cause error) *AppError {
	return NewAppError(ErrTypeEncode, message, cause)
}

// NewPreconditionError reports a request issued before its prerequisite stage.
func NewPreconditionError(message string) *AppError {
	return NewAppError(ErrTypePrecondition, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsDecodeError reports whether err is a decode failure.
func IsDecodeError(err error) bool {
	return IsType(err, ErrTypeDecode)
}

// IsEncodeError reports whether err is an encode failure.
func IsEncodeError(err error) bool {
	return IsType(err, ErrTypeEncode)
}

// Cause returns the most useful single-line description of err: the detail of
// the outermost AppError, or err.Error() for anything else.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Detail()
	}
	return err.Error()
}
