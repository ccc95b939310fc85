package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrValidation ErrorCode = iota + 1000
	ErrNotFound
	ErrExpired
	ErrConflict
	ErrInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrExpired:
		return "expired"
	case ErrConflict:
		return "conflict"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error constructors
func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewExpired(resource string) *AppError {
	return &AppError{
		Code:    ErrExpired,
		Message: fmt.Sprintf("%s has expired", resource),
	}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain. Errors that
// are not AppErrors are reported as internal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsValidation(err error) bool { return err != nil && CodeOf(err) == ErrValidation }
func IsNotFound(err error) bool   { return err != nil && CodeOf(err) == ErrNotFound }
func IsExpired(err error) bool    { return err != nil && CodeOf(err) == ErrExpired }
func IsConflict(err error) bool   { return err != nil && CodeOf(err) == ErrConflict }
func IsInternal(err error) bool   { return err != nil && CodeOf(err) == ErrInternal }
