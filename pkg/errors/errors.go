package errors

import (
	"fmt"
	"sort"
	"strings"
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

// Common error codes
const (
	ErrValidation ErrorCode = iota + 1000
	ErrStoreUnavailable
	ErrWriteFailed
	ErrReadFailed
	ErrInternal
)

// FieldErrors maps an input field to its validation message. All violated
// constraints are reported together, never one at a time.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fe))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, fe[f]))
	}
	return strings.Join(parts, "; ")
}

// Error constructors
func NewValidation(fields FieldErrors) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: "validation failed",
		Err:     fields,
	}
}

func NewStoreUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: "store unavailable",
		Err:     err,
	}
}

func NewWriteFailed(err error) *AppError {
	return &AppError{
		Code:    ErrWriteFailed,
		Message: "write failed",
		Err:     err,
	}
}

func NewReadFailed(err error) *AppError {
	return &AppError{
		Code:    ErrReadFailed,
		Message: "read failed",
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

// Fields extracts the field-scoped validation errors from err, if any.
func Fields(err error) (FieldErrors, bool) {
	appErr, ok := err.(*AppError)
	if !ok || appErr.Code != ErrValidation {
		return nil, false
	}
	fields, ok := appErr.Err.(FieldErrors)
	return fields, ok
}

// Code returns the application error code for err, or ErrInternal when err
// carries no code.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}

// UserMessage converts err into a single user-facing message, preserving the
// underlying cause when available.
func UserMessage(err error) string {
	appErr, ok := err.(*AppError)
	if !ok {
		return "something went wrong"
	}
	if appErr.Err != nil {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	return appErr.Message
}
