package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalid            ErrorCode = "INVALID"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeLoginInProgress    ErrorCode = "LOGIN_IN_PROGRESS"
	ErrCodeProfileUnavailable ErrorCode = "PROFILE_UNAVAILABLE"
	ErrCodeInternal           ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrIdentityNotFound   = NewError(ErrCodeNotFound, "identity not found")
	ErrProfileNotFound    = NewError(ErrCodeNotFound, "profile not found")
	ErrOfficeNotFound     = NewError(ErrCodeNotFound, "office not found")
	ErrMembershipNotFound = NewError(ErrCodeNotFound, "office membership not found")
	ErrSessionNotFound    = NewError(ErrCodeNotFound, "session not found")
	ErrEmailTaken         = NewError(ErrCodeConflict, "email already registered")
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")

	ErrInvalidCredentials = NewError(ErrCodeInvalidCredentials, "invalid email or password")
	ErrLoginInProgress    = NewError(ErrCodeLoginInProgress, "login already in progress")
	ErrProfileUnavailable = NewError(ErrCodeProfileUnavailable, "no profile could be resolved for this account")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
