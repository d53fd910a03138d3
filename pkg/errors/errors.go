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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
	ErrChannelUnavailable
	ErrTransport
	ErrEvaluation
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewChannelUnavailable marks a deterministic configuration failure: the
// channel cannot deliver at all (missing URL, credentials, disabled), so
// retrying is pointless.
func NewChannelUnavailable(channel string, err error) *AppError {
	return &AppError{
		Code:    ErrChannelUnavailable,
		Message: fmt.Sprintf("channel %s unavailable", channel),
		Err:     err,
	}
}

// NewTransport wraps a transient delivery failure that is worth retrying.
func NewTransport(channel string, err error) *AppError {
	return &AppError{
		Code:    ErrTransport,
		Message: fmt.Sprintf("channel %s transport error", channel),
		Err:     err,
	}
}

// NewEvaluation wraps a preference or filter evaluation failure. The
// dispatcher treats these as fail-open.
func NewEvaluation(err error) *AppError {
	return &AppError{
		Code:    ErrEvaluation,
		Message: "evaluation error",
		Err:     err,
	}
}

// IsChannelUnavailable reports whether err is a deterministic channel
// configuration failure.
func IsChannelUnavailable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrChannelUnavailable
}
