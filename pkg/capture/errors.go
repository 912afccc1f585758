package capture

import (
	"errors"
	"fmt"
)

// ErrorCode classifies capture failures.
type ErrorCode string

// Error codes.
const (
	ErrUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrDeviceUnavailable    ErrorCode = "DEVICE_UNAVAILABLE"
	ErrInvalidFormat        ErrorCode = "INVALID_FORMAT"
	ErrInvalidControlValue  ErrorCode = "INVALID_CONTROL_VALUE"
	ErrStreamState          ErrorCode = "STREAM_STATE"
	ErrDecode               ErrorCode = "DECODE"
	ErrBackend              ErrorCode = "BACKEND"
)

// Error is the error type returned by every operation in this package.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

// NewError creates a coded error.
func NewError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// WrapError creates a coded error with a cause.
func WrapError(code ErrorCode, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = fmt.Sprintf("%s %s", e.Code, e.Op)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// HasCode reports whether any *Error in err's tree carries code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*Error); ok && ce.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if HasCode(e, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	}
	return false
}

// backendError passes a driver error through with context. Errors that are
// already coded keep their code.
func backendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Op == "" {
			return &Error{Code: ce.Code, Op: op, Message: ce.Message, Cause: ce.Cause}
		}
		return err
	}
	return WrapError(ErrBackend, op, "backend call failed", err)
}
