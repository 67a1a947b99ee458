// Package core provides the shared error taxonomy and retry primitive.
package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a failure by the layer that produced it.
type ErrorCategory string

const (
	// ErrCategoryBridge covers device-bridge failures: non-zero exit or
	// unparsable command output.
	ErrCategoryBridge ErrorCategory = "bridge"
	// ErrCategoryTransport covers HTTP failures: connection errors and
	// non-success statuses.
	ErrCategoryTransport ErrorCategory = "transport"
	// ErrCategoryProtocol covers responses whose own discriminant field
	// reports failure.
	ErrCategoryProtocol ErrorCategory = "protocol"
	// ErrCategoryPrecondition covers operations refused before any bridge or
	// transport call is made.
	ErrCategoryPrecondition ErrorCategory = "precondition"
	// ErrCategoryTimeout covers exhausted retry budgets.
	ErrCategoryTimeout ErrorCategory = "timeout"
	// ErrCategoryFormat covers malformed caller-supplied arguments.
	ErrCategoryFormat ErrorCategory = "format"
)

// Error is a structured error with category, code and diagnostic details.
type Error struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: install_failed, responding_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context: raw output, decoded reason, probe kind
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// NewError creates an Error with the given category, code and message.
func NewError(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Errorf creates an Error with a formatted message.
func Errorf(category ErrorCategory, code, format string, args ...interface{}) *Error {
	return NewError(category, code, fmt.Sprintf(format, args...))
}

// IsCategory reports whether err (or any error it wraps) is a core.Error of
// the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == category
	}
	return false
}

// IsBridge reports whether err is a bridge failure.
func IsBridge(err error) bool { return IsCategory(err, ErrCategoryBridge) }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return IsCategory(err, ErrCategoryTransport) }

// IsProtocol reports whether err is a protocol-level failure.
func IsProtocol(err error) bool { return IsCategory(err, ErrCategoryProtocol) }

// IsPrecondition reports whether err is a precondition failure.
func IsPrecondition(err error) bool { return IsCategory(err, ErrCategoryPrecondition) }

// IsTimeout reports whether err is an exhausted retry budget.
func IsTimeout(err error) bool { return IsCategory(err, ErrCategoryTimeout) }

// IsFormat reports whether err is a malformed-argument failure.
func IsFormat(err error) bool { return IsCategory(err, ErrCategoryFormat) }
