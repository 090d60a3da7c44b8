// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInternal        = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For invalid argument errors (e.g., "taskCount", "maxRunDuration")
	Resource string // For not found/already exists (e.g., "job", "task")
	Op       string // Operation that failed (e.g., "store.put")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// InvalidArgument creates an invalid argument error for a specific field.
func InvalidArgument(field, message string) error {
	return &Error{
		Sentinel: ErrInvalidArgument,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, name string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, name),
		Resource: resource,
	}
}

// AlreadyExists creates an already exists error for a resource.
func AlreadyExists(resource, name string) error {
	return &Error{
		Sentinel: ErrAlreadyExists,
		Message:  fmt.Sprintf("%s %s already exists", resource, name),
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
