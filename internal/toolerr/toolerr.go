// Package toolerr defines the structured failures returned by the retrieval
// tools. Callers keep the structured form internally and render it to text
// only at the tool boundary.
package toolerr

import (
	"errors"
	"fmt"
)

// Code is a stable identifier for a tool failure mode.
type Code string

const (
	// InvalidInput indicates a missing or malformed argument.
	InvalidInput Code = "INVALID_INPUT"
	// AccessDenied indicates a path that escapes its sandbox.
	AccessDenied Code = "ACCESS_DENIED"
	// NotFound indicates a missing repository, file or directory.
	NotFound Code = "NOT_FOUND"
	// GenerationFailed indicates the text-generation provider failed.
	GenerationFailed Code = "GENERATION_FAILED"
	// ExecutionFailed indicates the graph store rejected or failed a query.
	ExecutionFailed Code = "EXECUTION_FAILED"
	// Unavailable indicates a backend is not configured or reachable.
	Unavailable Code = "UNAVAILABLE"
	// Internal indicates an unexpected failure.
	Internal Code = "INTERNAL"
)

// Error is a tool failure with a code, a human-readable message and an
// optional underlying cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// New creates an Error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error renders the message, followed by the cause when present. This is the
// text returned to tool consumers.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
