// Package domainerrors defines coded errors shared by services and the HTTP
// layer. Services return coded errors; the transport maps codes to status
// codes and structured payloads without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and caller handling.
type Code string

const (
	// CodeBadRequest marks malformed or invalid caller input.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a lookup of a nonexistent entity.
	CodeNotFound Code = "not_found"
	// CodeInvalidState marks a lifecycle transition the state machine forbids.
	CodeInvalidState Code = "invalid_state"
	// CodeBusy marks a duplicate in-flight operation the caller may retry.
	CodeBusy Code = "busy"
	// CodeUnavailable marks a persistence or downstream outage. Requests
	// whose audit entry cannot persist fail with this code rather than
	// reporting a success that left no trail.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures. Details are logged, never
	// returned to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error that preserves its cause for errors.Is/As.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// MessageOf extracts the caller-safe message, empty for non-domain errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
