// Package apperr defines the error taxonomy surfaced to callers of the collaboration services.
// Messages are safe to return to clients; internal causes travel in Err and are only logged.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers.
type Code string

const (
	CodeValidation          Code = "validation"
	CodeDuplicateMembership Code = "duplicate_membership"
	CodeDuplicateTeam       Code = "duplicate_team"
	CodeNotFoundInOrg       Code = "not_found_in_org"
	CodeNotFound            Code = "not_found"
	CodeForbidden           Code = "forbidden"
	CodeCascadeFailed       Code = "cascade_failed"
	CodeUnauthorized        Code = "unauthorized"
	CodeInternal            Code = "internal"
)

// Error is a classified application error.
type Error struct {
	Code Code
	// Msg is the client-facing message.
	Msg string
	// Op is the operation that failed, for logs.
	Op string
	// Err is the internal cause; never shown to clients.
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP-equivalent status for the error code.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeDuplicateMembership, CodeDuplicateTeam, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeNotFoundInOrg:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// StatusCode returns the HTTP-equivalent status for any error. Unclassified errors are 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing message for err. Unclassified errors get a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Error()
	}
	return "internal server error"
}

func Validation(msg string) *Error { return &Error{Code: CodeValidation, Msg: msg} }

func DuplicateMembership(msg string) *Error { return &Error{Code: CodeDuplicateMembership, Msg: msg} }

func DuplicateTeam(msg string) *Error { return &Error{Code: CodeDuplicateTeam, Msg: msg} }

func NotFoundInOrg(msg string) *Error { return &Error{Code: CodeNotFoundInOrg, Msg: msg} }

func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Msg: msg} }

func Forbidden(msg string) *Error { return &Error{Code: CodeForbidden, Msg: msg} }

func Unauthorized(msg string) *Error { return &Error{Code: CodeUnauthorized, Msg: msg} }

// Internal wraps an unexpected failure outside of a cascade.
func Internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Msg: "internal server error", Op: op, Err: err}
}

// CascadeFailed reports an aborted transactional cascade. op is phrased for the message,
// e.g. "delete Project" yields "Failed to delete Project due to server error, please try again later".
func CascadeFailed(op string, err error) *Error {
	return &Error{
		Code: CodeCascadeFailed,
		Msg:  fmt.Sprintf("Failed to %s due to server error, please try again later", op),
		Op:   op,
		Err:  err,
	}
}
