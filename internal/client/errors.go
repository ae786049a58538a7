package client

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// NetworkFailure means the request never produced a response:
	// offline, DNS, connection refused, timeout.
	NetworkFailure Kind = iota + 1
	// ServerError means the backend answered with a failing status or ok:false.
	ServerError
	// InvalidResponse means the body was not JSON or lacked the ok field.
	InvalidResponse
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case ServerError:
		return "server_error"
	case InvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// CodeUserExists is the backend error code for a duplicate staff email.
const CodeUserExists = "user_exists"

// Error is the only error type returned by Client calls.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	// Code is the backend's "error" field, Message its "message" field.
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if reason := e.Reason(); reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Reason is the human-readable failure reason. The backend may put it in
// either "error" or "message"; both are accepted.
func (e *Error) Reason() string {
	switch {
	case e.Code != "":
		return e.Code
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "Unknown error"
	}
}

// KindOf returns the kind of a client error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind, true
	}
	return 0, false
}

// IsConflict reports whether err is a duplicate-user rejection.
func IsConflict(err error) bool {
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != ServerError {
		return false
	}
	return cerr.Code == CodeUserExists || strings.Contains(cerr.Message, "already exists")
}
