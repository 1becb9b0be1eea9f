// Package apperrors provides a small typed-error vocabulary shared by
// the coordinator and the HTTP dispatcher, so that a handler can map
// any error it receives to the correct status code without string
// matching or a type switch per call site.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the error categories named by the store's error
// handling design: a handler needs to know only the Kind to pick an
// HTTP status.
type Kind string

const (
	// KindClientMalformed is a missing or invalid request parameter.
	KindClientMalformed Kind = "CLIENT_MALFORMED"
	// KindNotFound is a key absent from both cache and backend.
	KindNotFound Kind = "NOT_FOUND"
	// KindBackendFailed is a write or delete that the backend rejected
	// or that failed to execute.
	KindBackendFailed Kind = "BACKEND_FAILED"
	// KindPoolExhausted is returned only by the timed acquire variant
	// when no session became idle before the deadline.
	KindPoolExhausted Kind = "POOL_EXHAUSTED"
	// KindStartupFatal means zero sessions were established at boot;
	// the process must exit without binding a listener.
	KindStartupFatal Kind = "STARTUP_FATAL"
)

// httpStatus is the fixed Kind -> status mapping. Not every Kind maps
// to a response a client ever sees (KindStartupFatal never reaches the
// HTTP layer), but keeping it total avoids a partial switch elsewhere.
var httpStatus = map[Kind]int{
	KindClientMalformed: http.StatusBadRequest,
	KindNotFound:        http.StatusNotFound,
	KindBackendFailed:   http.StatusInternalServerError,
	KindPoolExhausted:   http.StatusServiceUnavailable,
	KindStartupFatal:    http.StatusInternalServerError,
}

// Error is an application error carrying enough information for the
// dispatcher to respond correctly and for logging to record the cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code a dispatcher should write for
// this error.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ClientMalformed reports a missing or invalid request parameter.
func ClientMalformed(message string) *Error {
	return newError(KindClientMalformed, message, nil)
}

// NotFound reports that key is absent from both cache and backend.
func NotFound(key string) *Error {
	return newError(KindNotFound, fmt.Sprintf("key %q not found", key), nil)
}

// BackendFailed wraps a backend error for a write or delete. Backend
// read failures do not use it: the coordinator reports them as NotFound.
func BackendFailed(operation string, cause error) *Error {
	return newError(KindBackendFailed, fmt.Sprintf("backend operation %q failed", operation), cause)
}

// PoolExhausted reports that AcquireWithDeadline's deadline elapsed
// before a session became idle.
func PoolExhausted(cause error) *Error {
	return newError(KindPoolExhausted, "no session became available before the deadline", cause)
}

// StartupFatal reports that the pool established zero sessions at
// boot.
func StartupFatal(message string) *Error {
	return newError(KindStartupFatal, message, nil)
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
