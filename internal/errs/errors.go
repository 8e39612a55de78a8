// Package errs provides the unified error type used across all of unidb.
//
// Every backend client (SQL, key-value, object store) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", mysqlErr)
//
//	// In a caller, check the error kind:
//	if errs.IsBusy(err) {
//	    // another command holds the connection; retry later
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
// All backends (MySQL, Postgres, the key-value server, MinIO) map their
// native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no key, no object
	ErrKindConnectionFailed         // cannot reach the backend or the socket broke
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // backend rejected or failed a command
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied
	ErrKindBusy                     // connection already has a command in flight
	ErrKindNotConnected             // client has no open connection
	ErrKindAuthFailed               // credentials rejected during connect
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindBusy:
		return "busy"
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// ErrBusy is returned (wrapped or as-is) when a connection lock could not be
// acquired. It matches with errors.Is.
var ErrBusy = New(ErrKindBusy, "connection is busy")

// Error is the single error type returned by all unidb subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports two *Error values as equal when their kinds match, so that
// errors.Is(err, errs.ErrBusy) works for any busy error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsBusy reports whether err means the connection lock was held by another call.
func IsBusy(err error) bool {
	return KindOf(err) == ErrKindBusy
}

// IsNotConnected reports whether err was raised against a closed client.
func IsNotConnected(err error) bool {
	return KindOf(err) == ErrKindNotConnected
}

// IsAuthFailed reports whether err is a rejected credential.
func IsAuthFailed(err error) bool {
	return KindOf(err) == ErrKindAuthFailed
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
