// Package apperrors defines the error taxonomy shared by the local
// repositories, the remote adapter and the sync coordinator.
//
// Validation and not-found errors are returned to callers as-is and never
// trigger a fallback. Remote errors mark an operation as eligible for the
// local fallback path.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindStorage
	KindRemoteUnavailable
	KindRemoteOperation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindRemoteOperation:
		return "remote_operation"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Storagef(format string, args ...interface{}) error {
	return &Error{Kind: KindStorage, Msg: fmt.Sprintf(format, args...)}
}

// RemoteUnavailable reports that the remote service is not configured, has
// no authenticated user, or is gated by an open circuit breaker. No network
// I/O was attempted.
func RemoteUnavailable(reason string) error {
	return &Error{Kind: KindRemoteUnavailable, Msg: "remote unavailable: " + reason}
}

// RemoteOperation wraps a failure that occurred after a remote call was
// actually attempted.
func RemoteOperation(op string, err error) error {
	return &Error{Kind: KindRemoteOperation, Msg: "remote " + op + " failed", Err: err}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindValidation
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsStorage(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindStorage
}

// IsRemote reports whether err should trigger the local fallback path.
func IsRemote(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == KindRemoteUnavailable || k == KindRemoteOperation)
}
