// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies a failure for the transports.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindPreconditionFailed
	KindUnauthorized
	KindForbidden
	KindUnavailable
	// KindUpstream is a failed or timed-out collaborator call. Retryable.
	KindUpstream
)

// Error is the domain error type returned by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) error { return &Error{Kind: k, Message: msg} }

// InvalidArgument is returned for bad input, e.g. self-like or a limit out of range.
func InvalidArgument(msg string) error { return newErr(KindInvalidArgument, msg) }

// AlreadyExists is a conflict on a resource that must be unique.
func AlreadyExists(msg string) error { return newErr(KindConflict, msg) }

// Conflict covers domain rules violated by the current state (last photo, already matched).
func Conflict(msg string) error { return newErr(KindConflict, msg) }

func NotFound(msg string) error { return newErr(KindNotFound, msg) }

func PreconditionFailed(msg string) error { return newErr(KindPreconditionFailed, msg) }

func Unauthorized(msg string) error { return newErr(KindUnauthorized, msg) }

func Forbidden(msg string) error { return newErr(KindForbidden, msg) }

func Unavailable(msg string) error { return newErr(KindUnavailable, msg) }

// Upstream wraps a collaborator failure (storage, connector, messaging).
func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// Internal wraps an unexpected infrastructure error.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// Map converts repo/infra errors into domain errors.
// Domain errors pass through untouched.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: "record not found", Err: err}

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: "already exists", Err: err}

	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstream, Message: "request timed out", Err: err}

	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindUnavailable, Message: "request was canceled", Err: err}

	default:
		return Internal(err)
	}
}

// KindOf reports the kind of err after mapping.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(Map(err), &de) {
		return de.Kind
	}
	return KindInternal
}

// Is reports whether err maps to kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus translates err into an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidArgument, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to clients. Internal
// details stay in the logs.
func PublicMessage(err error) string {
	var de *Error
	if !errors.As(Map(err), &de) || de.Kind == KindInternal {
		return "internal error"
	}
	return de.Message
}
