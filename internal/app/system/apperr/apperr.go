// Package apperr defines the error kinds that services hand back to the HTTP
// layer. Stores keep their own sentinel errors; services translate those into
// an *Error so handlers can pick a status code without knowing about Mongo.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	Conflict
	Unauthorized
	Forbidden
	NotFound
	InvalidRequest
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case InvalidRequest:
		return "invalid_request"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a classified failure with a client-facing message.
//
// Status overrides the kind's default HTTP status when non-zero. Err is the
// underlying cause and is only exposed to clients for Internal errors.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err. A deadline or cancellation is always reported as
// Unavailable regardless of the requested kind.
func Wrap(kind Kind, msg string, err error) *Error {
	if isTimeout(err) {
		kind = Unavailable
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithStatus returns a copy of e that is served with the given HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// KindOf reports the kind of err. Unclassified errors are Internal, except
// context deadlines which are Unavailable.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if isTimeout(err) {
		return Unavailable
	}
	return Internal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return StatusOf(KindOf(err))
}

// StatusOf maps a kind to its default HTTP status.
func StatusOf(k Kind) int {
	switch k {
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
