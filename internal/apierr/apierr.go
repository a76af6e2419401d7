// Package apierr maps the error taxonomy of §7 (validation, not-found,
// forbidden, unavailable, io, empty, unexpected) onto HTTP status codes for
// the handler layer. It does not replace Go's error wrapping: an *Error
// keeps its cause and unwraps to it, and StatusCode classifies errors at the
// handler edge.
package apierr

import (
	"errors"
	"net/http"
)

// Kind is one of the taxonomy's seven classes.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnavailable
	KindIO
	KindEmpty
)

// Error wraps an underlying cause with a taxonomy kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string, err error) error  { return newErr(KindValidation, msg, err) }
func NotFound(msg string, err error) error    { return newErr(KindNotFound, msg, err) }
func Forbidden(msg string, err error) error   { return newErr(KindForbidden, msg, err) }
func Unavailable(msg string, err error) error { return newErr(KindUnavailable, msg, err) }
func IO(msg string, err error) error          { return newErr(KindIO, msg, err) }
func Unexpected(msg string, err error) error  { return newErr(KindUnexpected, msg, err) }

// Empty is a sentinel, not a wrapped error: a valid request with nothing to
// render. Handlers check for it with errors.Is, never log it as a failure.
var Empty = errors.New("empty")

// StatusCode maps an error to the HTTP status the handler layer should send.
// Empty (or KindEmpty) maps to 204. Errors not produced by this package are
// treated as unexpected (500), matching the taxonomy's catch-all.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, Empty) {
		return http.StatusNoContent
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindValidation:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindForbidden:
			return http.StatusForbidden
		case KindUnavailable:
			return http.StatusServiceUnavailable
		case KindIO:
			return http.StatusInternalServerError
		case KindEmpty:
			return http.StatusNoContent
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
