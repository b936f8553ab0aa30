// Package common holds the error taxonomy shared by repositories, services
// and handlers. Callers match with errors.Is / errors.As.
package common

import (
	"errors"
	"net/http"
)

// Repository-level sentinels.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrMissingReference = errors.New("referenced record does not exist")
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindNotFound
	KindConflict
)

// Error is a client-facing failure. Its Message is safe to return in a
// response body.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func ValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func AuthError(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func NotFoundError(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func ConflictError(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// StatusOf returns the HTTP status and client message for err. Errors that
// are not *Error are reported as a bare 500.
func StatusOf(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status(), e.Message
	}
	return http.StatusInternalServerError, "Internal Server Error"
}
