// Package apperr defines the error sentinels shared by every domain service
// and the mapping from those sentinels to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Validation returns an error wrapping ErrValidation whose message is the
// formatted text alone, so it can be shown to the caller verbatim.
func Validation(format string, args ...interface{}) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), kind: ErrValidation}
}

// NotFound returns an ErrNotFound carrying the given message.
func NotFound(format string, args ...interface{}) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), kind: ErrNotFound}
}

// Conflict returns an ErrConflict carrying the given message.
func Conflict(format string, args ...interface{}) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), kind: ErrConflict}
}

// Forbidden returns an ErrForbidden carrying the given message.
func Forbidden(format string, args ...interface{}) error {
	return &wrapped{msg: fmt.Sprintf(format, args...), kind: ErrForbidden}
}

// Transition reports a disallowed move between two workflow states.
func Transition(from, to string) error {
	return &wrapped{msg: fmt.Sprintf("cannot move from %q to %q", from, to), kind: ErrInvalidTransition}
}

type wrapped struct {
	msg  string
	kind error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.kind }

// StatusCode maps an error to the HTTP status a handler should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts a service error into an echo HTTP error. Internal errors are
// not echoed back to the client.
func HTTP(err error) *echo.HTTPError {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
