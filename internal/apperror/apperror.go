// Package apperror defines the errors surfaced to API clients.
package apperror

import (
	"encoding/json"
	"errors"
	"net/http"
)

// AppError is an error that knows how it is presented to a client.
type AppError interface {
	error
	HTTPCode() int
	ErrorCode() string
	Message() string
}

// Error is the concrete AppError. Two Errors match under errors.Is when their
// codes are equal, so sentinels survive WithCause and WithMessage.
type Error struct {
	httpCode  int
	errorCode string
	message   string
	cause     error
}

func New(httpCode int, errorCode, message string) *Error {
	return &Error{httpCode: httpCode, errorCode: errorCode, message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) HTTPCode() int     { return e.httpCode }
func (e *Error) ErrorCode() string { return e.errorCode }
func (e *Error) Message() string   { return e.message }
func (e *Error) Unwrap() error     { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.errorCode == e.errorCode
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{httpCode: e.httpCode, errorCode: e.errorCode, message: e.message, cause: cause}
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{httpCode: e.httpCode, errorCode: e.errorCode, message: message, cause: e.cause}
}

var (
	ErrCodeNotFound       = New(http.StatusNotFound, "code_not_found", "access code not recognized")
	ErrCodeDeactivated    = New(http.StatusForbidden, "code_deactivated", "access code exists but is deactivated")
	ErrBackendUnavailable = New(http.StatusServiceUnavailable, "backend_unavailable", "backend unavailable")
	ErrValidation         = New(http.StatusBadRequest, "validation_error", "invalid input")
	ErrRecordNotFound     = New(http.StatusNotFound, "not_found", "record not found")
	ErrUnauthenticated    = New(http.StatusUnauthorized, "unauthenticated", "not logged in")
)

// Unavailable wraps a backend failure. Errors that already carry an AppError
// are returned unchanged.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var ae AppError
	if errors.As(err, &ae) {
		return err
	}
	return ErrBackendUnavailable.WithCause(err)
}

// Validation builds a validation error with a specific message.
func Validation(message string) error {
	return ErrValidation.WithMessage(message)
}

// From extracts the AppError carried by err, defaulting to a backend failure.
func From(err error) AppError {
	var ae AppError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrBackendUnavailable.WithCause(err)
}

var (
	ErrRateLimited = New(http.StatusTooManyRequests, "rate_limited", "too many requests")
	ErrConflict    = New(http.StatusConflict, "conflict", "record already exists")
)

type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes err to w as {"error": code, "message": msg} with the
// error's HTTP status.
func WriteJSON(w http.ResponseWriter, err error) {
	ae := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.HTTPCode())
	json.NewEncoder(w).Encode(body{Error: ae.ErrorCode(), Message: ae.Message()})
}
