package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable error class that crosses the API
// boundary. Handlers map kinds to HTTP codes; internal causes stay inside.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindAlreadyAssigned   Kind = "already_assigned"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindConflict          Kind = "conflict"
	KindStorageFailure    Kind = "storage_failure"
)

type HttpError struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, kind Kind, message string, err error) *HttpError {
	return &HttpError{Code: code, Kind: kind, Message: message, Err: err}
}

func NewValidationError(format string, args ...interface{}) *HttpError {
	return NewHttpError(http.StatusBadRequest, KindValidation, fmt.Sprintf(format, args...), nil)
}

func NewUnauthenticatedError(message string) *HttpError {
	return NewHttpError(http.StatusUnauthorized, KindUnauthenticated, message, nil)
}

func NewForbiddenError(message string) *HttpError {
	return NewHttpError(http.StatusForbidden, KindForbidden, message, nil)
}

func NewNotFoundError(format string, args ...interface{}) *HttpError {
	return NewHttpError(http.StatusNotFound, KindNotFound, fmt.Sprintf(format, args...), nil)
}

func NewInvalidTransitionError(format string, args ...interface{}) *HttpError {
	return NewHttpError(http.StatusConflict, KindInvalidTransition, fmt.Sprintf(format, args...), nil)
}

func NewAlreadyAssignedError(message string) *HttpError {
	return NewHttpError(http.StatusConflict, KindAlreadyAssigned, message, nil)
}

func NewPayloadTooLargeError(format string, args ...interface{}) *HttpError {
	return NewHttpError(http.StatusRequestEntityTooLarge, KindPayloadTooLarge, fmt.Sprintf(format, args...), nil)
}

func NewConflictError(message string, err error) *HttpError {
	return NewHttpError(http.StatusConflict, KindConflict, message, err)
}

func NewStorageError(message string, err error) *HttpError {
	return NewHttpError(http.StatusInternalServerError, KindStorageFailure, message, err)
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Kind == kind
	}
	return false
}

// Shared sentinels used by the auth middleware and the JWT service.
var (
	ErrEmptyAuthHeader      = NewUnauthenticatedError("authorization header is missing")
	ErrInvalidAuthHeader    = NewUnauthenticatedError("authorization header has an invalid format")
	ErrInvalidSigningMethod = NewUnauthenticatedError("unexpected token signing method")
	ErrInvalidToken         = NewUnauthenticatedError("invalid token")
	ErrTokenExpired         = NewUnauthenticatedError("token has expired")
	ErrTokenIsNotRefresh    = NewUnauthenticatedError("token is not a refresh token")
	ErrTokenIsNotAccess     = NewUnauthenticatedError("refresh token cannot be used for access")
	ErrInvalidCredentials   = NewUnauthenticatedError("incorrect username or password")
	ErrAccountInactive      = NewForbiddenError("user account is inactive")
	ErrInvalidUserID        = NewUnauthenticatedError("user id not found in request context")
	ErrNotFound             = NewNotFoundError("record not found")
)
