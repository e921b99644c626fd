package chatapp_errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrWindowExpired  = errors.New("edit window expired")
	ErrAlreadyDeleted = errors.New("message already deleted")
	ErrRateLimited    = errors.New("rate limited")
	ErrTooLarge       = errors.New("file too large")
	ErrInternal       = errors.New("internal error")

	// Both are invalid input with a more specific code.
	ErrInvalidIdentifier = fmt.Errorf("%w: invalid identifier", ErrInvalidInput)
	ErrSameUser          = fmt.Errorf("%w: a chat needs two distinct users", ErrInvalidInput)
)

// Machine-readable error codes returned to clients.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeSameUser          = "SAME_USER"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeWindowExpired     = "WINDOW_EXPIRED"
	CodeAlreadyDeleted    = "ALREADY_DELETED"
	CodeConflict          = "CONFLICT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeTooLarge          = "TOO_LARGE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Kind returns the stable code for err. Anything not recognised is internal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentifier):
		return CodeInvalidIdentifier
	case errors.Is(err, ErrSameUser):
		return CodeSameUser
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrWindowExpired):
		return CodeWindowExpired
	case errors.Is(err, ErrAlreadyDeleted):
		return CodeAlreadyDeleted
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrTooLarge):
		return CodeTooLarge
	default:
		return CodeInternal
	}
}

// IsExpected reports whether err is a user-visible outcome rather than a fault.
func IsExpected(err error) bool {
	return err != nil && Kind(err) != CodeInternal
}

// HTTPStatus converts an error to the HTTP status code returned for it.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case CodeInvalidInput, CodeInvalidIdentifier, CodeSameUser:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeWindowExpired, CodeAlreadyDeleted, CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
