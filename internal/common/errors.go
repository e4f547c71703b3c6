package common

import (
	"errors"
	"net/http"
)

// Error kinds surfaced by the messaging core. Handlers map these to HTTP
// statuses; everything else is reported as a generic unavailability so
// transient store failures are never silently swallowed.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyMember    = errors.New("already a member")
	ErrNotMember        = errors.New("not a member")
	ErrSelfConversation = errors.New("cannot create conversation with yourself")
	ErrEmptyContent     = errors.New("message content cannot be empty")
	ErrInvalidType      = errors.New("invalid message type")
	ErrAlreadyExists    = errors.New("already exists")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUnavailable      = errors.New("service unavailable")
)

// HTTPStatus maps an error kind to a response status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrSelfConversation),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
