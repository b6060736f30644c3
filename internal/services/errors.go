package services

import (
	"errors"
	"net/http"

	relay_errors "relay-chat/pkg/errors"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, relay_errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, relay_errors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, relay_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, relay_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay_errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, relay_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, relay_errors.ErrDependency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ErrorCode(err error) string {
	switch {
	case errors.Is(err, relay_errors.ErrValidation):
		return "INVALID_REQUEST"
	case errors.Is(err, relay_errors.ErrUnauthenticated):
		return "UNAUTHORIZED"
	case errors.Is(err, relay_errors.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, relay_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, relay_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, relay_errors.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, relay_errors.ErrDependency):
		return "DEPENDENCY_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}
