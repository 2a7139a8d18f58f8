package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"

	"waitlist-system/internal/status"
)

// apiError maps domain errors to user-safe responses. Internal state
// names never leak to customers.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", nil)
	case errors.Is(err, status.ErrInvalidTransition):
		return apis.NewBadRequestError("This action can no longer be performed for this customer", nil)
	case errors.Is(err, status.ErrConflict):
		return apis.NewApiError(http.StatusConflict, "Please refresh and try again", nil)
	case errors.Is(err, status.ErrCapacityExceeded):
		return apis.NewBadRequestError("This queue is not accepting new customers right now", nil)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Something went wrong", nil)
	}
}
