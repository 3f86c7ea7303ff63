package transport

import (
	"errors"
	"net/http"

	"github.com/rpggio/casereview/internal/domain/review"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, review.ErrInvalidCredentials),
		errors.Is(err, review.ErrNotAuthenticated),
		errors.Is(err, review.ErrUnknownSession),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, review.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, review.ErrCaseNotFound),
		errors.Is(err, review.ErrNoSlices):
		return http.StatusNotFound
	case errors.Is(err, review.ErrInvalidPage),
		errors.Is(err, review.ErrAlreadyAuthenticated),
		errors.Is(err, review.ErrNoCaseSelected),
		errors.Is(err, review.ErrNoPhaseSelected):
		return http.StatusConflict
	case errors.Is(err, review.ErrInvalidDirection),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// userMessage is the text shown to a person for err. Unexpected errors are
// not echoed.
func userMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "Something went wrong; please try again"
	}
	return err.Error()
}
