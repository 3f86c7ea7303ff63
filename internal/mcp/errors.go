package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/casereview/internal/domain/review"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, review.ErrInvalidCredentials):
		return &APIError{Code: "INVALID_CREDENTIALS", Message: "invalid username or password"}
	case errors.Is(err, review.ErrAlreadyAuthenticated):
		return &APIError{Code: "ALREADY_LOGGED_IN", Message: "already logged in", RecoveryHint: "Call logout first"}
	case errors.Is(err, review.ErrNotAuthenticated), errors.Is(err, review.ErrUnknownSession):
		return &APIError{Code: "NOT_LOGGED_IN", Message: "not logged in", RecoveryHint: "Call login first"}
	case errors.Is(err, review.ErrForbidden):
		return &APIError{Code: "FORBIDDEN", Message: "admin access required"}
	case errors.Is(err, review.ErrInvalidPage):
		return &APIError{Code: "INVALID_PAGE", Message: err.Error(), RecoveryHint: "Call view to see the current page"}
	case errors.Is(err, review.ErrCaseNotFound):
		return &APIError{Code: "CASE_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call view for the case list"}
	case errors.Is(err, review.ErrNoCaseSelected):
		return &APIError{Code: "NO_CASE_SELECTED", Message: "no case open", RecoveryHint: "Call open_case first"}
	case errors.Is(err, review.ErrNoPhaseSelected):
		return &APIError{Code: "NO_SERIES_SELECTED", Message: "no series selected", RecoveryHint: "Call select_phase first"}
	case errors.Is(err, review.ErrNoSlices):
		return &APIError{Code: "NO_IMAGES", Message: err.Error()}
	case errors.Is(err, review.ErrInvalidDirection):
		return &APIError{Code: "INVALID_DIRECTION", Message: err.Error(), RecoveryHint: "Use up or down"}
	default:
		return nil
	}
}

// toolError converts err for a tool response. Unmapped errors are reported
// without internal detail.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return &APIError{Code: "INTERNAL", Message: "internal error"}
}
