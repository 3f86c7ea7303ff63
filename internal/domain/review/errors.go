package review

import (
	"errors"

	"github.com/rpggio/casereview/internal/domain/credential"
)

var (
	// ErrInvalidCredentials is returned by a failed login.
	ErrInvalidCredentials = credential.ErrInvalidCredentials
	// ErrNotAuthenticated indicates an action that needs a logged-in session.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrAlreadyAuthenticated indicates a login on a logged-in session.
	ErrAlreadyAuthenticated = errors.New("already logged in")
	// ErrInvalidPage indicates an action not available on the current page.
	ErrInvalidPage = errors.New("action not available on this page")
	// ErrForbidden indicates an admin action by a non-admin user.
	ErrForbidden = errors.New("admin access required")
	// ErrCaseNotFound indicates an unknown case.
	ErrCaseNotFound = errors.New("case not found")
	// ErrNoCaseSelected indicates an action that needs an open case.
	ErrNoCaseSelected = errors.New("no case selected")
	// ErrNoPhaseSelected indicates an action that needs a selected series.
	ErrNoPhaseSelected = errors.New("no series selected")
	// ErrNoSlices indicates a series without images.
	ErrNoSlices = errors.New("no images in series")
	// ErrInvalidDirection indicates an unknown paging direction.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrInvalidSteppingMode indicates an unknown stepping mode.
	ErrInvalidSteppingMode = errors.New("invalid stepping mode")
	// ErrUnknownSession indicates a session token that is not registered.
	ErrUnknownSession = errors.New("unknown session")
)
