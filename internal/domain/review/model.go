package review

import (
	"fmt"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/credential"
)

// Page selects which view is rendered for a session.
type Page string

const (
	PageLogin         Page = "login"
	PageCaseSelection Page = "case_selection"
	PageViewer        Page = "viewer"
	PageAdmin         Page = "admin"
)

// Session is the per-user navigation state. Empty SelectedCase and
// SelectedPhase mean nothing is selected; SliceIndex is 1-based and 0 when
// cleared.
type Session struct {
	Username      string `json:"username,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	Page          Page   `json:"page"`
	SelectedCase  string `json:"selected_case,omitempty"`
	SelectedPhase string `json:"selected_phase,omitempty"`
	SliceIndex    int    `json:"slice_index,omitempty"`
}

// NewSession returns a logged-out session on the login page.
func NewSession() Session {
	return Session{Page: PageLogin}
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s Session) Authenticated() bool {
	if s.Username == "" {
		return false
	}
	switch s.Page {
	case PageCaseSelection, PageViewer, PageAdmin:
		return true
	default:
		return false
	}
}

// Direction is a slice paging direction. Up moves to the previous slice,
// Down to the next one.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection validates a direction value.
func ParseDirection(value string) (Direction, error) {
	switch Direction(value) {
	case DirectionUp, DirectionDown:
		return Direction(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, value)
	}
}

// SteppingMode controls what happens when paging past the first or last
// slice.
type SteppingMode string

const (
	// SteppingClamp stops at the boundary; the extra step is a no-op.
	SteppingClamp SteppingMode = "clamp"
	// SteppingWrap pages cyclically from the last slice to the first and back.
	SteppingWrap SteppingMode = "wrap"
)

// ParseSteppingMode validates a configured stepping mode.
func ParseSteppingMode(value string) (SteppingMode, error) {
	switch SteppingMode(value) {
	case SteppingClamp, SteppingWrap:
		return SteppingMode(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSteppingMode, value)
	}
}

// Result is the outcome of one transition: the next session, the audit
// events appended, and non-fatal warnings for the user.
type Result struct {
	Session  Session       `json:"session"`
	Events   []audit.Event `json:"events,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// CaseEntry is one row of the case selection list.
type CaseEntry struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// SliceView describes the slice on screen.
type SliceView struct {
	Index int    `json:"index"`
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// AdminView is the admin page projection.
type AdminView struct {
	Users []credential.UserSummary `json:"users"`
	Logs  []string                 `json:"logs"`
}

// View is the render projection of a session.
type View struct {
	Session   Session     `json:"session"`
	Cases     []CaseEntry `json:"cases,omitempty"`
	Phases    []string    `json:"phases,omitempty"`
	Slice     *SliceView  `json:"slice,omitempty"`
	Diagnosis string      `json:"diagnosis,omitempty"`
	Admin     *AdminView  `json:"admin,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
}
