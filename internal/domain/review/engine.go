package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/casereview/internal/domain/audit"
)

// Options configures an Engine.
type Options struct {
	Stepping SteppingMode
}

// Engine applies navigation transitions to sessions. It holds no session
// state itself; callers pass the current session and store the returned one.
type Engine struct {
	catalog   Catalog
	users     Authenticator
	diagnoses DiagnosisStore
	audit     AuditLog
	stepping  SteppingMode
	logger    *slog.Logger
}

// NewEngine creates a new review engine.
func NewEngine(cat Catalog, users Authenticator, diagnoses DiagnosisStore, auditLog AuditLog, opts Options, logger *slog.Logger) *Engine {
	stepping := opts.Stepping
	if stepping == "" {
		stepping = SteppingClamp
	}
	return &Engine{
		catalog:   cat,
		users:     users,
		diagnoses: diagnoses,
		audit:     auditLog,
		stepping:  stepping,
		logger:    logger,
	}
}

// Stepping returns the configured stepping mode.
func (e *Engine) Stepping() SteppingMode {
	return e.stepping
}

// Login authenticates a user. A failed attempt keeps the session on the
// login page and records a Login Fail event.
func (e *Engine) Login(ctx context.Context, sess Session, username, password string) (Result, error) {
	if sess.Authenticated() {
		return Result{Session: sess}, ErrAlreadyAuthenticated
	}

	res := Result{Session: NewSession()}
	user, err := e.users.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			return res, fmt.Errorf("authenticating: %w", err)
		}
		e.record(ctx, &res, e.failedLoginKey(ctx, username), audit.Event{
			Username: username,
			Action:   audit.ActionLoginFail,
		})
		return res, ErrInvalidCredentials
	}

	key := e.audit.KeyFor(user.Username)
	if _, err := e.audit.Load(ctx, key); err != nil {
		e.warn(ctx, &res, "Earlier audit events could not be read; new events are still recorded", err)
	}
	if _, err := e.diagnoses.ListForUser(ctx, user.Username); err != nil {
		e.warn(ctx, &res, "Saved diagnoses could not be loaded", err)
	}

	res.Session = Session{
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		Page:     PageCaseSelection,
	}
	e.record(ctx, &res, key, audit.Event{
		Username: user.Username,
		Action:   audit.ActionLogin,
	})
	if e.logger != nil {
		e.logger.InfoContext(ctx, "user logged in", "username", user.Username, "admin", user.IsAdmin)
	}
	return res, nil
}

// OpenCase moves from case selection to the viewer for caseID.
func (e *Engine) OpenCase(ctx context.Context, sess Session, caseID string) (Result, error) {
	if err := requirePage(sess, PageCaseSelection); err != nil {
		return Result{Session: sess}, err
	}
	if !contains(e.catalog.ListCases(ctx), caseID) {
		return Result{Session: sess}, fmt.Errorf("%w: %q", ErrCaseNotFound, caseID)
	}

	next := sess
	next.Page = PageViewer
	next.SelectedCase = caseID
	next.SelectedPhase = ""
	next.SliceIndex = 1

	res := Result{Session: next}
	e.record(ctx, &res, e.audit.KeyFor(sess.Username), audit.Event{
		Username: sess.Username,
		Action:   audit.ActionOpenCase,
		Case:     caseID,
	})
	return res, nil
}

// SelectPhase selects a series of the open case and resets paging to its
// first slice. An empty or unknown phase clears the selection.
func (e *Engine) SelectPhase(ctx context.Context, sess Session, phaseID string) (Result, error) {
	if err := requirePage(sess, PageViewer); err != nil {
		return Result{Session: sess}, err
	}

	if phaseID == "" || !contains(e.catalog.ListPhases(ctx, sess.SelectedCase), phaseID) {
		next := sess
		next.SelectedPhase = ""
		next.SliceIndex = 0
		res := Result{Session: next}
		if phaseID != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Series %q not found in case %q", phaseID, sess.SelectedCase))
		}
		return res, nil
	}

	slices := e.catalog.ListSlices(ctx, sess.SelectedCase, phaseID)
	first := 1
	if len(slices) == 0 {
		first = 0
	}
	if sess.SelectedPhase == phaseID && sess.SliceIndex == first {
		return Result{Session: sess}, nil
	}

	next := sess
	next.SelectedPhase = phaseID
	next.SliceIndex = first

	res := Result{Session: next}
	if len(slices) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("No images found for series %q", phaseID))
	}
	e.record(ctx, &res, e.audit.KeyFor(sess.Username), audit.Event{
		Username: sess.Username,
		Action:   audit.ActionSelectSeries,
		Case:     sess.SelectedCase,
		Series:   phaseID,
	})
	return res, nil
}

// StepSlice pages one slice up or down. In clamp mode a step past either end
// is a no-op and records nothing.
func (e *Engine) StepSlice(ctx context.Context, sess Session, dir Direction) (Result, error) {
	if err := requirePage(sess, PageViewer); err != nil {
		return Result{Session: sess}, err
	}
	if sess.SelectedPhase == "" {
		return Result{Session: sess}, ErrNoPhaseSelected
	}

	var delta int
	switch dir {
	case DirectionUp:
		delta = -1
	case DirectionDown:
		delta = 1
	default:
		return Result{Session: sess}, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}

	count := len(e.catalog.ListSlices(ctx, sess.SelectedCase, sess.SelectedPhase))
	if count == 0 {
		return Result{Session: sess}, ErrNoSlices
	}

	current := clamp(sess.SliceIndex, 1, count)
	target := current + delta
	switch e.stepping {
	case SteppingWrap:
		if target < 1 {
			target = count
		} else if target > count {
			target = 1
		}
	default:
		target = clamp(target, 1, count)
	}

	next := sess
	next.SliceIndex = current
	res := Result{Session: next}
	if target == current {
		return res, nil
	}

	res.Session.SliceIndex = target
	e.record(ctx, &res, e.audit.KeyFor(sess.Username), audit.Event{
		Username: sess.Username,
		Action:   audit.ActionChangeSlice,
		Case:     sess.SelectedCase,
		Series:   sess.SelectedPhase,
		Details:  fmt.Sprintf("Slice: %d", target),
	})
	return res, nil
}

// SaveDiagnosis stores text for the open case and returns to case
// selection. A storage failure is reported as a warning; the transition
// still happens.
func (e *Engine) SaveDiagnosis(ctx context.Context, sess Session, text string) (Result, error) {
	if err := requirePage(sess, PageViewer); err != nil {
		return Result{Session: sess}, err
	}
	if sess.SelectedCase == "" {
		return Result{Session: sess}, ErrNoCaseSelected
	}

	res := Result{Session: toSelection(sess)}
	if err := e.diagnoses.Set(ctx, sess.Username, sess.SelectedCase, text); err != nil {
		e.warn(ctx, &res, "Diagnosis could not be saved", err)
	}
	e.record(ctx, &res, e.audit.KeyFor(sess.Username), audit.Event{
		Username: sess.Username,
		Action:   audit.ActionSaveDiagnosis,
		Case:     sess.SelectedCase,
		Series:   sess.SelectedPhase,
		Details:  text,
	})
	return res, nil
}

// BackToSelection leaves the viewer without saving.
func (e *Engine) BackToSelection(ctx context.Context, sess Session) (Result, error) {
	if err := requirePage(sess, PageViewer); err != nil {
		return Result{Session: sess}, err
	}

	res := Result{Session: toSelection(sess)}
	e.record(ctx, &res, e.audit.KeyFor(sess.Username), audit.Event{
		Username: sess.Username,
		Action:   audit.ActionBackToSelection,
		Case:     sess.SelectedCase,
	})
	return res, nil
}

// Logout records the logout, flushes the user's log and resets the session.
func (e *Engine) Logout(ctx context.Context, sess Session) (Result, error) {
	if !sess.Authenticated() {
		return Result{Session: sess}, ErrNotAuthenticated
	}

	key := e.audit.KeyFor(sess.Username)
	res := Result{Session: NewSession()}
	e.record(ctx, &res, key, audit.Event{
		Username: sess.Username,
		Action:   audit.ActionLogout,
	})
	if err := e.audit.Flush(ctx, key); err != nil {
		e.warn(ctx, &res, "Audit log could not be flushed", err)
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, "user logged out", "username", sess.Username)
	}
	return res, nil
}

// OpenAdmin moves an admin from case selection to the admin page.
func (e *Engine) OpenAdmin(ctx context.Context, sess Session) (Result, error) {
	if err := requireAdmin(sess); err != nil {
		return Result{Session: sess}, err
	}
	if err := requirePage(sess, PageCaseSelection); err != nil {
		return Result{Session: sess}, err
	}
	next := sess
	next.Page = PageAdmin
	return Result{Session: next}, nil
}

// CloseAdmin returns from the admin page to case selection.
func (e *Engine) CloseAdmin(ctx context.Context, sess Session) (Result, error) {
	if err := requirePage(sess, PageAdmin); err != nil {
		return Result{Session: sess}, err
	}
	next := sess
	next.Page = PageCaseSelection
	return Result{Session: next}, nil
}

// failedLoginKey picks the log of a failed attempt. In per-user scope an
// unknown username is not given a log of its own.
func (e *Engine) failedLoginKey(ctx context.Context, username string) string {
	if username == "" {
		return e.audit.KeyFor("")
	}
	ok, err := e.users.Exists(ctx, username)
	if err != nil || !ok {
		return e.audit.KeyFor("")
	}
	return e.audit.KeyFor(username)
}

func (e *Engine) record(ctx context.Context, res *Result, key string, event audit.Event) {
	if err := e.audit.Append(ctx, key, &event); err != nil {
		e.warn(ctx, res, "Audit log could not be written", err)
		return
	}
	res.Events = append(res.Events, event)
}

func (e *Engine) warn(ctx context.Context, res *Result, msg string, err error) {
	res.Warnings = append(res.Warnings, msg)
	if e.logger != nil {
		e.logger.WarnContext(ctx, msg, "error", err, "username", res.Session.Username)
	}
}

func requirePage(sess Session, page Page) error {
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	if sess.Page != page {
		return fmt.Errorf("%w: on %s, need %s", ErrInvalidPage, sess.Page, page)
	}
	return nil
}

func requireAdmin(sess Session) error {
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	if !sess.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func toSelection(sess Session) Session {
	next := sess
	next.Page = PageCaseSelection
	next.SelectedCase = ""
	next.SelectedPhase = ""
	next.SliceIndex = 0
	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
