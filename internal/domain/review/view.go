package review

import (
	"context"
	"fmt"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
)

// View projects a session into what its current page shows. Missing catalog
// entries and storage failures become warnings, never errors.
func (e *Engine) View(ctx context.Context, sess Session) (View, error) {
	v := View{Session: sess}
	if !sess.Authenticated() {
		v.Session = NewSession()
		return v, nil
	}

	switch sess.Page {
	case PageCaseSelection:
		done, err := e.diagnoses.ListForUser(ctx, sess.Username)
		if err != nil {
			v.Warnings = append(v.Warnings, "Saved diagnoses could not be loaded")
			e.logWarn(ctx, "listing diagnoses", err, sess.Username)
		}
		cases := e.catalog.ListCases(ctx)
		if len(cases) == 0 {
			v.Warnings = append(v.Warnings, "No cases found")
		}
		v.Cases = make([]CaseEntry, 0, len(cases))
		for _, id := range cases {
			_, ok := done[id]
			v.Cases = append(v.Cases, CaseEntry{ID: id, Done: ok})
		}

	case PageViewer:
		v.Phases = e.catalog.ListPhases(ctx, sess.SelectedCase)
		if len(v.Phases) == 0 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("No series found for case %q", sess.SelectedCase))
		}
		if sess.SelectedPhase != "" {
			slices := e.catalog.ListSlices(ctx, sess.SelectedCase, sess.SelectedPhase)
			if len(slices) == 0 {
				v.Warnings = append(v.Warnings, fmt.Sprintf("No images found for series %q", sess.SelectedPhase))
			} else {
				i := clamp(sess.SliceIndex, 1, len(slices))
				v.Slice = &SliceView{Index: i, Count: len(slices), Name: slices[i-1].Name}
			}
		}
		text, ok, err := e.diagnoses.Get(ctx, sess.Username, sess.SelectedCase)
		if err != nil {
			v.Warnings = append(v.Warnings, "Saved diagnosis could not be loaded")
			e.logWarn(ctx, "reading diagnosis", err, sess.Username)
		} else if ok {
			v.Diagnosis = text
		}

	case PageAdmin:
		admin, err := e.AdminOverview(ctx, sess)
		if err != nil {
			return v, err
		}
		v.Admin = &admin
	}
	return v, nil
}

// SliceAt returns the slice at the 1-based index of the selected series.
func (e *Engine) SliceAt(ctx context.Context, sess Session, index int) (catalog.SliceRef, error) {
	if err := requirePage(sess, PageViewer); err != nil {
		return catalog.SliceRef{}, err
	}
	if sess.SelectedPhase == "" {
		return catalog.SliceRef{}, ErrNoPhaseSelected
	}
	slices := e.catalog.ListSlices(ctx, sess.SelectedCase, sess.SelectedPhase)
	if index < 1 || index > len(slices) {
		return catalog.SliceRef{}, fmt.Errorf("%w: slice %d of %d", ErrNoSlices, index, len(slices))
	}
	return slices[index-1], nil
}

// AdminOverview lists accounts and audit logs for the admin page.
func (e *Engine) AdminOverview(ctx context.Context, sess Session) (AdminView, error) {
	if err := requireAdmin(sess); err != nil {
		return AdminView{}, err
	}
	users, err := e.users.List(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("listing users: %w", err)
	}
	logs, err := e.audit.Keys(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("listing audit logs: %w", err)
	}
	return AdminView{Users: users, Logs: logs}, nil
}

// AdminLog reads one audit log for an admin.
func (e *Engine) AdminLog(ctx context.Context, sess Session, key string) ([]audit.Event, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return e.audit.ReadAll(ctx, key)
}

func (e *Engine) logWarn(ctx context.Context, msg string, err error, username string) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, msg, "error", err, "username", username)
	}
}
