package transport

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/review"
	"github.com/rpggio/casereview/internal/sheet"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"pathEscape": url.PathEscape,
	"fmtTime": func(t time.Time) string {
		return t.Format(audit.TimestampLayout)
	},
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Page    review.Page
	View    review.View
	Flash   []string
	LogKey  string
	Log     []audit.Event
	Columns []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "", nil)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, logKey string, events []audit.Event) {
	token, sess := s.session(r)
	view, err := s.engine.View(r.Context(), sess)
	if err != nil {
		s.logError(r.Context(), "rendering view", err)
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	data := pageData{
		Page:    view.Session.Page,
		View:    view,
		Flash:   s.sessions.TakeFlash(token),
		LogKey:  logKey,
		Log:     events,
		Columns: audit.Columns,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pages.ExecuteTemplate(w, "page", data); err != nil {
		s.logError(r.Context(), "executing template", err)
	}
}

// act runs a transition, queues its warnings or error as flash messages and
// redirects back to the index page.
func (s *Server) act(w http.ResponseWriter, r *http.Request, fn func(context.Context, review.Session) (review.Result, error)) {
	token, _ := TokenFromContext(r.Context())
	res, err := s.transition(r, fn)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logError(r.Context(), "transition failed", err)
		}
		s.sessions.AddFlash(token, userMessage(err))
	}
	s.sessions.AddFlash(token, res.Warnings...)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	r = s.withSession(w, r)
	s.act(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.Login(ctx, sess, username, password)
	})
}

// handleLogout destroys the session. Warnings from the logout ride on a
// fresh logged-out session so the login page can show them.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := TokenFromContext(r.Context())
	res, err := s.transition(r, s.engine.Logout)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			s.logError(r.Context(), "logout failed", err)
		}
		s.sessions.AddFlash(token, userMessage(err))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if len(res.Warnings) == 0 {
		endSession(w, s.sessions, s.cookieName, token)
	} else {
		s.sessions.Remove(token)
		next, _ := TokenFromContext(startSession(w, r, s.sessions, s.cookieName).Context())
		s.sessions.AddFlash(next, res.Warnings...)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleOpenCase(w http.ResponseWriter, r *http.Request) {
	caseID := pathParam(r, "case")
	s.act(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.OpenCase(ctx, sess, caseID)
	})
}

func (s *Server) handleSelectPhase(w http.ResponseWriter, r *http.Request) {
	phaseID := r.PostFormValue("phase")
	s.act(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.SelectPhase(ctx, sess, phaseID)
	})
}

func (s *Server) handleStepSlice(w http.ResponseWriter, r *http.Request) {
	dir := review.Direction(r.PostFormValue("direction"))
	s.act(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.StepSlice(ctx, sess, dir)
	})
}

func (s *Server) handleSaveDiagnosis(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("text")
	s.act(w, r, func(ctx context.Context, sess review.Session) (review.Result, error) {
		return s.engine.SaveDiagnosis(ctx, sess, text)
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, s.engine.BackToSelection)
}

func (s *Server) handleOpenAdmin(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, s.engine.OpenAdmin)
}

func (s *Server) handleCloseAdmin(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, s.engine.CloseAdmin)
}

func (s *Server) handleSliceImage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.Error(w, "invalid slice number", http.StatusBadRequest)
		return
	}
	_, sess := s.session(r)
	ref, err := s.engine.SliceAt(r.Context(), sess, n)
	if err != nil {
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, ref.Path)
}

func (s *Server) handleAdminLog(w http.ResponseWriter, r *http.Request) {
	token, sess := s.session(r)
	if sess.Page != review.PageAdmin {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	key := pathParam(r, "key")
	events, err := s.engine.AdminLog(r.Context(), sess, key)
	if err != nil {
		if errors.Is(err, review.ErrForbidden) {
			http.Error(w, userMessage(err), http.StatusForbidden)
			return
		}
		s.logError(r.Context(), "reading audit log", err)
		s.sessions.AddFlash(token, "Audit log could not be read")
	}
	s.render(w, r, key, events)
}

func (s *Server) handleExportLog(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(r)
	key := pathParam(r, "key")
	events, err := s.engine.AdminLog(r.Context(), sess, key)
	if err != nil {
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key+"_audit_log.xlsx"))
	if err := sheet.WriteLog(w, events); err != nil {
		s.logError(r.Context(), "exporting audit log", err)
	}
}

func (s *Server) logError(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, "error", err)
	}
}

// pathParam returns a URL parameter with percent-escapes decoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
