package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
	"github.com/rpggio/casereview/internal/domain/review"
)

// Reviewer is the navigation engine as seen by the HTTP adapter.
type Reviewer interface {
	Login(ctx context.Context, sess review.Session, username, password string) (review.Result, error)
	Logout(ctx context.Context, sess review.Session) (review.Result, error)
	OpenCase(ctx context.Context, sess review.Session, caseID string) (review.Result, error)
	SelectPhase(ctx context.Context, sess review.Session, phaseID string) (review.Result, error)
	StepSlice(ctx context.Context, sess review.Session, dir review.Direction) (review.Result, error)
	SaveDiagnosis(ctx context.Context, sess review.Session, text string) (review.Result, error)
	BackToSelection(ctx context.Context, sess review.Session) (review.Result, error)
	OpenAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	CloseAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	View(ctx context.Context, sess review.Session) (review.View, error)
	SliceAt(ctx context.Context, sess review.Session, index int) (catalog.SliceRef, error)
	AdminLog(ctx context.Context, sess review.Session, key string) ([]audit.Event, error)
}

// Options configures the HTTP server.
type Options struct {
	CookieName string
	Logger     *slog.Logger
	// MCP, when set, is mounted at /mcp outside the cookie session layer.
	MCP http.Handler
}

// Server wires HTTP handlers.
type Server struct {
	engine     Reviewer
	sessions   *review.Registry
	cookieName string
	logger     *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(engine Reviewer, sessions *review.Registry, opts Options) *chi.Mux {
	if opts.CookieName == "" {
		opts.CookieName = "review_session"
	}
	srv := &Server{engine: engine, sessions: sessions, cookieName: opts.CookieName, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/health", srv.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
		r.Handle("/mcp/*", opts.MCP)
	}

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(sessions, opts.CookieName))

		r.Get("/", srv.handleIndex)
		r.Post("/login", srv.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(RequireLogin(sessions, false))
			r.Post("/logout", srv.handleLogout)
			r.Post("/cases/{case}/open", srv.handleOpenCase)
			r.Post("/viewer/phase", srv.handleSelectPhase)
			r.Post("/viewer/step", srv.handleStepSlice)
			r.Post("/viewer/diagnosis", srv.handleSaveDiagnosis)
			r.Post("/viewer/back", srv.handleBack)
			r.Get("/viewer/slices/{n}", srv.handleSliceImage)
			r.Post("/admin/open", srv.handleOpenAdmin)
			r.Post("/admin/close", srv.handleCloseAdmin)
			r.Get("/admin/logs/{key}", srv.handleAdminLog)
			r.Get("/admin/logs/{key}/export", srv.handleExportLog)
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/login", srv.apiLogin)
			r.Get("/view", srv.apiView)

			r.Group(func(r chi.Router) {
				r.Use(RequireLogin(sessions, true))
				r.Post("/logout", srv.apiLogout)
				r.Post("/cases/{case}/open", srv.apiOpenCase)
				r.Post("/viewer/phase", srv.apiSelectPhase)
				r.Post("/viewer/step", srv.apiStepSlice)
				r.Post("/viewer/diagnosis", srv.apiSaveDiagnosis)
				r.Post("/viewer/back", srv.apiBack)
				r.Post("/admin/open", srv.apiOpenAdmin)
				r.Post("/admin/close", srv.apiCloseAdmin)
				r.Get("/admin/logs/{key}", srv.apiAdminLog)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// transition runs one engine action on the request's session.
func (s *Server) transition(r *http.Request, fn func(context.Context, review.Session) (review.Result, error)) (review.Result, error) {
	token, _ := TokenFromContext(r.Context())
	var res review.Result
	_, err := s.sessions.Do(token, func(sess review.Session) (review.Session, error) {
		var err error
		res, err = fn(r.Context(), sess)
		return res.Session, err
	})
	return res, err
}

// session returns the request's session; requests without a live token read
// as logged out.
func (s *Server) session(r *http.Request) (string, review.Session) {
	token, _ := TokenFromContext(r.Context())
	sess, ok := s.sessions.Get(token)
	if !ok {
		sess = review.NewSession()
	}
	return token, sess
}

// withSession returns r unchanged when it carries a live session, otherwise
// a copy bound to a newly issued one.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request) *http.Request {
	if token, ok := TokenFromContext(r.Context()); ok {
		if _, live := s.sessions.Get(token); live {
			return r
		}
	}
	return startSession(w, r, s.sessions, s.cookieName)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
