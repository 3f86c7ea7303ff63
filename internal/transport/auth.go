package transport

import (
	"errors"
	"net/http"

	"github.com/rpggio/casereview/internal/domain/review"
)

// ErrUnauthorized indicates a request without a logged-in session.
var ErrUnauthorized = errors.New("unauthorized")

// RequireLogin rejects requests whose session is not logged in. Browser
// routes are redirected to the login page; API routes get 401.
func RequireLogin(sessions *review.Registry, api bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := TokenFromContext(r.Context())
			sess, ok := sessions.Get(token)
			if !ok || !sess.Authenticated() {
				if api {
					writeError(w, http.StatusUnauthorized, ErrUnauthorized)
					return
				}
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
