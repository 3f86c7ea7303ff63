package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/rpggio/casereview/internal/domain/review"
)

// SessionHeader carries the session token to API clients that do not keep
// cookies.
const SessionHeader = "X-Session-Token"

type sessionKey struct{}

// TokenFromContext returns the session token from context, if present.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionKey{}).(string)
	return token, ok
}

// SessionMiddleware resolves the session token from the bearer header or the
// session cookie. Only live tokens are placed in the request context and
// echoed in SessionHeader; unknown tokens are treated as no session, so
// clients cannot register tokens of their choosing. Sessions are issued at
// login.
func SessionMiddleware(sessions *review.Registry, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r, cookieName)
			if token != "" {
				if _, ok := sessions.Get(token); ok {
					w.Header().Set(SessionHeader, token)
					r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// startSession registers a new logged-out session, sends its token as a
// cookie and in SessionHeader, and returns r carrying the token.
func startSession(w http.ResponseWriter, r *http.Request, sessions *review.Registry, cookieName string) *http.Request {
	token := sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionHeader, token)
	return r.WithContext(context.WithValue(r.Context(), sessionKey{}, token))
}

// endSession forgets token and expires the session cookie.
func endSession(w http.ResponseWriter, sessions *review.Registry, cookieName, token string) {
	sessions.Remove(token)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Del(SessionHeader)
}

func requestToken(r *http.Request, cookieName string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			return token
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}
