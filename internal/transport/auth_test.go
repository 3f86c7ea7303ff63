package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/casereview/internal/domain/review"
	"github.com/stretchr/testify/require"
)

func TestRequireLogin(t *testing.T) {
	sessions := review.NewRegistry()
	loggedOut := sessions.Create()
	loggedIn := sessions.Create()
	_, err := sessions.Do(loggedIn, func(s review.Session) (review.Session, error) {
		return review.Session{Username: "user1", Page: review.PageCaseSelection}, nil
	})
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := func(api bool) http.Handler {
		return SessionMiddleware(sessions, "sid")(RequireLogin(sessions, api)(ok))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+loggedIn)
	rec := httptest.NewRecorder()
	chain(true).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+loggedOut)
	rec = httptest.NewRecorder()
	chain(true).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/viewer/slices/1", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: loggedOut})
	rec = httptest.NewRecorder()
	chain(false).ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}
