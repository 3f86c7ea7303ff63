package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/rpggio/casereview/internal/domain/review"
	"github.com/rpggio/casereview/internal/sheet"
	"github.com/rpggio/casereview/internal/testserver"
	"github.com/rpggio/casereview/internal/transport"
	"github.com/stretchr/testify/require"
)

func postForm(t *testing.T, client *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(target, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getBody(t *testing.T, client *http.Client, target string) (int, string) {
	t.Helper()
	resp, err := client.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestWeb_ReviewFlow(t *testing.T) {
	ts := testserver.New(t)
	browser := ts.Browser(t)

	status, body := getBody(t, browser, ts.URL("/"))
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Sign in")
	require.Zero(t, ts.App.Sessions.Len())

	resp := postForm(t, browser, ts.URL("/login"), url.Values{"username": {"user1"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	_, body = getBody(t, browser, ts.URL("/"))
	require.Contains(t, body, "Signed in as <strong>user1</strong>")
	require.Contains(t, body, "CASE01")
	require.NotContains(t, body, "(done)")
	require.NotContains(t, body, `action="/admin/open"`)

	postForm(t, browser, ts.URL("/cases/CASE01/open"), nil)
	postForm(t, browser, ts.URL("/viewer/phase"), url.Values{"phase": {"non_contrast"}})
	postForm(t, browser, ts.URL("/viewer/step"), url.Values{"direction": {"down"}})

	_, body = getBody(t, browser, ts.URL("/"))
	require.Contains(t, body, "Slice 2 / 3")
	require.Contains(t, body, `src="/viewer/slices/2"`)

	status, body = getBody(t, browser, ts.URL("/viewer/slices/2"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "img:2.jpg", body)

	status, _ = getBody(t, browser, ts.URL("/viewer/slices/9"))
	require.Equal(t, http.StatusNotFound, status)

	postForm(t, browser, ts.URL("/viewer/diagnosis"), url.Values{"text": {"no acute findings"}})

	_, body = getBody(t, browser, ts.URL("/"))
	require.Contains(t, body, "CASE01 (done)")

	text, ok, err := ts.App.Diagnoses.Get(context.Background(), "user1", "CASE01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "no acute findings", text)

	postForm(t, browser, ts.URL("/logout"), nil)
	require.Zero(t, ts.App.Sessions.Len())
	_, body = getBody(t, browser, ts.URL("/"))
	require.Contains(t, body, "Sign in")

	events, err := ts.App.Audit.ReadAll(context.Background(), "user1")
	require.NoError(t, err)
	var actions []string
	for _, e := range events {
		actions = append(actions, string(e.Action))
	}
	require.Equal(t, []string{
		"Login Success", "Open Case", "Select Series", "Change Slice", "Save Diagnosis", "Logout",
	}, actions)
}

func TestWeb_BadLoginShowsFlash(t *testing.T) {
	ts := testserver.New(t)
	browser := ts.Browser(t)

	postForm(t, browser, ts.URL("/login"), url.Values{"username": {"user1"}, "password": {"nope"}})

	_, body := getBody(t, browser, ts.URL("/"))
	require.Contains(t, body, "invalid username or password")
	require.Contains(t, body, "Sign in")

	// Flash messages are shown once.
	_, body = getBody(t, browser, ts.URL("/"))
	require.NotContains(t, body, "invalid username or password")
}

func TestWeb_RequireLoginRedirects(t *testing.T) {
	ts := testserver.New(t)
	browser := ts.Browser(t)

	resp := postForm(t, browser, ts.URL("/cases/CASE01/open"), nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestWeb_AdminExport(t *testing.T) {
	ts := testserver.New(t)

	user := ts.Browser(t)
	postForm(t, user, ts.URL("/login"), url.Values{"username": {"user1"}, "password": {"pw1"}})

	admin := ts.Browser(t)
	postForm(t, admin, ts.URL("/login"), url.Values{"username": {"admin"}, "password": {"admin-pw"}})

	status, _ := getBody(t, user, ts.URL("/admin/logs/user1/export"))
	require.Equal(t, http.StatusForbidden, status)

	postForm(t, admin, ts.URL("/admin/open"), nil)
	_, body := getBody(t, admin, ts.URL("/"))
	require.Contains(t, body, "<h1>Admin</h1>")
	require.Contains(t, body, `href="/admin/logs/user1"`)

	_, body = getBody(t, admin, ts.URL("/admin/logs/user1"))
	require.Contains(t, body, "Login Success")

	resp, err := admin.Get(ts.URL("/admin/logs/user1/export"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "user1_audit_log.xlsx")

	events, err := sheet.ReadLog(resp.Body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "user1", events[0].Username)
}

type apiResult struct {
	Result json.RawMessage  `json:"result"`
	Error  *transport.Error `json:"error"`
}

type apiClient struct {
	t     *testing.T
	ts    *testserver.TestServer
	token string
}

func (c *apiClient) do(method, path string, body any) (int, apiResult) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.ts.URL(path), reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if c.token == "" {
		c.token = resp.Header.Get(transport.SessionHeader)
	}

	var out apiResult
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

type resultBody struct {
	Session  review.Session `json:"session"`
	Warnings []string       `json:"warnings"`
}

func TestAPI_ReviewFlow(t *testing.T) {
	ts := testserver.New(t, testserver.WithStepping("wrap"))
	c := &apiClient{t: t, ts: ts}

	status, out := c.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, c.token)

	status, out = c.do(http.MethodPost, "/api/login", map[string]string{"username": "user2", "password": "pw2"})
	require.Equal(t, http.StatusOK, status, "%+v", out.Error)
	require.NotEmpty(t, c.token)

	status, _ = c.do(http.MethodPost, "/api/cases/CASE02/open", nil)
	require.Equal(t, http.StatusOK, status)

	status, out = c.do(http.MethodPost, "/api/viewer/phase", map[string]string{"phase": "arterial"})
	require.Equal(t, http.StatusOK, status)

	status, out = c.do(http.MethodPost, "/api/viewer/step", map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, status)
	var res resultBody
	require.NoError(t, json.Unmarshal(out.Result, &res))
	require.Equal(t, 2, res.Session.SliceIndex)

	status, out = c.do(http.MethodPost, "/api/viewer/back", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(out.Result, &res))
	require.Equal(t, review.PageCaseSelection, res.Session.Page)
	require.Empty(t, res.Session.SelectedCase)

	status, out = c.do(http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Cases []review.CaseEntry `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(out.Result, &view))
	require.Len(t, view.Cases, 2)
	require.False(t, view.Cases[1].Done)

	status, _ = c.do(http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, status)
	require.Zero(t, ts.App.Sessions.Len())

	status, out = c.do(http.MethodPost, "/api/cases/CASE01/open", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Zero(t, ts.App.Sessions.Len())
}

func TestAPI_Errors(t *testing.T) {
	ts := testserver.New(t)
	c := &apiClient{t: t, ts: ts}

	status, out := c.do(http.MethodPost, "/api/cases/CASE01/open", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, out.Error)

	status, out = c.do(http.MethodPost, "/api/login", map[string]string{"username": "ghost", "password": "x"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid username or password", out.Error.Message)

	status, _ = c.do(http.MethodPost, "/api/login", map[string]string{"username": "user1", "password": "pw1"})
	require.Equal(t, http.StatusOK, status)

	status, _ = c.do(http.MethodPost, "/api/cases/CASE99/open", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = c.do(http.MethodPost, "/api/viewer/step", map[string]string{"direction": "down"})
	require.Equal(t, http.StatusConflict, status)

	status, _ = c.do(http.MethodPost, "/api/viewer/step", map[string]string{"direction": "left"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(http.MethodPost, "/api/admin/open", nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = c.do(http.MethodPost, "/api/login", map[string]string{"username": "user1", "password": "pw1"})
	require.Equal(t, http.StatusConflict, status)

	events, err := ts.App.Audit.ReadAll(context.Background(), "_unattributed")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "ghost", events[0].Username)
}

func TestHealth(t *testing.T) {
	ts := testserver.New(t)
	resp, err := http.Get(ts.URL("/health"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(string(body), "ok"))
}
