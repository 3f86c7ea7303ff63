// Package testserver starts a complete casereview HTTP server for tests.
package testserver

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casereview/internal/app"
	"github.com/rpggio/casereview/internal/config"
	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/mcp"
	"github.com/rpggio/casereview/internal/testutil"
	"github.com/rpggio/casereview/internal/transport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Seeded accounts.
const (
	AdminUser     = "admin"
	AdminPassword = "admin-pw"
	User1         = "user1"
	User1Password = "pw1"
	User2         = "user2"
	User2Password = "pw2"
)

type TestServer struct {
	Server *httptest.Server
	App    *app.App
}

// Option adjusts the configuration before the server starts.
type Option func(*config.Config)

// WithBackend selects the storage backend.
func WithBackend(backend string) Option {
	return func(cfg *config.Config) { cfg.Storage.Backend = backend }
}

// WithAuditScope selects the audit log scope.
func WithAuditScope(scope string) Option {
	return func(cfg *config.Config) { cfg.Audit.Scope = scope }
}

// WithStepping selects the viewer stepping mode.
func WithStepping(mode string) Option {
	return func(cfg *config.Config) { cfg.Viewer.Stepping = mode }
}

// New starts a server over the default test catalog with seeded accounts.
func New(t *testing.T, opts ...Option) *TestServer {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Catalog.Root = testutil.WriteCatalog(t, testutil.DefaultLayout())
	cfg.Storage.Dir = dir
	cfg.DB.Path = filepath.Join(dir, "review.db")
	for _, opt := range opts {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	a.Users.WithCost(bcrypt.MinCost)

	for _, req := range []credential.CreateRequest{
		{Username: AdminUser, Password: AdminPassword, IsAdmin: true},
		{Username: User1, Password: User1Password},
		{Username: User2, Password: User2Password},
	} {
		_, err := a.Users.Create(ctx, req)
		require.NoError(t, err)
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Engine:        a.Engine,
		Sessions:      a.Sessions,
		TransportMode: config.ModeHTTP,
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		nil,
	)

	server := httptest.NewServer(transport.NewServer(a.Engine, a.Sessions, transport.Options{MCP: mcpHandler}))

	t.Cleanup(func() {
		server.Close()
		_ = a.Close()
	})

	return &TestServer{Server: server, App: a}
}

// URL returns the absolute URL of path.
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}

// Browser returns a client with its own cookie jar that does not follow
// redirects, so tests can assert on them.
func (ts *TestServer) Browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
