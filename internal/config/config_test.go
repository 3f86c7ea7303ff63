package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REVIEW_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, "clamp", cfg.Viewer.Stepping)
	require.Equal(t, "per_user", cfg.Audit.Scope)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  backend: files
  dir: /srv/review
audit:
  scope: global
viewer:
  stepping: wrap
session:
  idle_timeout: 45m
`), 0o644))

	t.Setenv("REVIEW_CONFIG_PATH", path)
	t.Setenv("REVIEW_SERVER_PORT", "9191")
	t.Setenv("REVIEW_CATALOG_ROOT", "/srv/data")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, BackendFiles, cfg.Storage.Backend)
	require.Equal(t, "global", cfg.Audit.Scope)
	require.Equal(t, "wrap", cfg.Viewer.Stepping)
	require.Equal(t, "/srv/data", cfg.Catalog.Root)
	require.Equal(t, 45*time.Minute, cfg.Session.IdleTimeout)
	require.Equal(t, filepath.Join("/srv/review", "users.xlsx"), cfg.UsersPath())
	require.Equal(t, filepath.Join("/srv/review", "diagnoses.json"), cfg.DiagnosesPath())
	require.Equal(t, filepath.Join("/srv/review", "logs"), cfg.LogsDir())
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	t.Setenv("REVIEW_SERVER_PORT", "eighty")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_IdleTimeoutEnv(t *testing.T) {
	t.Setenv("REVIEW_CONFIG_PATH", "")
	t.Setenv("REVIEW_SESSION_IDLE_TIMEOUT", "2h")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, cfg.Session.IdleTimeout)

	t.Setenv("REVIEW_SESSION_IDLE_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("REVIEW_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Audit.Scope = "team"
	cfg.Viewer.Stepping = "bounce"
	cfg.Transport.Mode = "grpc"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "audit.scope")
	require.Contains(t, err.Error(), "viewer.stepping")
	require.Contains(t, err.Error(), "transport.mode")

	cfg = Default()
	cfg.Storage.Backend = BackendFiles
	cfg.Storage.Dir = ""
	require.ErrorContains(t, cfg.Validate(), "storage.dir")
}
