// Package app wires configuration into the services shared by the server,
// the CLI and the terminal UI.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/casereview/internal/config"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/domain/diagnosis"
	"github.com/rpggio/casereview/internal/domain/review"
	"github.com/rpggio/casereview/internal/jsonstore"
	"github.com/rpggio/casereview/internal/sheet"
	"github.com/rpggio/casereview/internal/sqlite"
)

// App holds the constructed services.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Catalog   *catalog.Scanner
	Users     *credential.Service
	Diagnoses *diagnosis.Service
	Audit     *audit.Service
	Engine    *review.Engine
	Sessions  *review.Registry

	closers []func() error
}

// New builds the services for cfg.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	scope, err := audit.ParseScope(cfg.Audit.Scope)
	if err != nil {
		return nil, err
	}
	stepping, err := review.ParseSteppingMode(cfg.Viewer.Stepping)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	var (
		userRepo  credential.Repository
		diagRepo  diagnosis.Repository
		auditRepo audit.Repository
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		if err := ensureDBDir(cfg.DB.Path); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
		db, err := sqlite.New(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.RunMigrations(); err != nil {
			a.Close()
			return nil, err
		}
		userRepo = sqlite.NewUserRepository(db)
		diagRepo = sqlite.NewDiagnosisRepository(db)
		auditRepo = sqlite.NewAuditRepository(db)
	case config.BackendFiles:
		if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
			return nil, fmt.Errorf("prepare storage dir: %w", err)
		}
		userRepo = sheet.NewUserTable(cfg.UsersPath(), logger)
		diagRepo = jsonstore.NewDiagnoses(cfg.DiagnosesPath(), logger)
		auditRepo = sheet.NewAuditLog(cfg.LogsDir(), logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	a.Catalog = catalog.NewScanner(cfg.Catalog.Root, logger)
	a.Users = credential.NewService(userRepo, logger)
	a.Diagnoses = diagnosis.NewService(diagRepo, logger)
	a.Audit = audit.NewService(auditRepo, scope, logger)
	a.Engine = review.NewEngine(a.Catalog, a.Users, a.Diagnoses, a.Audit, review.Options{Stepping: stepping}, logger)
	a.Sessions = review.NewRegistry().WithIdleTimeout(cfg.Session.IdleTimeout)

	if logger != nil {
		logger.Info("services ready",
			"backend", cfg.Storage.Backend,
			"catalog", cfg.Catalog.Root,
			"audit_scope", scope,
			"stepping", stepping,
		)
	}
	return a, nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
