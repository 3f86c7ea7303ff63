package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/review"
	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Storage   StorageConfig   `yaml:"storage"`
	Audit     AuditConfig     `yaml:"audit"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Session   SessionConfig   `yaml:"session"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type CatalogConfig struct {
	Root string `yaml:"root"`
}

// StorageConfig selects where credentials, diagnoses and audit logs live.
// The files backend keeps users.xlsx, diagnoses.json and logs/ under Dir.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type AuditConfig struct {
	Scope string `yaml:"scope"`
}

type ViewerConfig struct {
	Stepping string `yaml:"stepping"`
}

type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	// IdleTimeout evicts sessions untouched for this long; 0 keeps them.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: ModeHTTP,
		},
		DB: DBConfig{
			Path: "casereview.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Catalog: CatalogConfig{
			Root: "data",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Dir:     ".",
		},
		Audit: AuditConfig{
			Scope: string(audit.ScopePerUser),
		},
		Viewer: ViewerConfig{
			Stepping: string(review.SteppingClamp),
		},
		Session: SessionConfig{
			CookieName:  "review_session",
			IdleTimeout: review.DefaultIdleTimeout,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("REVIEW_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("REVIEW_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("REVIEW_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REVIEW_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("REVIEW_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if dbPath := os.Getenv("REVIEW_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("REVIEW_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if root := os.Getenv("REVIEW_CATALOG_ROOT"); root != "" {
		cfg.Catalog.Root = root
	}
	if backend := os.Getenv("REVIEW_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dir := os.Getenv("REVIEW_STORAGE_DIR"); dir != "" {
		cfg.Storage.Dir = dir
	}
	if scope := os.Getenv("REVIEW_AUDIT_SCOPE"); scope != "" {
		cfg.Audit.Scope = scope
	}
	if stepping := os.Getenv("REVIEW_VIEWER_STEPPING"); stepping != "" {
		cfg.Viewer.Stepping = stepping
	}
	if idle := os.Getenv("REVIEW_SESSION_IDLE_TIMEOUT"); idle != "" {
		d, err := time.ParseDuration(idle)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REVIEW_SESSION_IDLE_TIMEOUT: %w", err)
		}
		cfg.Session.IdleTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and required fields.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Transport.Mode {
	case ModeHTTP, ModeStdio:
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be %s or %s, got %q", ModeHTTP, ModeStdio, c.Transport.Mode))
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for the sqlite backend"))
		}
	case BackendFiles:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the files backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %s or %s, got %q", BackendSQLite, BackendFiles, c.Storage.Backend))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if c.Catalog.Root == "" {
		errs = append(errs, errors.New("catalog.root is required"))
	}
	if _, err := audit.ParseScope(c.Audit.Scope); err != nil {
		errs = append(errs, fmt.Errorf("audit.scope: %w", err))
	}
	if _, err := review.ParseSteppingMode(c.Viewer.Stepping); err != nil {
		errs = append(errs, fmt.Errorf("viewer.stepping: %w", err))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	if c.Session.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout must not be negative, got %s", c.Session.IdleTimeout))
	}
	return errors.Join(errs...)
}

// UsersPath is the credential workbook of the files backend.
func (c Config) UsersPath() string {
	return filepath.Join(c.Storage.Dir, "users.xlsx")
}

// DiagnosesPath is the diagnosis document of the files backend.
func (c Config) DiagnosesPath() string {
	return filepath.Join(c.Storage.Dir, "diagnoses.json")
}

// LogsDir holds the audit workbooks of the files backend.
func (c Config) LogsDir() string {
	return filepath.Join(c.Storage.Dir, "logs")
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
