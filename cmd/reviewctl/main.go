// Command reviewctl administers a casereview installation: accounts, audit
// logs, the case catalog and saved diagnoses. It also runs the terminal UI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpggio/casereview/internal/app"
	"github.com/rpggio/casereview/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	catalog    string
	backend    string
	storageDir string
	dbPath     string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Administer a casereview installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default: $REVIEW_CONFIG_PATH)")
	flags.StringVar(&opts.catalog, "catalog", "", "Case catalog root directory")
	flags.StringVar(&opts.backend, "backend", "", "Storage backend: sqlite or files")
	flags.StringVar(&opts.storageDir, "storage-dir", "", "Directory of the files backend")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path")
	flags.StringVarP(&opts.output, "output", "o", formatTable, "Output format: table, json or yaml")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newUsersCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newCatalogCmd(opts))
	cmd.AddCommand(newDiagnosesCmd(opts))
	cmd.AddCommand(newTUICmd(opts))
	return cmd
}

// openApp loads configuration with flag overrides and builds the services.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	if opts.configPath != "" {
		if err := os.Setenv("REVIEW_CONFIG_PATH", opts.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if opts.catalog != "" {
		cfg.Catalog.Root = opts.catalog
	}
	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}
	if opts.storageDir != "" {
		cfg.Storage.Dir = opts.storageDir
	}
	if opts.dbPath != "" {
		cfg.DB.Path = opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errWriter(cmd), &slog.HandlerOptions{Level: level}))
	return app.New(cfg, logger)
}

func errWriter(cmd *cobra.Command) io.Writer {
	return cmd.ErrOrStderr()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
