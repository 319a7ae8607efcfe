// Package cli implements the kycctl command line: a local verification run
// against the real workflow engine, standalone video analysis and read-only
// store queries.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"kycbuster/internal/app"
	"kycbuster/internal/evidence/analysis"
	"kycbuster/internal/platform/config"
	"kycbuster/internal/platform/database"
	"kycbuster/internal/platform/logger"
	"kycbuster/internal/workflow/capture"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB          string
	DatabaseURL string
	Format      string // "json" | "text"
	Verbose     bool

	// backend and clock are overridden by tests.
	backend analysis.Backend
	clock   capture.Clock
	logOut  io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for kycctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kycctl",
		Short: "kycctl - run and inspect identity verifications",
		Long: `kycctl drives the verification workflow locally and queries the record store.

Analysis settings (ANALYSIS_API_KEY, ANALYSIS_MODEL, ...) are read from the
environment exactly as the server reads them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "kyc.db", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL URL; overrides --db")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewVideoCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	return cmd
}

// openApp builds the core against the store selected by the flags.
func openApp(ctx context.Context, opts *RootOptions, errOut io.Writer) (*app.App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if opts.DatabaseURL != "" {
		cfg.Database = config.Database{Driver: database.DriverPostgres, URL: opts.DatabaseURL}
	} else {
		cfg.Database = config.Database{Driver: database.DriverSQLite, URL: opts.DB}
	}
	// A local run never talks to the idempotency cache or the mirror.
	cfg.Redis = config.RedisConfig{}
	cfg.Mirror = config.Mirror{}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	out := opts.logOut
	if out == nil {
		out = errOut
	}
	log := logger.NewWithWriter(out, level, "text")

	var appOpts []app.Option
	if opts.backend != nil {
		appOpts = append(appOpts, app.WithBackend(opts.backend))
	}
	return app.New(ctx, cfg, log, appOpts...)
}

func (o *RootOptions) captureClock() capture.Clock {
	if o.clock != nil {
		return o.clock
	}
	return capture.RealClock{}
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
