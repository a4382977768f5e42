// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup and the database connection
// so every command starts from the same state.
package appctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/usageadm/internal/config"
	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/logging"
	"github.com/lherron/usageadm/internal/retry"
)

// ErrSetup marks failures that happen before any command work starts:
// bad configuration, a missing connection target or an unreachable database.
var ErrSetup = errors.New("setup failed")

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration, with flag overrides applied
	Config *config.Config

	// Conns owns the database connection (nil if NeedsDB is false)
	Conns *db.Manager

	// Logger writes to the command's stderr
	Logger *logrus.Logger
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Conns != nil {
		if err := a.Conns.Close(); err != nil {
			a.Logger.WithError(err).Debug("Error closing database connection")
		}
		a.Conns = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to connect to the database.
	NeedsDB bool

	// Open dials the database; nil uses the configured engine and URL.
	Open db.Opener
}

// DefaultOptions returns default options (DB required).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The connection is released when the wrapped function returns, whatever
// the outcome.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load config: %v", ErrSetup, err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	app.Config = cfg

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	app.Logger = logger

	if opts.NeedsDB {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSetup, err)
		}
		engine, err := db.ParseEngine(cfg.Engine)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSetup, err)
		}

		open := opts.Open
		if open == nil {
			open = db.OpenerFor(engine, cfg.DatabaseURL)
		}
		app.Conns = db.NewManager(open, logging.Module(logger, "db"))

		// Connect up front so an unreachable database fails before any work.
		// A refused connection is retried; a bad target fails at once.
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		err = retry.WithBackoff(ctx, app.RetryConfig(), logging.Module(logger, "appctx"), "connect", func() error {
			_, err := app.Conns.Acquire(ctx)
			return err
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("%w: %v", ErrSetup, err)
		}
	}

	return app, nil
}

// RetryConfig returns the backoff used for connectivity failures
func (a *App) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = a.Config.RetryMax
	cfg.InitialDelay = a.Config.RetryInitialDelay
	cfg.Retryable = db.IsConnectivityError
	return cfg
}

// applyFlags copies --db-url, --engine, --log-level and --log-format onto cfg
// when they were set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"db-url":     &cfg.DatabaseURL,
		"engine":     &cfg.Engine,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
	}
	for name, target := range overrides {
		if f := cmd.Flag(name); f != nil {
			if v := f.Value.String(); v != "" {
				*target = v
			}
		}
	}
}
