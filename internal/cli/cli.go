// Package cli holds the shared plumbing of the central command line: the app
// container each command runs against, output formatting, and exit codes.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/app"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
)

// CLI represents the CLI application context
type CLI struct {
	App    *app.App // Application container with services
	Config *config.Config

	db    *sql.DB // nil when the app was injected
	owned bool
}

type contextKey struct{}

type injected struct {
	app *app.App
	cfg *config.Config
}

// WithApp returns a context carrying an existing app. Commands run against it
// instead of opening the configured database; tests use this to inject an
// in-memory app. cfg may be nil.
func WithApp(ctx context.Context, a *app.App, cfg *config.Config) context.Context {
	return context.WithValue(ctx, contextKey{}, injected{app: a, cfg: cfg})
}

// GetCLIFromContext returns the CLI for a command: the injected app when the
// context carries one, otherwise a fresh NewCLI.
func GetCLIFromContext(ctx context.Context) (*CLI, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if inj, ok := ctx.Value(contextKey{}).(injected); ok && inj.app != nil {
		cfg := inj.cfg
		if cfg == nil {
			cfg = config.Default()
		}
		return &CLI{App: inj.app, Config: cfg}, nil
	}
	return NewCLI(ctx)
}

// NewCLI initializes the CLI with database and optional daemon connection
func NewCLI(ctx context.Context) (*CLI, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize database
	db, err := database.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var opts []app.Option

	// Try to connect to daemon (optional - silent fallback)
	client, err := events.NewClient(cfg.SocketPath, events.WithDebounce(cfg.Daemon.Debounce))
	if err == nil {
		// If it fails, daemon isn't running (graceful degradation)
		if err := client.Connect(ctx); err == nil {
			opts = append(opts, app.WithEventPublisher(client))
		} else {
			slog.Debug("daemon not available", "socket", cfg.SocketPath, "error", err)
		}
	}

	// Without a daemon, committed events go straight to Redis when configured
	if len(opts) == 0 && cfg.RedisURL != "" {
		relay, err := events.NewRedisRelay(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis relay disabled", "error", err)
		} else {
			opts = append(opts, app.WithRelay(relay))
		}
	}

	return &CLI{
		App:    app.New(db, opts...),
		Config: cfg,
		db:     db,
		owned:  true,
	}, nil
}

// Actor returns the configured user.
func (c *CLI) Actor() models.Actor {
	return c.Config.Actor()
}

// Close cleans up CLI resources. An injected app is left open for its owner.
func (c *CLI) Close() error {
	if !c.owned {
		return nil
	}
	err := c.App.Close()
	if c.db != nil {
		if dbErr := c.db.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}
	return err
}

// Run opens the CLI for cmd, hands it to fn together with the command's
// formatter, and closes it afterwards.
func Run(cmd *cobra.Command, fn func(ctx context.Context, c *CLI, f *OutputFormatter) error) error {
	ctx := cmd.Context()
	formatter := NewFormatter(cmd)

	cliInstance, err := GetCLIFromContext(ctx)
	if err != nil {
		if fmtErr := formatter.Error("INITIALIZATION_ERROR", err.Error()); fmtErr != nil {
			slog.Error("failed to format error message", "error", fmtErr)
		}
		return &StatusError{Code: ExitError, Err: err}
	}
	defer func() {
		if err := cliInstance.Close(); err != nil {
			slog.Error("failed to close CLI", "error", err)
		}
	}()

	return fn(ctx, cliInstance, formatter)
}
