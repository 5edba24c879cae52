package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jv-vogler/cm42-central/cmd"
	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return cli.ExitError
	}

	// Log to file so the terminal stays clean for command output
	closer, err := logging.Init(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	} else {
		defer func() { _ = closer.Close() }()
	}

	styles.Init(cfg.ColorScheme)

	if err := cmd.Execute(ctx); err != nil {
		var status *cli.StatusError
		if errors.As(err, &status) {
			slog.Debug("command failed", "exit_code", status.Code, "error", status.Err)
			return status.Code
		}
		// cobra's own errors (unknown flag, missing required flag)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitUsage
	}
	return cli.ExitSuccess
}
