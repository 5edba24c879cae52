package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/daemon"
	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/logging"
)

func main() {
	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The daemon logs to stderr; systemd collects it
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(cfg.LogLevel),
	})))

	// Ensure the data directory exists with secure permissions
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		slog.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// The event log backs replay requests from viewers that fell behind
	db, err := database.InitDB(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	opts := []daemon.Option{
		daemon.WithBuffers(cfg.Daemon.BroadcastBuffer, cfg.Daemon.ClientBuffer),
		daemon.WithPingInterval(cfg.Daemon.PingInterval),
		daemon.WithLogReader(database.NewRepository(db)),
	}

	if cfg.RedisURL != "" {
		relay, err := events.NewRedisRelay(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis relay disabled", "error", err)
		} else {
			defer func() { _ = relay.Close() }()
			opts = append(opts, daemon.WithRelay(relay))
		}
	}

	server, err := daemon.NewServer(cfg.SocketPath, opts...)
	if err != nil {
		slog.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}

	slog.Info("central daemon starting", "socket_path", cfg.SocketPath, "pid", os.Getpid(), "relay", cfg.RedisURL != "")

	// Start the daemon (blocks until shutdown)
	if err := server.Start(ctx); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}

	snap := server.Metrics().GetSnapshot()
	slog.Info("central daemon shutting down gracefully",
		"uptime", snap.Uptime,
		"events_broadcast", snap.EventsBroadcast,
		"events_dropped", snap.EventsDropped,
		"replays_served", snap.ReplaysServed,
		"relay_failures", snap.RelayFailures)
}
