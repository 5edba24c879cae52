package app

import (
	"log/slog"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// Option is a functional option for configuring App initialization
type Option func(*appConfig)

// appConfig holds the configuration for App initialization
type appConfig struct {
	eventClient events.EventPublisher
	relay       *events.RedisRelay
	projector   workflow.Projector
	logger      *slog.Logger
}

// WithEventPublisher sets the event publisher for the application
func WithEventPublisher(ec events.EventPublisher) Option {
	return func(cfg *appConfig) {
		cfg.eventClient = ec
	}
}

// WithRelay publishes committed events straight to Redis. Used when no daemon is
// running; the daemon relays on its own otherwise.
func WithRelay(r *events.RedisRelay) Option {
	return func(cfg *appConfig) {
		cfg.relay = r
	}
}

// WithProjector sets the source of projected completion dates for releases
func WithProjector(p workflow.Projector) Option {
	return func(cfg *appConfig) {
		cfg.projector = p
	}
}

// WithLogger sets the logger for the application
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *appConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
