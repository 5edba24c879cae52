package app

import (
	"database/sql"
	"log/slog"

	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/links"
	projectservice "github.com/jv-vogler/cm42-central/internal/services/project"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// App holds all application services and provides dependency injection.
// This is the main application container that manages service lifecycles.
type App struct {
	// Repository layer (direct database access)
	repo *database.Repository

	// Event system for live updates
	eventClient events.EventPublisher
	relay       *events.RedisRelay
	projector   workflow.Projector

	// Links is shared by the story service and any board replica in the process.
	Links *links.Resolver

	// Service layer (business logic)
	StoryService   storyservice.Service
	ProjectService projectservice.Service
}

// New creates a new App with all services initialized.
// This is the single entry point for creating the application container.
func New(db *sql.DB, opts ...Option) *App {
	cfg := &appConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	repo := database.NewRepository(db)
	resolver := links.NewResolver(repo)

	var sinks events.Fanout
	if cfg.eventClient != nil {
		sinks = append(sinks, cfg.eventClient)
	}
	if cfg.relay != nil {
		sinks = append(sinks, cfg.relay)
	}
	var sink events.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	storyOpts := []storyservice.Option{storyservice.WithLinkResolver(resolver)}
	if cfg.projector != nil {
		storyOpts = append(storyOpts, storyservice.WithProjector(cfg.projector))
	}

	cfg.logger.Debug("app initialized",
		"daemon", cfg.eventClient != nil,
		"relay", cfg.relay != nil)

	return &App{
		repo:           repo,
		eventClient:    cfg.eventClient,
		relay:          cfg.relay,
		projector:      cfg.projector,
		Links:          resolver,
		StoryService:   storyservice.NewService(repo, sink, storyOpts...),
		ProjectService: projectservice.NewService(repo),
	}
}

// Repo returns the underlying repository for direct database access.
// The daemon uses it as its replay log.
func (a *App) Repo() *database.Repository {
	return a.repo
}

// EventClient returns the daemon connection, or nil when none is running.
func (a *App) EventClient() events.EventPublisher {
	return a.eventClient
}

// Projector returns the release projection source, or nil when none was set.
func (a *App) Projector() workflow.Projector {
	return a.projector
}

// Close releases the daemon connection and the relay. The database belongs to the
// caller.
func (a *App) Close() error {
	var first error
	if a.eventClient != nil {
		if err := a.eventClient.Close(); err != nil {
			first = err
		}
	}
	if a.relay != nil {
		if err := a.relay.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
