// Package launcher starts the live board viewer: it finds a source of live
// events, builds the viewer and runs it until the user quits or ctx ends.
package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/jv-vogler/cm42-central/internal/app"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/search"
	"github.com/jv-vogler/cm42-central/internal/tui"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Source names where a viewer's live events come from.
type Source string

const (
	SourceNone   Source = "none"
	SourceDaemon Source = "daemon"
	SourceRedis  Source = "redis"
)

// Stream is an open feed of one project's events.
type Stream struct {
	Events <-chan events.Event // nil for SourceNone
	Source Source
	closer io.Closer
}

// Close releases the connection behind the stream.
func (s *Stream) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenStream subscribes to projectID's events. The daemon is tried first; without
// one the Redis relay is used when configured. Neither being reachable is not an
// error: the viewer then runs without live updates.
func OpenStream(ctx context.Context, cfg *config.Config, projectID types.ProjectID) *Stream {
	s, err := openDaemon(ctx, cfg, projectID)
	if err == nil {
		return s
	}
	daemonErr := events.ClassifyDaemonError(err)
	slog.Warn("live updates via daemon unavailable", "message", daemonErr.Message, "hint", daemonErr.Hint)

	if cfg.RedisURL != "" {
		s, err = openRedis(ctx, cfg.RedisURL, projectID)
		if err == nil {
			return s
		}
		slog.Warn("live updates via redis unavailable", "error", err)
	}

	slog.Info("continuing without live updates", "project_id", projectID)
	return &Stream{Source: SourceNone}
}

func openDaemon(ctx context.Context, cfg *config.Config, projectID types.ProjectID) (*Stream, error) {
	client, err := events.NewClient(cfg.SocketPath, events.WithDebounce(cfg.Daemon.Debounce))
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Subscribe(projectID); err != nil {
		_ = client.Close()
		return nil, err
	}
	ch, err := client.Listen(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Stream{Events: ch, Source: SourceDaemon, closer: client}, nil
}

func openRedis(ctx context.Context, redisURL string, projectID types.ProjectID) (*Stream, error) {
	relay, err := events.NewRedisRelay(redisURL)
	if err != nil {
		return nil, err
	}
	ch, err := relay.Subscribe(ctx, projectID)
	if err != nil {
		_ = relay.Close()
		return nil, err
	}
	return &Stream{Events: ch, Source: SourceRedis, closer: relay}, nil
}

// View holds the filters the viewer opens with.
type View struct {
	Labels    []string
	Search    string
	Searching bool // an empty Search still shows the column when set
}

// Options returns the viewer options for application. Writes go through the story
// service as the configured actor; link states and release projections come from
// the same application.
func Options(application *app.App, cfg *config.Config, stream *Stream, view View) []tui.Option {
	opts := []tui.Option{
		tui.WithStream(stream.Events),
		tui.WithLabels(view.Labels),
		tui.WithObserver(application.Links),
		tui.WithLinks(application.Links),
		tui.WithWriter(application.StoryService, cfg.Actor()),
	}
	if p := application.Projector(); p != nil {
		opts = append(opts, tui.WithProjector(p))
	}
	if view.Searching || view.Search != "" {
		opts = append(opts, tui.WithSearch(view.Search, search.NewText()))
	}
	return opts
}

// Watch runs the viewer for project on the terminal.
func Watch(ctx context.Context, application *app.App, cfg *config.Config, project models.Project, view View) error {
	stream := OpenStream(ctx, cfg, project.ID)
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Error("error closing event stream", "error", err)
		}
	}()

	model := tui.New(ctx, application.Repo(), project, cfg, Options(application, cfg, stream, view)...)

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			slog.Info("shutdown signal received, viewer stopped")
			return nil
		}
		return fmt.Errorf("error running viewer: %w", err)
	}
	return nil
}
