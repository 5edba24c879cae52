package tui

import (
	"context"
	"log/slog"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/links"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// SnapshotMsg carries a full board load.
type SnapshotMsg struct {
	Stories   []models.Story
	Seq       types.Seq
	Projected time.Time // zero when no projection is available
	Err       error
}

// EventMsg carries one live event.
type EventMsg struct {
	Event events.Event
}

// ReplayMsg carries the events fetched to fill a gap. Confirms names a mutation
// the server accepted; whatever the replay holds, its proposal is settled after.
type ReplayMsg struct {
	Events   []events.Event
	Confirms string
	Err      error
}

// StreamClosedMsg reports that the live event stream ended.
type StreamClosedMsg struct{}

// MutationMsg carries the server's answer to a proposal.
type MutationMsg struct {
	MutationID string
	Err        error
}

// LinksMsg carries the resolved references of a story's description.
type LinksMsg struct {
	StoryID types.StoryID
	Links   []links.Link
	Err     error
}

// loadSnapshot reads the sequence before the stories: an event committed in
// between is then re-applied on top, which is harmless. A failing projector only
// loses the delay flags.
func loadSnapshot(ctx context.Context, store Store, projector workflow.Projector, projectID types.ProjectID) tea.Cmd {
	return func() tea.Msg {
		seq, err := store.LastSeq(ctx, projectID)
		if err != nil {
			return SnapshotMsg{Err: err}
		}
		stories, err := store.ListStories(ctx, projectID)
		if err != nil {
			return SnapshotMsg{Err: err}
		}
		msg := SnapshotMsg{Stories: stories, Seq: seq}
		if projector != nil {
			projected, err := projector.ProjectedCompletion(ctx, projectID)
			if err != nil {
				slog.Warn("release projection unavailable", "project_id", projectID, "error", err)
			} else {
				msg.Projected = projected
			}
		}
		return msg
	}
}

// replay fetches the committed events after seq.
func replay(ctx context.Context, store Store, projectID types.ProjectID, after types.Seq) tea.Cmd {
	return func() tea.Msg {
		evs, err := store.EventsSince(ctx, projectID, after)
		return ReplayMsg{Events: evs, Err: err}
	}
}

// confirm replays after seq so an accepted mutation's event reaches the replica
// even without a live stream.
func confirm(ctx context.Context, store Store, projectID types.ProjectID, after types.Seq, mutationID string) tea.Cmd {
	return func() tea.Msg {
		evs, err := store.EventsSince(ctx, projectID, after)
		return ReplayMsg{Events: evs, Confirms: mutationID, Err: err}
	}
}

// mutate runs fn against the server and reports the outcome for mutationID.
func mutate(ctx context.Context, mutationID string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return MutationMsg{MutationID: mutationID, Err: fn(ctx)}
	}
}

// resolveLinks resolves the references in story's description.
func resolveLinks(ctx context.Context, resolver LinkResolver, story models.Story) tea.Cmd {
	return func() tea.Msg {
		resolved, err := resolver.ResolveText(ctx, story.ProjectID, story.Description)
		return LinksMsg{StoryID: story.ID, Links: resolved, Err: err}
	}
}

// listen waits for the next live event. Returns nil if there is no stream.
func listen(ctx context.Context, stream <-chan events.Event) tea.Cmd {
	if stream == nil {
		return nil
	}

	return func() tea.Msg {
		select {
		case event, ok := <-stream:
			if !ok {
				// Channel closed, connection lost
				return StreamClosedMsg{}
			}
			return EventMsg{Event: event}
		case <-ctx.Done():
			return nil
		}
	}
}
