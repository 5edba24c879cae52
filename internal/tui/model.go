// Package tui is the live board viewer behind `central watch`. It keeps a board
// replica in step with the event stream and redraws it as events arrive. Writes
// made from the viewer show up at once as proposals and are confirmed or rolled
// back when the server answers.
package tui

import (
	"context"
	"log/slog"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/jv-vogler/cm42-central/internal/board"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/links"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/search"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// Store is the read side the viewer loads snapshots and replays from.
// *database.Repository satisfies it.
type Store interface {
	ListStories(ctx context.Context, projectID types.ProjectID) ([]models.Story, error)
	LastSeq(ctx context.Context, projectID types.ProjectID) (types.Seq, error)
	EventsSince(ctx context.Context, projectID types.ProjectID, after types.Seq) ([]events.Event, error)
}

// Writer is the write side the viewer sends mutations to. storyservice.Service
// satisfies it.
type Writer interface {
	Transition(ctx context.Context, actor models.Actor, req storyservice.TransitionRequest) (*models.Story, error)
	Reorder(ctx context.Context, actor models.Actor, req storyservice.ReorderRequest) (*models.Story, error)
	EstimateStory(ctx context.Context, actor models.Actor, req storyservice.EstimateRequest) (*models.Story, error)
}

// LinkResolver resolves the story references in a description.
// *links.Resolver satisfies it.
type LinkResolver interface {
	ResolveText(ctx context.Context, projectID types.ProjectID, text string) ([]links.Link, error)
}

// Connection describes how live events reach the viewer.
type Connection int

const (
	Offline Connection = iota
	Live
	Lost
)

func (c Connection) String() string {
	switch c {
	case Live:
		return "live"
	case Lost:
		return "disconnected"
	}
	return "offline"
}

// Model represents the viewer state
type Model struct {
	ctx     context.Context
	store   Store
	project models.Project
	stream  <-chan events.Event // nil when running without live updates

	writer    Writer // nil for a read-only viewer
	actor     models.Actor
	resolver  LinkResolver
	projector workflow.Projector
	matcher   search.Matcher
	query     string

	board      *board.Board
	observers  []board.Observer
	visibility *column.Visibility
	filters    column.Filters
	keys       keyMap

	selectedColumn int
	selectedStory  int
	width, height  int
	showHelp       bool
	showStory      bool
	connection     Connection
	notice         string
	err            error

	projected time.Time // zero without a projection
	links     []links.Link
	linksFor  types.StoryID
	linksErr  error
}

// Option configures the Model.
type Option func(*Model)

// WithStream feeds live events into the viewer.
func WithStream(stream <-chan events.Event) Option {
	return func(m *Model) {
		m.stream = stream
		if stream != nil {
			m.connection = Live
		}
	}
}

// WithLabels opens the viewer with epic filter columns for labels.
func WithLabels(labels []string) Option {
	return func(m *Model) { m.filters.Labels = labels }
}

// WithObserver registers an observer on the replica.
func WithObserver(o board.Observer) Option {
	return func(m *Model) { m.observers = append(m.observers, o) }
}

// WithWriter lets the viewer change stories as actor.
func WithWriter(w Writer, actor models.Actor) Option {
	return func(m *Model) {
		m.writer = w
		m.actor = actor
	}
}

// WithLinks resolves the references shown in the story detail view.
func WithLinks(r LinkResolver) Option {
	return func(m *Model) { m.resolver = r }
}

// WithProjector flags releases due before the projected completion.
func WithProjector(p workflow.Projector) Option {
	return func(m *Model) { m.projector = p }
}

// WithSearch opens the viewer with a search results column for query. The hits
// are recomputed as the board changes.
func WithSearch(query string, matcher search.Matcher) Option {
	return func(m *Model) {
		m.query = query
		m.matcher = matcher
		m.filters.SearchResults = []types.StoryID{}
		m.visibility.Show(column.SearchResults)
	}
}

// New creates the viewer model for project.
func New(ctx context.Context, store Store, project models.Project, cfg *config.Config, opts ...Option) *Model {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Model{
		ctx:        ctx,
		store:      store,
		project:    project,
		visibility: column.NewVisibility(),
		keys:       newKeyMap(cfg.KeyMappings),
	}
	for _, opt := range opts {
		opt(m)
	}

	boardOpts := []board.Option{board.WithRejectHandler(m.rejected)}
	for _, o := range m.observers {
		boardOpts = append(boardOpts, board.WithObserver(o))
	}
	m.board = board.New(project.ID, boardOpts...)
	return m
}

// Init loads the first snapshot and starts listening.
// Required by tea.Model interface
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), listen(m.ctx, m.stream))
}

func (m *Model) load() tea.Cmd {
	return loadSnapshot(m.ctx, m.store, m.projector, m.project.ID)
}

// rejected runs inside Update when the server refuses a proposal.
func (m *Model) rejected(mutationID string, err error) {
	slog.Warn("change rolled back", "mutation_id", mutationID, "error", err)
	m.notice = "Change rolled back: " + err.Error()
}

// refreshSearch recomputes the search hits against confirmed state.
func (m *Model) refreshSearch() {
	if m.matcher == nil {
		return
	}
	hits, err := m.matcher.Match(m.ctx, m.query, m.board.Stories())
	if err != nil {
		slog.Warn("search failed", "query", m.query, "error", err)
		return
	}
	m.filters.SearchResults = hits
}

// Board returns the replica the viewer draws.
func (m *Model) Board() *board.Board { return m.board }

// Connection reports the live-update status.
func (m *Model) Connection() Connection { return m.connection }

// partition is what the viewer draws: confirmed state with pending proposals on top.
func (m *Model) partition() map[column.Name][]models.Story {
	return m.board.Optimistic(m.filters)
}

// columns returns every column name under the active filters, hidden ones included.
func (m *Model) columns() []column.Name {
	return column.Order(m.filters)
}

// currentColumn returns the selected column name
func (m *Model) currentColumn() column.Name {
	cols := m.columns()
	if len(cols) == 0 {
		return ""
	}
	if m.selectedColumn >= len(cols) {
		m.selectedColumn = len(cols) - 1
	}
	return cols[m.selectedColumn]
}

// currentStory returns the selected story, if any.
func (m *Model) currentStory() (models.Story, bool) {
	name := m.currentColumn()
	if m.visibility.Hidden(name) {
		return models.Story{}, false
	}
	stories := m.partition()[name]
	if len(stories) == 0 {
		return models.Story{}, false
	}
	if m.selectedStory >= len(stories) {
		m.selectedStory = len(stories) - 1
	}
	return stories[m.selectedStory], true
}
