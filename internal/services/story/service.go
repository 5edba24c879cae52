// Package story is the board's write path and read model: every mutation is
// validated against the workflow, committed with its history and event in one
// transaction, and then published to live viewers.
package story

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/history"
	"github.com/jv-vogler/cm42-central/internal/links"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/search"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// Service defines all story-related business operations
type Service interface {
	// Write operations
	CreateStory(ctx context.Context, actor models.Actor, req CreateStoryRequest) (*models.Story, error)
	UpdateStory(ctx context.Context, actor models.Actor, req UpdateStoryRequest) (*models.Story, error)
	EstimateStory(ctx context.Context, actor models.Actor, req EstimateRequest) (*models.Story, error)
	DeleteStory(ctx context.Context, actor models.Actor, req DeleteStoryRequest) error
	Transition(ctx context.Context, actor models.Actor, req TransitionRequest) (*models.Story, error)
	Reorder(ctx context.Context, actor models.Actor, req ReorderRequest) (*models.Story, error)

	// Read operations
	GetStory(ctx context.Context, id types.StoryID) (*models.Story, error)
	Actions(ctx context.Context, id types.StoryID) (workflow.ActionSet, error)
	Board(ctx context.Context, projectID types.ProjectID, filters column.Filters) (*BoardView, error)
	Search(ctx context.Context, projectID types.ProjectID, query string) ([]types.StoryID, error)
	Links(ctx context.Context, id types.StoryID) ([]links.Link, error)
	History(ctx context.Context, id types.StoryID) (iter.Seq[models.HistoryEntry], error)
	Events(ctx context.Context, projectID types.ProjectID, afterSeq types.Seq) ([]events.Event, error)
}

// CreateStoryRequest encapsulates all data needed to create a story
type CreateStoryRequest struct {
	ProjectID   types.ProjectID
	Type        models.StoryType
	Title       string
	Description string
	Notes       string
	Estimate    *int
	State       models.State // optional: unstarted (default) or unscheduled
	Labels      []string
	OwnedBy     *types.UserID
	RequestedBy *types.UserID // defaults to the actor
	ReleaseDate *time.Time
	MutationID  string
}

// UpdateStoryRequest edits fields. Nil pointers mean "leave unchanged"; the Clear
// flags remove optional values. State changes go through Transition.
type UpdateStoryRequest struct {
	StoryID         types.StoryID
	ExpectedVersion int
	Type            *models.StoryType
	Title           *string
	Description     *string
	Notes           *string
	Estimate        *int
	ClearEstimate   bool
	Labels          *[]string
	OwnedBy         *types.UserID
	ClearOwner      bool
	RequestedBy     *types.UserID
	ReleaseDate     *time.Time
	MutationID      string
}

// EstimateRequest is the point selection offered to unestimated features.
type EstimateRequest struct {
	StoryID         types.StoryID
	Points          int
	ExpectedVersion int
	MutationID      string
}

// DeleteStoryRequest removes a story.
type DeleteStoryRequest struct {
	StoryID    types.StoryID
	MutationID string
}

// TransitionRequest applies one workflow action.
type TransitionRequest struct {
	StoryID         types.StoryID
	Action          models.Action
	ExpectedVersion int
	MutationID      string
}

// ReorderRequest places a story in a column between two neighbours. AfterID wins
// over BeforeID; with neither the story goes to the end. An empty Column keeps the
// story in its current column.
type ReorderRequest struct {
	StoryID         types.StoryID
	Column          column.Name
	AfterID         *types.StoryID
	BeforeID        *types.StoryID
	ExpectedVersion int
	MutationID      string
}

// BoardView is one project's board as the store sees it.
type BoardView struct {
	Project models.Project                 `json:"project"`
	Order   []column.Name                  `json:"order"`
	Columns map[column.Name][]models.Story `json:"columns"`
	Delayed map[types.StoryID]bool         `json:"delayed,omitempty"` // releases due before the projected completion
	LastSeq types.Seq                      `json:"last_seq"`
}

// repository defines the data access methods needed by the story service
type repository interface {
	history.Store
	links.Lookup
	Commit(ctx context.Context, fn func(*database.Tx) error) error
	GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error)
	GetStory(ctx context.Context, id types.StoryID) (*models.Story, error)
	ListStories(ctx context.Context, projectID types.ProjectID) ([]models.Story, error)
	EventsSince(ctx context.Context, projectID types.ProjectID, after types.Seq) ([]events.Event, error)
	LastSeq(ctx context.Context, projectID types.ProjectID) (types.Seq, error)
}

// Option configures the service.
type Option func(*service)

// WithProjector supplies the release delay projection.
func WithProjector(p workflow.Projector) Option {
	return func(s *service) { s.projector = p }
}

// WithLinkResolver shares a resolver (and its cache) with other components.
func WithLinkResolver(r *links.Resolver) Option {
	return func(s *service) { s.links = r }
}

// WithMatcher replaces the in-process text matcher used by Search.
func WithMatcher(m search.Matcher) Option {
	return func(s *service) { s.matcher = m }
}

// service implements Service interface
type service struct {
	repo      repository
	sink      events.Sink
	links     *links.Resolver
	projector workflow.Projector
	matcher   search.Matcher
}

// NewService creates a new story service. sink may be nil when no daemon is running.
func NewService(repo repository, sink events.Sink, opts ...Option) Service {
	s := &service{repo: repo, sink: sink}
	for _, opt := range opts {
		opt(s)
	}
	if s.links == nil {
		s.links = links.NewResolver(repo)
	}
	if s.matcher == nil {
		s.matcher = search.NewText()
	}
	return s
}

// ============================================================================
// WRITES
// ============================================================================

// CreateStory handles story creation with validation. New stories go to the end
// of their column.
func (s *service) CreateStory(ctx context.Context, actor models.Actor, req CreateStoryRequest) (*models.Story, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}

	story := models.Story{
		ProjectID:   req.ProjectID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Estimate:    req.Estimate,
		State:       req.State,
		Labels:      req.Labels,
		OwnedBy:     req.OwnedBy,
		RequestedBy: req.RequestedBy,
		ReleaseDate: req.ReleaseDate,
	}
	if story.RequestedBy == nil && actor.ID != 0 {
		id := actor.ID
		story.RequestedBy = &id
	}
	story.Normalize()
	if !story.Type.IsRelease() && story.State != models.StateUnstarted && story.State != models.StateUnscheduled {
		return nil, &models.ValidationError{Field: "state", Message: "new stories start unstarted or unscheduled"}
	}

	var published []events.Event
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		project, err := tx.GetProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if err := story.Validate(project.PointScale); err != nil {
			return err
		}

		stories, err := tx.ListStories(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		story.Rank = endOf(stories, column.Home(story), 0)

		if err := tx.InsertStory(ctx, &story); err != nil {
			return err
		}
		ev, err := record(ctx, tx, events.EventStoryCreated, history.Created(story), story, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	s.publish(ctx, published)
	slog.Info("story created", "story_id", story.ID, "project_id", story.ProjectID, "type", story.Type)
	return &story, nil
}

// UpdateStory applies field edits under the version check.
func (s *service) UpdateStory(ctx context.Context, actor models.Actor, req UpdateStoryRequest) (*models.Story, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}
	if err := requireVersion(req.ExpectedVersion); err != nil {
		return nil, err
	}

	var (
		after     models.Story
		published []events.Event
	)
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		before, err := loadVersion(ctx, tx, req.StoryID, req.ExpectedVersion, false)
		if err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, before.ProjectID)
		if err != nil {
			return err
		}

		after = before.Clone()
		applyEdits(&after, req)
		after.Normalize()
		if err := after.Validate(project.PointScale); err != nil {
			return err
		}

		if column.Home(after) != column.Home(*before) {
			stories, err := tx.ListStories(ctx, after.ProjectID)
			if err != nil {
				return err
			}
			after.Rank = endOf(stories, column.Home(after), after.ID)
		}

		changes := history.Diff(*before, after)
		if len(changes) == 0 {
			// nothing to commit
			return nil
		}
		if err := tx.UpdateStory(ctx, &after, req.ExpectedVersion, false); err != nil {
			return err
		}
		ev, err := record(ctx, tx, events.EventStoryEdited, changes, after, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update story %s: %w", req.StoryID, err)
	}

	s.publish(ctx, published)
	return &after, nil
}

func applyEdits(s *models.Story, req UpdateStoryRequest) {
	if req.Type != nil {
		s.Type = *req.Type
	}
	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.Notes != nil {
		s.Notes = *req.Notes
	}
	switch {
	case req.ClearEstimate:
		s.Estimate = nil
	case req.Estimate != nil:
		v := *req.Estimate
		s.Estimate = &v
	}
	if req.Labels != nil {
		s.Labels = *req.Labels
	}
	switch {
	case req.ClearOwner:
		s.OwnedBy = nil
	case req.OwnedBy != nil:
		v := *req.OwnedBy
		s.OwnedBy = &v
	}
	if req.RequestedBy != nil {
		v := *req.RequestedBy
		s.RequestedBy = &v
	}
	if req.ReleaseDate != nil {
		v := *req.ReleaseDate
		s.ReleaseDate = &v
	}
}

// EstimateStory sets a feature's points, unlocking its workflow actions.
func (s *service) EstimateStory(ctx context.Context, actor models.Actor, req EstimateRequest) (*models.Story, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}
	if err := requireVersion(req.ExpectedVersion); err != nil {
		return nil, err
	}

	var (
		after     models.Story
		published []events.Event
	)
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		before, err := loadVersion(ctx, tx, req.StoryID, req.ExpectedVersion, false)
		if err != nil {
			return err
		}
		if before.Type != models.StoryTypeFeature {
			return &models.ValidationError{Field: "estimate", Message: "only features are estimated"}
		}
		project, err := tx.GetProject(ctx, before.ProjectID)
		if err != nil {
			return err
		}

		after = before.Clone()
		points := req.Points
		after.Estimate = &points
		if err := after.Validate(project.PointScale); err != nil {
			return err
		}

		changes := history.Diff(*before, after)
		if len(changes) == 0 {
			return nil
		}
		if err := tx.UpdateStory(ctx, &after, req.ExpectedVersion, false); err != nil {
			return err
		}
		ev, err := record(ctx, tx, events.EventStoryEdited, changes, after, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate story %s: %w", req.StoryID, err)
	}

	s.publish(ctx, published)
	return &after, nil
}

// DeleteStory removes the story from every column. References to it resolve as
// missing from then on.
func (s *service) DeleteStory(ctx context.Context, actor models.Actor, req DeleteStoryRequest) error {
	if err := actor.RequireWrite(); err != nil {
		return err
	}

	var published []events.Event
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		story, err := tx.GetStory(ctx, req.StoryID)
		if err != nil {
			return err
		}
		if err := tx.DeleteStory(ctx, req.StoryID); err != nil {
			return err
		}
		changes := []history.Change{{Field: "deleted", Old: story.Title, New: ""}}
		ev, err := record(ctx, tx, events.EventStoryDeleted, changes, *story, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", req.StoryID, err)
	}

	s.publish(ctx, published)
	slog.Info("story deleted", "story_id", req.StoryID)
	return nil
}

// Transition applies a workflow action. A version mismatch is reported before the
// action is checked, so the loser of a race always sees a stale transition.
func (s *service) Transition(ctx context.Context, actor models.Actor, req TransitionRequest) (*models.Story, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}
	if err := requireVersion(req.ExpectedVersion); err != nil {
		return nil, err
	}

	var (
		after     models.Story
		published []events.Event
	)
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		before, err := loadVersion(ctx, tx, req.StoryID, req.ExpectedVersion, true)
		if err != nil {
			return err
		}
		next, err := workflow.RequestAction(*before, req.Action)
		if err != nil {
			return err
		}

		after = before.Clone()
		after.State = next
		if column.Home(after) != column.Home(*before) {
			stories, err := tx.ListStories(ctx, after.ProjectID)
			if err != nil {
				return err
			}
			after.Rank = endOf(stories, column.Home(after), after.ID)
		}

		if err := tx.UpdateStory(ctx, &after, req.ExpectedVersion, true); err != nil {
			return err
		}
		ev, err := record(ctx, tx, events.EventStoryTransitioned, history.Diff(*before, after), after, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s story %s: %w", req.Action, req.StoryID, err)
	}

	s.publish(ctx, published)
	slog.Info("story transitioned", "story_id", after.ID, "action", req.Action, "state", after.State)
	return &after, nil
}

// ============================================================================
// READS
// ============================================================================

func (s *service) GetStory(ctx context.Context, id types.StoryID) (*models.Story, error) {
	return s.repo.GetStory(ctx, id)
}

// Actions returns what the story offers its viewer.
func (s *service) Actions(ctx context.Context, id types.StoryID) (workflow.ActionSet, error) {
	story, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return workflow.ActionSet{}, err
	}
	project, err := s.repo.GetProject(ctx, story.ProjectID)
	if err != nil {
		return workflow.ActionSet{}, err
	}
	return workflow.ActionsForStory(*story, project.PointScale), nil
}

// Board partitions the project's stories into columns under filters.
func (s *service) Board(ctx context.Context, projectID types.ProjectID, filters column.Filters) (*BoardView, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	// read the sequence first: anything committed after it will be replayed
	seq, err := s.repo.LastSeq(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stories, err := s.repo.ListStories(ctx, projectID)
	if err != nil {
		return nil, err
	}

	view := &BoardView{
		Project: *project,
		Order:   column.Order(filters),
		Columns: column.Partition(stories, filters),
		LastSeq: seq,
	}
	view.Delayed = s.delayed(ctx, projectID, stories)
	return view, nil
}

func (s *service) delayed(ctx context.Context, projectID types.ProjectID, stories []models.Story) map[types.StoryID]bool {
	if s.projector == nil {
		return nil
	}
	projected, err := s.projector.ProjectedCompletion(ctx, projectID)
	if err != nil {
		slog.Warn("release projection unavailable", "project_id", projectID, "error", err)
		return nil
	}
	out := make(map[types.StoryID]bool)
	for _, st := range stories {
		if workflow.ReleaseDelayed(st, projected) {
			out[st.ID] = true
		}
	}
	return out
}

// Search returns the ids of the project's stories matching query. The result
// feeds column.Filters.SearchResults and is empty, not nil, without hits.
func (s *service) Search(ctx context.Context, projectID types.ProjectID, query string) ([]types.StoryID, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	stories, err := s.repo.ListStories(ctx, projectID)
	if err != nil {
		return nil, err
	}
	hits, err := s.matcher.Match(ctx, query, stories)
	if err != nil {
		return nil, fmt.Errorf("failed to search project %d: %w", projectID, err)
	}
	return hits, nil
}

// Links resolves the references in the story's description.
func (s *service) Links(ctx context.Context, id types.StoryID) ([]links.Link, error) {
	story, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.links.ResolveText(ctx, story.ProjectID, story.Description)
}

// History returns the story's change log, oldest first. Deleted stories keep
// their history.
func (s *service) History(ctx context.Context, id types.StoryID) (iter.Seq[models.HistoryEntry], error) {
	return history.NewTracker(s.repo).HistoryFor(ctx, id)
}

// Events replays committed events after afterSeq.
func (s *service) Events(ctx context.Context, projectID types.ProjectID, afterSeq types.Seq) ([]events.Event, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.EventsSince(ctx, projectID, afterSeq)
}

// ============================================================================
// HELPERS
// ============================================================================

func requireVersion(v int) error {
	if v < 1 {
		return &models.ValidationError{Field: "expected_version", Message: "expected version is required"}
	}
	return nil
}

// loadVersion reads the story and fails fast when the caller's version is stale.
func loadVersion(ctx context.Context, tx *database.Tx, id types.StoryID, expected int, transition bool) (*models.Story, error) {
	story, err := tx.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if story.Version != expected {
		return nil, &models.StaleError{StoryID: id, Expected: expected, Actual: story.Version, Transition: transition}
	}
	return story, nil
}

// record appends the event and its history entries to the open commit. The event
// sequence is stamped on the history so the two can be joined.
func record(ctx context.Context, tx *database.Tx, t events.EventType, changes []history.Change, story models.Story, actor models.Actor, mutationID string) (events.Event, error) {
	ev, err := events.NewStoryEvent(t, story, strings.TrimSpace(mutationID), actor.ID)
	if err != nil {
		return ev, err
	}
	if err := tx.AppendEvent(ctx, &ev); err != nil {
		return ev, err
	}
	if err := history.NewTracker(tx).RecordChanges(ctx, story.ID, changes, actor.ID, ev.SequenceID); err != nil {
		return ev, err
	}
	return ev, nil
}

// publish hands committed events to live viewers. The log already holds them, so
// a failure only delays viewers until they replay.
func (s *service) publish(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		s.links.StoryChanged(ev.StoryID)
		if s.sink == nil {
			continue
		}
		if err := events.PublishWithRetry(ctx, s.sink, ev, 3); err != nil {
			slog.Warn("event not delivered to daemon", "seq", ev.SequenceID, "error", err)
		}
	}
}
