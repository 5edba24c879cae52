package database

import (
	"context"
	"database/sql"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Repository is the story store. Reads go straight to the database; every write
// goes through Commit so the change, its history, and its event land together.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository instance wrapping the given database connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Commit runs fn in one transaction. Any error rolls everything back.
func (r *Repository) Commit(ctx context.Context, fn func(*Tx) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// CreateProject creates a project with an empty event log.
func (r *Repository) CreateProject(ctx context.Context, name string, scale models.PointScale) (*models.Project, error) {
	var p *models.Project
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		p, err = createProject(ctx, tx, name, scale)
		return err
	})
	return p, err
}

func (r *Repository) GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error) {
	return getProject(ctx, r.db, id)
}

func (r *Repository) ListProjects(ctx context.Context) ([]models.Project, error) {
	return listProjects(ctx, r.db)
}

func (r *Repository) GetStory(ctx context.Context, id types.StoryID) (*models.Story, error) {
	return getStory(ctx, r.db, id)
}

// LookupStory lets the link resolver read stories.
func (r *Repository) LookupStory(ctx context.Context, id types.StoryID) (*models.Story, error) {
	return getStory(ctx, r.db, id)
}

func (r *Repository) ListStories(ctx context.Context, projectID types.ProjectID) ([]models.Story, error) {
	return listStories(ctx, r.db, projectID)
}

func (r *Repository) ListHistory(ctx context.Context, storyID types.StoryID) ([]models.HistoryEntry, error) {
	return listHistory(ctx, r.db, storyID)
}

// AppendHistory writes entries outside of a story commit.
func (r *Repository) AppendHistory(ctx context.Context, entries ...models.HistoryEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return appendHistory(ctx, tx, entries...)
	})
}

// EventsSince returns the project's committed events after seq, oldest first.
func (r *Repository) EventsSince(ctx context.Context, projectID types.ProjectID, after types.Seq) ([]events.Event, error) {
	return eventsSince(ctx, r.db, projectID, after)
}

// LastSeq returns the newest sequence handed out for the project.
func (r *Repository) LastSeq(ctx context.Context, projectID types.ProjectID) (types.Seq, error) {
	return lastSeq(ctx, r.db, projectID)
}

// ============================================================================
// TRANSACTION
// ============================================================================

// Tx is the write side of one commit.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) GetProject(ctx context.Context, id types.ProjectID) (*models.Project, error) {
	return getProject(ctx, t.tx, id)
}

func (t *Tx) GetStory(ctx context.Context, id types.StoryID) (*models.Story, error) {
	return getStory(ctx, t.tx, id)
}

func (t *Tx) ListStories(ctx context.Context, projectID types.ProjectID) ([]models.Story, error) {
	return listStories(ctx, t.tx, projectID)
}

// InsertStory stores s and assigns its id and first version.
func (t *Tx) InsertStory(ctx context.Context, s *models.Story) error {
	return insertStory(ctx, t.tx, s)
}

// UpdateStory writes s when the stored version equals expected. transition marks
// the conflict as a stale transition.
func (t *Tx) UpdateStory(ctx context.Context, s *models.Story, expected int, transition bool) error {
	return updateStory(ctx, t.tx, s, expected, transition)
}

func (t *Tx) DeleteStory(ctx context.Context, id types.StoryID) error {
	return deleteStory(ctx, t.tx, id)
}

func (t *Tx) AppendHistory(ctx context.Context, entries ...models.HistoryEntry) error {
	return appendHistory(ctx, t.tx, entries...)
}

func (t *Tx) ListHistory(ctx context.Context, storyID types.StoryID) ([]models.HistoryEntry, error) {
	return listHistory(ctx, t.tx, storyID)
}

// AppendEvent stores ev and assigns its sequence.
func (t *Tx) AppendEvent(ctx context.Context, ev *events.Event) error {
	return appendEvent(ctx, t.tx, ev)
}
