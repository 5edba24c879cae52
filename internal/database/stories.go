package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

const storyColumns = `id, project_id, story_type, title, description, notes, estimate, state, labels,
	owned_by, requested_by, release_date, rank, version, created_at, updated_at`

func scanStory(row rowScanner) (models.Story, error) {
	var (
		s                    models.Story
		storyType, state     string
		labels               string
		estimate             sql.NullInt64
		ownedBy, requestedBy sql.NullInt64
		releaseDate          sql.NullTime
	)
	err := row.Scan(&s.ID, &s.ProjectID, &storyType, &s.Title, &s.Description, &s.Notes,
		&estimate, &state, &labels, &ownedBy, &requestedBy, &releaseDate,
		&s.Rank, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Type = models.StoryType(storyType)
	s.State = models.State(state)
	s.Labels = models.ParseLabels(labels)
	s.Estimate = nullInt64ToPtr(estimate)
	s.OwnedBy = nullInt64ToUser(ownedBy)
	s.RequestedBy = nullInt64ToUser(requestedBy)
	s.ReleaseDate = nullTimeToPtr(releaseDate)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func getStory(ctx context.Context, q querier, id types.StoryID) (*models.Story, error) {
	s, err := scanStory(q.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id.ToInt()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("story %s: %w", id, models.ErrStoryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return &s, nil
}

// listStories returns a project's stories in global rank order.
func listStories(ctx context.Context, q querier, projectID types.ProjectID) ([]models.Story, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE project_id = ? ORDER BY rank, created_at, id`,
		projectID.ToInt())
	if err != nil {
		return nil, fmt.Errorf("failed to query stories for project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	var out []models.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stories: %w", err)
	}
	return out, nil
}

// insertStory stores s and fills in its id. The version starts at 1.
func insertStory(ctx context.Context, q querier, s *models.Story) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Version = 1

	res, err := q.ExecContext(ctx,
		`INSERT INTO stories (project_id, story_type, title, description, notes, estimate, state, labels,
			owned_by, requested_by, release_date, rank, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID.ToInt(), string(s.Type), s.Title, s.Description, s.Notes,
		intPtrArg(s.Estimate), string(s.State), models.JoinLabels(s.Labels),
		userPtrArg(s.OwnedBy), userPtrArg(s.RequestedBy), timePtrArg(s.ReleaseDate),
		s.Rank, s.Version, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert story %q: %w", s.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get story ID after insert: %w", err)
	}
	s.ID = types.StoryID(id)
	return nil
}

// updateStory writes s if its stored version still equals expected, then bumps
// s.Version. A mismatch is a *models.StaleError carrying the current version.
func updateStory(ctx context.Context, q querier, s *models.Story, expected int, transition bool) error {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx,
		`UPDATE stories SET story_type = ?, title = ?, description = ?, notes = ?, estimate = ?,
			state = ?, labels = ?, owned_by = ?, requested_by = ?, release_date = ?, rank = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(s.Type), s.Title, s.Description, s.Notes, intPtrArg(s.Estimate),
		string(s.State), models.JoinLabels(s.Labels), userPtrArg(s.OwnedBy), userPtrArg(s.RequestedBy),
		timePtrArg(s.ReleaseDate), s.Rank, now, s.ID.ToInt(), expected)
	if err != nil {
		return fmt.Errorf("failed to update story %s: %w", s.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of story %s: %w", s.ID, err)
	}
	if n == 0 {
		current, err := getStory(ctx, q, s.ID)
		if err != nil {
			return err
		}
		return &models.StaleError{StoryID: s.ID, Expected: expected, Actual: current.Version, Transition: transition}
	}

	s.Version = expected + 1
	s.UpdatedAt = now
	return nil
}

func deleteStory(ctx context.Context, q querier, id types.StoryID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id.ToInt())
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete of story %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("story %s: %w", id, models.ErrStoryNotFound)
	}
	return nil
}
