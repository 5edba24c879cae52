package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv-vogler/cm42-central/internal/app"
	clipkg "github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/testutil/cli"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *clipkg.StatusError
	require.True(t, errors.As(err, &exitErr), "expected *StatusError, got %T: %v", err, err)
	return exitErr.Code
}

func storyFrom(t *testing.T, output string) map[string]any {
	t.Helper()
	result := cli.ParseJSON(t, output)
	require.Equal(t, true, result["success"], output)
	return result["story"].(map[string]any)
}

func id(s *models.Story) string {
	return fmt.Sprintf("%d", s.ID)
}

func columnIDs(t *testing.T, a *app.App, projectID types.ProjectID, name column.Name) []types.StoryID {
	t.Helper()
	view, err := a.StoryService.Board(context.Background(), projectID, column.Filters{})
	require.NoError(t, err)
	var ids []types.StoryID
	for _, s := range view.Columns[name] {
		ids = append(ids, s.ID)
	}
	return ids
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateStory_Positive(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")

	t.Run("Chore in quiet mode", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, CreateCmd(), []string{
			"--project", fmt.Sprintf("%d", projectID),
			"--type", "chore",
			"--title", "Upgrade Go",
			"--quiet",
		})
		require.NoError(t, err)
		assert.Regexp(t, `^\d+$`, strings.TrimSpace(output))

		var title, state string
		err = db.QueryRowContext(context.Background(),
			"SELECT title, state FROM stories WHERE id = ?", strings.TrimSpace(output)).Scan(&title, &state)
		require.NoError(t, err)
		assert.Equal(t, "Upgrade Go", title)
		assert.Equal(t, "unstarted", state)
	})

	t.Run("Estimated feature with labels", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, CreateCmd(), []string{
			"--project", fmt.Sprintf("%d", projectID),
			"--title", "Search",
			"--estimate", "3",
			"--labels", "search, mvp",
			"--json",
		})
		require.NoError(t, err)

		story := storyFrom(t, output)
		assert.Equal(t, "feature", story["story_type"])
		assert.Equal(t, float64(3), story["estimate"])
		assert.Equal(t, []any{"search", "mvp"}, story["labels"])
		assert.Equal(t, float64(1), story["version"])
		assert.Equal(t, float64(config.Default().User.ID), story["requested_by"])
	})

	t.Run("Release with date", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, CreateCmd(), []string{
			"--project", fmt.Sprintf("%d", projectID),
			"--type", "release",
			"--title", "v1.0",
			"--release-date", "2026-12-01",
			"--json",
		})
		require.NoError(t, err)

		story := storyFrom(t, output)
		assert.Equal(t, "release", story["story_type"])
		assert.NotContains(t, story, "state")
		assert.Contains(t, story["release_date"], "2026-12-01")
	})
}

func TestCreateStory_Negative(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := fmt.Sprintf("%d", cli.CreateTestProject(t, db, "Board"))

	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{"unknown type", []string{"--project", projectID, "--title", "X", "--type", "epic"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"estimate off the scale", []string{"--project", projectID, "--title", "X", "--estimate", "4"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"started on creation", []string{"--project", projectID, "--title", "X", "--state", "started"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"release without date", []string{"--project", projectID, "--title", "v2", "--type", "release"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"bad date", []string{"--project", projectID, "--title", "v2", "--type", "release", "--release-date", "soon"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"bad owner", []string{"--project", projectID, "--title", "X", "--owner", "bob"}, "VALIDATION_ERROR", clipkg.ExitValidation},
		{"missing project", []string{"--project", "999", "--title", "X"}, "PROJECT_NOT_FOUND", clipkg.ExitNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := cli.ExecuteCLICommand(t, a, CreateCmd(), append(tt.args, "--json"))
			require.Error(t, err)
			assert.Equal(t, tt.exit, exitCode(t, err))

			result := cli.ParseJSON(t, output)
			assert.Equal(t, false, result["success"])
			assert.Equal(t, tt.code, result["error"].(map[string]any)["code"])
		})
	}
}

func TestCreateStory_ReadOnly(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")

	cfg := config.Default()
	cfg.User.ReadOnly = true

	_, err := cli.ExecuteCLICommandWithConfig(t, context.Background(), a, cfg, CreateCmd(), []string{
		"--project", fmt.Sprintf("%d", projectID),
		"--title", "Nope",
		"--json",
	})
	assert.Equal(t, clipkg.ExitPermission, exitCode(t, err))
}

// ============================================================================
// SHOW / LINKS
// ============================================================================

func TestShowStory(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")

	target := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Login"})
	feature := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{
		ProjectID:   projectID,
		Type:        models.StoryTypeFeature,
		Title:       "Sign up",
		Description: fmt.Sprintf("Needs %s and #999", target.ID),
	})

	t.Run("Unestimated feature offers point selection", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, ShowCmd(), []string{id(feature), "--json"})
		require.NoError(t, err)

		result := cli.ParseJSON(t, output)
		actions := result["actions"].(map[string]any)
		assert.Equal(t, "point_selection", actions["kind"])
		assert.Equal(t, []any{0.0, 1.0, 2.0, 3.0, 5.0, 8.0}, actions["points"])

		refs := result["links"].([]any)
		require.Len(t, refs, 2)
		assert.Equal(t, "Login", refs[0].(map[string]any)["title"])
		assert.Equal(t, true, refs[1].(map[string]any)["missing"])
	})

	t.Run("Chore offers transitions", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, ShowCmd(), []string{"#" + id(target), "--json"})
		require.NoError(t, err)

		actions := cli.ParseJSON(t, output)["actions"].(map[string]any)
		assert.Equal(t, "transitions", actions["kind"])
		assert.Equal(t, []any{"start"}, actions["actions"])
	})

	t.Run("Human readable", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, ShowCmd(), []string{id(feature)})
		require.NoError(t, err)
		assert.Contains(t, output, "Sign up")
		assert.Contains(t, output, "unestimated")
		assert.Contains(t, output, "Login")
	})

	t.Run("Missing story", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, ShowCmd(), []string{"999", "--json"})
		assert.Equal(t, clipkg.ExitNotFound, exitCode(t, err))
	})

	t.Run("Malformed ID", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, ShowCmd(), []string{"abc", "--json"})
		assert.Equal(t, clipkg.ExitUsage, exitCode(t, err))
	})
}

func TestLinks(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	otherID := cli.CreateTestProject(t, db, "Other")

	elsewhere := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: otherID, Title: "Foreign"})
	local := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Local"})
	source := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{
		ProjectID:   projectID,
		Title:       "Source",
		Description: fmt.Sprintf("see %s, %s", local.ID, elsewhere.ID),
	})

	output, err := cli.ExecuteCLICommand(t, a, LinksCmd(), []string{id(source), "--json"})
	require.NoError(t, err)

	refs := cli.ParseJSON(t, output)["links"].([]any)
	require.Len(t, refs, 2)
	assert.Equal(t, "Local", refs[0].(map[string]any)["title"])
	assert.Equal(t, true, refs[1].(map[string]any)["missing"])
	assert.NotContains(t, refs[1].(map[string]any), "title")
}

// ============================================================================
// WORKFLOW
// ============================================================================

func TestEstimateAndTransition(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	feature := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{
		ProjectID: projectID,
		Type:      models.StoryTypeFeature,
		Title:     "Checkout",
	})

	t.Run("Unestimated feature cannot start", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "start", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
		assert.Equal(t, "INVALID_TRANSITION", cli.ParseJSON(t, output)["error"].(map[string]any)["code"])
	})

	t.Run("Estimate off the scale", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, EstimateCmd(), []string{id(feature), "4", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
	})

	t.Run("Estimate then start", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, EstimateCmd(), []string{id(feature), "5", "--json"})
		require.NoError(t, err)
		story := storyFrom(t, output)
		assert.Equal(t, float64(5), story["estimate"])
		assert.Equal(t, float64(2), story["version"])

		output, err = cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "start", "--json"})
		require.NoError(t, err)
		story = storyFrom(t, output)
		assert.Equal(t, "started", story["state"])
		assert.Equal(t, float64(3), story["version"])
	})

	t.Run("Action not offered", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "accept", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
	})

	t.Run("Unknown action", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "dance", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
	})

	t.Run("Stale version", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "finish", "--version", "2", "--json"})
		assert.Equal(t, clipkg.ExitConflict, exitCode(t, err))
		assert.Equal(t, "STALE_TRANSITION", cli.ParseJSON(t, output)["error"].(map[string]any)["code"])

		stored, err := a.StoryService.GetStory(context.Background(), feature.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateStarted, stored.State)
	})

	t.Run("Human readable", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(feature), "finish"})
		require.NoError(t, err)
		assert.Contains(t, output, "finished")
	})
}

// ============================================================================
// UPDATE
// ============================================================================

func TestUpdateStory(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	story := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{
		ProjectID: projectID,
		Title:     "Old title",
		Labels:    []string{"a"},
	})

	t.Run("Only passed flags change", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, UpdateCmd(), []string{
			id(story), "--title", "New title", "--owner", "3", "--json",
		})
		require.NoError(t, err)

		updated := storyFrom(t, output)
		assert.Equal(t, "New title", updated["title"])
		assert.Equal(t, float64(3), updated["owned_by"])
		assert.Equal(t, []any{"a"}, updated["labels"])
		assert.Equal(t, float64(2), updated["version"])
	})

	t.Run("Empty labels clear them", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, UpdateCmd(), []string{id(story), "--labels", "", "--json"})
		require.NoError(t, err)
		assert.NotContains(t, storyFrom(t, output), "labels")
	})

	t.Run("Stale version is a conflict", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, UpdateCmd(), []string{
			id(story), "--title", "Lost", "--version", "1", "--json",
		})
		assert.Equal(t, clipkg.ExitConflict, exitCode(t, err))
		assert.Equal(t, "STALE_VERSION", cli.ParseJSON(t, output)["error"].(map[string]any)["code"])
	})
}

// ============================================================================
// MOVE
// ============================================================================

func TestMoveStory(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	first := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "First"})
	second := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Second"})
	third := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Third"})

	t.Run("Reorder within a column", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, MoveCmd(), []string{id(third), "--after", id(first), "--quiet"})
		require.NoError(t, err)
		assert.Equal(t, []types.StoryID{first.ID, third.ID, second.ID},
			columnIDs(t, a, projectID, column.ChillyBin))
	})

	t.Run("Drop onto in_progress starts the story", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, MoveCmd(), []string{id(second), "--column", "in_progress", "--json"})
		require.NoError(t, err)
		assert.Equal(t, "started", storyFrom(t, output)["state"])
		assert.Equal(t, []types.StoryID{second.ID}, columnIDs(t, a, projectID, column.InProgress))
	})

	t.Run("Search results is not a drop target", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, MoveCmd(), []string{id(first), "--column", "search_results", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
		assert.Equal(t, "INVALID_COLUMN_TARGET", cli.ParseJSON(t, output)["error"].(map[string]any)["code"])
	})

	t.Run("Unknown column", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, MoveCmd(), []string{id(first), "--column", "icebox", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
	})

	t.Run("Bad anchor", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, MoveCmd(), []string{id(first), "--after", "x", "--json"})
		assert.Equal(t, clipkg.ExitValidation, exitCode(t, err))
	})
}

// ============================================================================
// DELETE / HISTORY
// ============================================================================

func TestDeleteStory(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	story := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Doomed"})

	t.Run("Requires --force", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, DeleteCmd(), []string{id(story), "--json"})
		assert.Equal(t, clipkg.ExitUsage, exitCode(t, err))

		_, err = a.StoryService.GetStory(context.Background(), story.ID)
		assert.NoError(t, err)
	})

	t.Run("Deletes", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, DeleteCmd(), []string{id(story), "--force", "--json"})
		require.NoError(t, err)
		assert.Equal(t, float64(story.ID), cli.ParseJSON(t, output)["story_id"])

		_, err = a.StoryService.GetStory(context.Background(), story.ID)
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})

	t.Run("Twice is not found", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, DeleteCmd(), []string{id(story), "--force", "--json"})
		assert.Equal(t, clipkg.ExitNotFound, exitCode(t, err))
	})
}

func TestHistory(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	story := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Tracked"})

	_, err := cli.ExecuteCLICommand(t, a, DoCmd(), []string{id(story), "start", "--quiet"})
	require.NoError(t, err)

	output, err := cli.ExecuteCLICommand(t, a, HistoryCmd(), []string{id(story), "--json"})
	require.NoError(t, err)

	entries := cli.ParseJSON(t, output)["history"].([]any)
	var states []string
	for _, raw := range entries {
		e := raw.(map[string]any)
		if e["field"] == "state" {
			states = append(states, e["old_value"].(string)+"->"+e["new_value"].(string))
		}
	}
	assert.Equal(t, []string{"->unstarted", "unstarted->started"}, states)

	t.Run("Human readable", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, HistoryCmd(), []string{id(story)})
		require.NoError(t, err)
		assert.Contains(t, output, "state")
		assert.Contains(t, output, "started")
	})
}
