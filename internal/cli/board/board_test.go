package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clipkg "github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/testutil/cli"
	"github.com/jv-vogler/cm42-central/internal/types"
)

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *clipkg.StatusError
	require.True(t, errors.As(err, &exitErr), "expected *StatusError, got %T: %v", err, err)
	return exitErr.Code
}

func titles(t *testing.T, column any) []string {
	t.Helper()
	var out []string
	for _, s := range column.([]any) {
		out = append(out, s.(map[string]any)["title"].(string))
	}
	return out
}

// ============================================================================
// BOARD
// ============================================================================

func TestBoard(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	pid := fmt.Sprintf("%d", projectID)

	cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Backlog", Labels: []string{"auth"}})
	started := cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: "Working"})
	_, err := a.StoryService.Transition(context.Background(), cli.Writer, storyservice.TransitionRequest{
		StoryID:         started.ID,
		Action:          models.ActionStart,
		ExpectedVersion: started.Version,
	})
	require.NoError(t, err)

	t.Run("JSON groups stories by column", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid, "--json"})
		require.NoError(t, err)

		result := cli.ParseJSON(t, output)
		require.Equal(t, true, result["success"])
		board := result["board"].(map[string]any)
		columns := board["columns"].(map[string]any)
		assert.Equal(t, []string{"Backlog"}, titles(t, columns["chilly_bin"]))
		assert.Equal(t, []string{"Working"}, titles(t, columns["in_progress"]))
		assert.Equal(t, []any{"chilly_bin", "in_progress", "done"}, board["order"])
		assert.Equal(t, float64(3), board["last_seq"])
	})

	t.Run("Epic columns by label", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid, "--label", "auth", "--json"})
		require.NoError(t, err)

		board := cli.ParseJSON(t, output)["board"].(map[string]any)
		assert.Equal(t, []any{"epic_auth"}, board["order"])
		assert.Equal(t, []string{"Backlog"}, titles(t, board["columns"].(map[string]any)["epic_auth"]))
	})

	t.Run("Search results column", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid, "--search", "work", "--json"})
		require.NoError(t, err)

		board := cli.ParseJSON(t, output)["board"].(map[string]any)
		assert.Equal(t, []any{"chilly_bin", "in_progress", "done", "search_results"}, board["order"])
		assert.Equal(t, []string{"Working"}, titles(t, board["columns"].(map[string]any)["search_results"]))
	})

	t.Run("Search without hits keeps the column", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid, "--search", "nothing", "--quiet"})
		require.NoError(t, err)
		assert.Contains(t, output, "search_results\t0\n")
	})

	t.Run("Quiet prints counts", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid, "--quiet"})
		require.NoError(t, err)
		assert.Equal(t, "chilly_bin\t1\nin_progress\t1\ndone\t0\n", output)
	})

	t.Run("Human output", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", pid})
		require.NoError(t, err)
		assert.Contains(t, output, "Board")
		assert.Contains(t, output, "Working")
		assert.Contains(t, output, "No stories")
	})
}

func TestBoard_Negative(t *testing.T) {
	_, a := cli.SetupCLITest(t)

	t.Run("Missing project", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", "999", "--json"})
		require.Error(t, err)
		assert.Equal(t, clipkg.ExitNotFound, exitCode(t, err))
		assert.Equal(t, "PROJECT_NOT_FOUND", cli.ParseJSON(t, output)["error"].(map[string]any)["code"])
	})

	t.Run("Zero project", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--project", "0", "--json"})
		assert.Equal(t, clipkg.ExitUsage, exitCode(t, err))
	})

	t.Run("Project flag is required", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, BoardCmd(), []string{"--json"})
		assert.Error(t, err)
	})
}

// ============================================================================
// EVENTS
// ============================================================================

func TestEvents(t *testing.T) {
	db, a := cli.SetupCLITest(t)
	projectID := cli.CreateTestProject(t, db, "Board")
	pid := fmt.Sprintf("%d", projectID)

	for _, title := range []string{"One", "Two", "Three"} {
		cli.CreateTestStory(t, a, storyservice.CreateStoryRequest{ProjectID: projectID, Title: title})
	}

	t.Run("All events in order", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, EventsCmd(), []string{"--project", pid, "--quiet"})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", "3"}, strings.Fields(output))
	})

	t.Run("After a sequence", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, EventsCmd(), []string{"--project", pid, "--after", "1", "--json"})
		require.NoError(t, err)

		evs := cli.ParseJSON(t, output)["events"].([]any)
		require.Len(t, evs, 2)
		first := evs[0].(map[string]any)
		assert.Equal(t, float64(2), first["seq"])
		assert.Equal(t, "story_created", first["type"])
	})

	t.Run("Nothing newer", func(t *testing.T) {
		output, err := cli.ExecuteCLICommand(t, a, EventsCmd(), []string{"--project", pid, "--after", "3"})
		require.NoError(t, err)
		assert.Contains(t, output, "No events found")
	})

	t.Run("Negative sequence", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, EventsCmd(), []string{"--project", pid, "--after", "-1", "--json"})
		assert.Equal(t, clipkg.ExitUsage, exitCode(t, err))
	})

	t.Run("Missing project", func(t *testing.T) {
		_, err := cli.ExecuteCLICommand(t, a, EventsCmd(), []string{"--project", "999", "--json"})
		assert.Equal(t, clipkg.ExitNotFound, exitCode(t, err))
	})
}

// ============================================================================
// WATCH
// ============================================================================

func TestWatch_MissingProject(t *testing.T) {
	_, a := cli.SetupCLITest(t)

	output, err := cli.ExecuteCLICommand(t, a, WatchCmd(), []string{"--project", fmt.Sprintf("%d", types.ProjectID(999))})
	require.Error(t, err)
	assert.Equal(t, clipkg.ExitNotFound, exitCode(t, err))
	assert.Empty(t, output, "errors go to stderr")
}
