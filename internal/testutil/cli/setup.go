package cli

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jv-vogler/cm42-central/internal/app"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/testutil"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Writer is the actor test fixtures commit as.
var Writer = models.Actor{ID: 1, CanWrite: true}

// SetupCLITest creates an in-memory DB and returns both the DB and App instance
// This function is only for CLI tests and is isolated in a separate package
// to avoid import cycles when service tests import testutil
func SetupCLITest(t *testing.T, opts ...app.Option) (*sql.DB, *app.App) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	appInstance := app.New(db, opts...)
	t.Cleanup(func() { _ = appInstance.Close() })

	return db, appInstance
}

// CreateTestProject wraps testutil.CreateTestProject for CLI tests
func CreateTestProject(t *testing.T, db *sql.DB, name string) types.ProjectID {
	t.Helper()
	return testutil.CreateTestProject(t, db, name)
}

// CreateTestStory creates a story through the story service so it has history
// and an event, like a real one.
func CreateTestStory(t *testing.T, a *app.App, req storyservice.CreateStoryRequest) *models.Story {
	t.Helper()
	if req.Type == "" {
		req.Type = models.StoryTypeChore
	}
	s, err := a.StoryService.CreateStory(context.Background(), Writer, req)
	if err != nil {
		t.Fatalf("Failed to create test story: %v", err)
	}
	return s
}
