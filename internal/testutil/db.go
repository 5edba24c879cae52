package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// CaptureOutput captures stdout during function execution
func CaptureOutput(t *testing.T, fn func()) string {
	t.Helper()

	// Save original stdout
	oldStdout := os.Stdout

	// Create pipe to capture output
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}

	// Replace stdout with pipe writer
	os.Stdout = w

	// Channel to collect output
	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	// Execute function
	fn()

	// Close writer and restore stdout
	_ = w.Close()
	os.Stdout = oldStdout

	// Get captured output
	return <-outC
}

// SetupTestDB creates an in-memory database with the full schema. It is closed on
// test cleanup.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.InitDB(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTestProject creates a fibonacci-scaled project and returns its ID
func CreateTestProject(t *testing.T, db *sql.DB, name string) types.ProjectID {
	t.Helper()
	p, err := database.NewRepository(db).CreateProject(context.Background(), name, models.DefaultPointScale)
	if err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return p.ID
}

// CreateTestStory inserts a story straight through the store, bypassing the
// service (no history, no event). Zero fields get test defaults: a chore in
// unstarted, ranked after the project's existing stories.
func CreateTestStory(t *testing.T, db *sql.DB, story models.Story) *models.Story {
	t.Helper()
	ctx := context.Background()
	repo := database.NewRepository(db)

	if story.Type == "" {
		story.Type = models.StoryTypeChore
	}
	if story.Type != models.StoryTypeRelease && story.State == "" {
		story.State = models.StateUnstarted
	}
	if story.Rank == 0 {
		existing, err := repo.ListStories(ctx, story.ProjectID)
		if err != nil {
			t.Fatalf("Failed to list stories: %v", err)
		}
		story.Rank = float64(len(existing)+1) * 1024
	}

	err := repo.Commit(ctx, func(tx *database.Tx) error {
		return tx.InsertStory(ctx, &story)
	})
	if err != nil {
		t.Fatalf("Failed to create test story: %v", err)
	}
	return &story
}
