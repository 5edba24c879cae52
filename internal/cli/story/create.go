package story

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// CreateCmd returns the story create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new story",
		Long: `Create a new story at the end of its column.

Examples:
  # Unestimated feature
  central story create --project=1 --title="Sign up with email"

  # Estimated feature with labels
  central story create --project=1 --title="Search" --estimate=3 --labels=search,mvp

  # Bug with a description piped from a file
  central story create --project=1 --type=bug --title="Crash on save" --description=- < bug.md

  # Release marker
  central story create --project=1 --type=release --title="v1.0" --release-date=2026-12-01

  # Quiet mode for bash capture
  STORY_ID=$(central story create --project=1 --type=chore --title="Upgrade Go" --quiet)
`,
		RunE: runCreate,
	}

	// Required flags
	cmd.Flags().Int("project", 0, "Project ID (required)")
	if err := cmd.MarkFlagRequired("project"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	cmd.Flags().String("title", "", "Story title (required)")
	if err := cmd.MarkFlagRequired("title"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	// Optional flags
	cmd.Flags().String("type", "feature", "Story type: feature, bug, chore, release")
	cmd.Flags().String("description", "", "Story description in markdown (use - to read from stdin)")
	cmd.Flags().String("notes", "", "Story notes")
	cmd.Flags().Int("estimate", 0, "Estimate in points (features only)")
	cmd.Flags().String("labels", "", "Comma-separated labels")
	cmd.Flags().String("state", "", "Initial state: unstarted (default) or unscheduled")
	cmd.Flags().String("owner", "", "Owner user ID")
	cmd.Flags().String("requester", "", "Requester user ID (default: you)")
	cmd.Flags().String("release-date", "", "Release date YYYY-MM-DD (releases only)")

	// Agent-friendly flags
	cli.AddOutputFlags(cmd)

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		req, err := createRequest(cmd)
		if err != nil {
			return f.Fail(err)
		}

		story, err := c.App.StoryService.CreateStory(ctx, c.Actor(), *req)
		if err != nil {
			return f.Fail(err)
		}
		return writeStory(f, story, "created")
	})
}

func createRequest(cmd *cobra.Command) (*storyservice.CreateStoryRequest, error) {
	flags := cmd.Flags()
	projectID, _ := flags.GetInt("project")
	title, _ := flags.GetString("title")
	typeName, _ := flags.GetString("type")
	description, _ := flags.GetString("description")
	notes, _ := flags.GetString("notes")
	labels, _ := flags.GetString("labels")

	storyType, err := models.ParseStoryType(typeName)
	if err != nil {
		return nil, err
	}
	description, err = cli.ReadText(description)
	if err != nil {
		return nil, err
	}

	req := &storyservice.CreateStoryRequest{
		ProjectID:   types.ProjectID(projectID),
		Type:        storyType,
		Title:       title,
		Description: description,
		Notes:       notes,
		Labels:      cli.SplitLabels(labels),
		MutationID:  cli.NewMutationID(),
	}

	if flags.Changed("estimate") {
		points, _ := flags.GetInt("estimate")
		req.Estimate = &points
	}
	if flags.Changed("state") {
		raw, _ := flags.GetString("state")
		state, err := models.ParseState(raw)
		if err != nil {
			return nil, err
		}
		req.State = state
	}
	if flags.Changed("owner") {
		raw, _ := flags.GetString("owner")
		if req.OwnedBy, err = cli.ParseUser(raw); err != nil {
			return nil, err
		}
	}
	if flags.Changed("requester") {
		raw, _ := flags.GetString("requester")
		if req.RequestedBy, err = cli.ParseUser(raw); err != nil {
			return nil, err
		}
	}
	if flags.Changed("release-date") {
		raw, _ := flags.GetString("release-date")
		if req.ReleaseDate, err = cli.ParseDate(raw); err != nil {
			return nil, err
		}
	}
	return req, nil
}
