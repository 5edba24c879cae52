package story

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
)

// UpdateCmd returns the story update subcommand
func UpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Edit a story",
		Long: `Edit story fields. Only the flags you pass change; state changes go through
'central story do'.

Examples:
  central story update 12 --title="Sign up with GitHub"
  central story update 12 --labels=auth,mvp --owner=3
  central story update 12 --description=- < notes.md
  central story update 12 --clear-estimate --version=4
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUpdate,
	}

	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("type", "", "New story type")
	cmd.Flags().String("description", "", "New description (use - to read from stdin)")
	cmd.Flags().String("notes", "", "New notes")
	cmd.Flags().Int("estimate", 0, "New estimate")
	cmd.Flags().Bool("clear-estimate", false, "Remove the estimate")
	cmd.Flags().String("labels", "", "Replace labels (comma-separated, empty clears)")
	cmd.Flags().String("owner", "", "New owner user ID")
	cmd.Flags().Bool("clear-owner", false, "Remove the owner")
	cmd.Flags().String("requester", "", "New requester user ID")
	cmd.Flags().String("release-date", "", "New release date YYYY-MM-DD")
	addVersionFlag(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story update <id> [flags]")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		req, err := updateRequest(cmd)
		if err != nil {
			return f.Fail(err)
		}
		req.StoryID = id
		if req.ExpectedVersion, err = expectedVersion(ctx, cmd, c, id); err != nil {
			return f.Fail(err)
		}

		story, err := c.App.StoryService.UpdateStory(ctx, c.Actor(), *req)
		if err != nil {
			return f.Fail(err)
		}
		return writeStory(f, story, "updated")
	})
}

func updateRequest(cmd *cobra.Command) (*storyservice.UpdateStoryRequest, error) {
	flags := cmd.Flags()
	req := &storyservice.UpdateStoryRequest{MutationID: cli.NewMutationID()}
	var err error

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		req.Title = &v
	}
	if flags.Changed("type") {
		raw, _ := flags.GetString("type")
		t, err := models.ParseStoryType(raw)
		if err != nil {
			return nil, err
		}
		req.Type = &t
	}
	if flags.Changed("description") {
		raw, _ := flags.GetString("description")
		v, err := cli.ReadText(raw)
		if err != nil {
			return nil, err
		}
		req.Description = &v
	}
	if flags.Changed("notes") {
		v, _ := flags.GetString("notes")
		req.Notes = &v
	}
	if flags.Changed("estimate") {
		v, _ := flags.GetInt("estimate")
		req.Estimate = &v
	}
	req.ClearEstimate, _ = flags.GetBool("clear-estimate")
	if flags.Changed("labels") {
		raw, _ := flags.GetString("labels")
		labels := cli.SplitLabels(raw)
		req.Labels = &labels
	}
	if flags.Changed("owner") {
		raw, _ := flags.GetString("owner")
		if req.OwnedBy, err = cli.ParseUser(raw); err != nil {
			return nil, err
		}
	}
	req.ClearOwner, _ = flags.GetBool("clear-owner")
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
