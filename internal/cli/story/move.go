package story

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// MoveCmd returns the story move subcommand
func MoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move [id]",
		Short: "Reorder a story or drop it onto another column",
		Long: `Place a story next to another one, or drop it onto another column. A drop
onto chilly_bin, in_progress or done walks the workflow to the column's state
and is refused when no path exists.

Examples:
  # Place #12 right after #7 in the same column
  central story move 12 --after=7

  # Start a story by dropping it onto in_progress
  central story move 12 --column=in_progress
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMove,
	}

	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cmd.Flags().String("column", "", "Destination column (default: the story's current column)")
	cmd.Flags().String("after", "", "Place after this story")
	cmd.Flags().String("before", "", "Place before this story")
	addVersionFlag(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

func runMove(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story move <id> [--column=<name>] [--after=<id>] [--before=<id>]")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		req := storyservice.ReorderRequest{StoryID: id, MutationID: cli.NewMutationID()}

		if raw, _ := cmd.Flags().GetString("column"); raw != "" {
			name, err := column.ParseName(raw)
			if err != nil {
				return f.Fail(err)
			}
			req.Column = name
		}
		if req.AfterID, err = neighbour(cmd, "after"); err != nil {
			return f.Fail(err)
		}
		if req.BeforeID, err = neighbour(cmd, "before"); err != nil {
			return f.Fail(err)
		}
		if req.ExpectedVersion, err = expectedVersion(ctx, cmd, c, id); err != nil {
			return f.Fail(err)
		}

		story, err := c.App.StoryService.Reorder(ctx, c.Actor(), req)
		if err != nil {
			return f.Fail(err)
		}
		return writeStory(f, story, "moved to "+column.Home(*story).String())
	})
}

func neighbour(cmd *cobra.Command, flag string) (*types.StoryID, error) {
	raw, _ := cmd.Flags().GetString(flag)
	if raw == "" {
		return nil, nil
	}
	id, err := types.ParseStoryID(raw)
	if err != nil || id <= 0 {
		return nil, &models.ValidationError{Field: flag, Message: fmt.Sprintf("invalid story ID %q", raw)}
	}
	return &id, nil
}
