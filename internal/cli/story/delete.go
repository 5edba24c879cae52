package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
)

// DeleteCmd returns the story delete subcommand
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a story",
		Long: `Delete a story. References to it from other stories resolve as missing.

Examples:
  central story delete 12 --force
  central story delete 12 --force --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDelete,
	}

	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cmd.Flags().Bool("force", false, "Confirm the deletion")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story delete <id> --force")
	if err != nil {
		return err
	}
	if force, _ := cmd.Flags().GetBool("force"); !force {
		return cli.NewFormatter(cmd).Usage("CONFIRMATION_REQUIRED",
			fmt.Sprintf("refusing to delete story %s without --force", id),
			"Re-run with --force")
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		err := c.App.StoryService.DeleteStory(ctx, c.Actor(), storyservice.DeleteStoryRequest{
			StoryID:    id,
			MutationID: cli.NewMutationID(),
		})
		if err != nil {
			return f.Fail(err)
		}

		if f.Quiet {
			fmt.Printf("%d\n", id)
			return nil
		}
		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success":  true,
				"story_id": id,
			})
		}
		fmt.Printf("✓ Story %s deleted\n", id)
		return nil
	})
}
