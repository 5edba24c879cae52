// Package story holds all cli commands related to stories
//
// e.g., central story ...
package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// StoryCmd returns the story parent command
func StoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story",
		Short: "Manage stories",
	}

	cmd.AddCommand(CreateCmd())
	cmd.AddCommand(ShowCmd())
	cmd.AddCommand(UpdateCmd())
	cmd.AddCommand(EstimateCmd())
	cmd.AddCommand(DoCmd())
	cmd.AddCommand(MoveCmd())
	cmd.AddCommand(DeleteCmd())
	cmd.AddCommand(HistoryCmd())
	cmd.AddCommand(LinksCmd())

	return cmd
}

// addVersionFlag registers --version, the optimistic concurrency check.
func addVersionFlag(cmd *cobra.Command) {
	cmd.Flags().Int("version", 0, "Version the change is based on (default: the story's current version)")
}

// expectedVersion returns --version when set, otherwise the stored version.
func expectedVersion(ctx context.Context, cmd *cobra.Command, c *cli.CLI, id types.StoryID) (int, error) {
	if v, _ := cmd.Flags().GetInt("version"); v > 0 {
		return v, nil
	}
	s, err := c.App.StoryService.GetStory(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Version, nil
}

// writeStory prints a changed story in the formatter's mode.
func writeStory(f *cli.OutputFormatter, s *models.Story, verb string) error {
	if f.Quiet {
		fmt.Printf("%d\n", s.ID)
		return nil
	}

	if f.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"success": true,
			"story":   s,
		})
	}

	fmt.Printf("✓ Story %s %s (version %d)\n", s.ID, verb, s.Version)
	if s.State != "" {
		fmt.Printf("  State: %s\n", s.State)
	}
	return nil
}

// storyID reads the story argument, reporting a usage error when it is malformed.
func storyID(cmd *cobra.Command, args []string, usage string) (types.StoryID, error) {
	id, err := cli.StoryIDArg(cmd, args)
	if err != nil {
		return 0, cli.NewFormatter(cmd).Usage("INVALID_STORY_ID", err.Error(), usage)
	}
	return id, nil
}
