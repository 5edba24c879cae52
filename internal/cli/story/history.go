package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
)

// HistoryCmd returns the story history subcommand
func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show a story's change history",
		Long:  "List every recorded field change of a story, oldest first.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}

	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story history <id>")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		seq, err := c.App.StoryService.History(ctx, id)
		if err != nil {
			return f.Fail(err)
		}
		entries := slices.Collect(seq)

		if f.Quiet {
			fmt.Printf("%d\n", len(entries))
			return nil
		}
		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success": true,
				"history": entries,
			})
		}

		if len(entries) == 0 {
			fmt.Printf("No history for story %s\n", id)
			return nil
		}
		for _, e := range entries {
			old := e.OldValue
			if old == "" {
				old = "∅"
			}
			fmt.Printf("%s %s %s: %s → %s\n",
				styles.SubtitleStyle.Render(e.ChangedAt.Format("2006-01-02 15:04")),
				styles.SubtitleStyle.Render(fmt.Sprintf("user %d", e.ChangedBy)),
				styles.LabelStyle.Render(e.Field),
				old,
				styles.ValueStyle.Render(e.NewValue))
		}
		return nil
	})
}
