package board

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// EventsCmd returns the events command
func EventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List a project's committed board events",
		Long: `List the events committed for a project in sequence order. A viewer that
missed events replays this log from the last sequence it applied.

Examples:
  central events --project=1
  central events --project=1 --after=42 --json`,
		RunE: runEvents,
	}

	addProjectFlag(cmd)
	cmd.Flags().Int("after", 0, "Only list events with a higher sequence")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runEvents(cmd *cobra.Command, args []string) error {
	pid, err := projectID(cmd)
	if err != nil {
		return err
	}
	after, _ := cmd.Flags().GetInt("after")
	if after < 0 {
		return cli.NewFormatter(cmd).Usage("INVALID_SEQUENCE",
			"--after must not be negative",
			"Usage: central events --project=<id> --after=<seq>")
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		evs, err := c.App.StoryService.Events(ctx, pid, types.Seq(after))
		if err != nil {
			return f.Fail(err)
		}

		if f.Quiet {
			for _, ev := range evs {
				fmt.Printf("%d\n", ev.SequenceID)
			}
			return nil
		}
		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success": true,
				"events":  evs,
			})
		}

		if len(evs) == 0 {
			fmt.Println("No events found")
			return nil
		}
		for _, ev := range evs {
			fmt.Printf("%s %s %s %s %s\n",
				styles.ValueStyle.Render(fmt.Sprintf("%6d", ev.SequenceID)),
				styles.SubtitleStyle.Render(ev.Timestamp.Format("2006-01-02 15:04:05")),
				styles.LabelStyle.Render(string(ev.Type)),
				ev.StoryID,
				styles.SubtitleStyle.Render(fmt.Sprintf("user %d", ev.Actor)))
		}
		return nil
	})
}
