package board

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/launcher"
)

// WatchCmd returns the watch command
func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a project's board live",
		Long: `Open a live view of a project's board. Changes committed by anyone show
up as they happen: through the daemon when it runs, otherwise through the Redis
relay when redis_url is configured. Without either the view is a snapshot that
can be reloaded by hand.

Stories can be moved and advanced from the viewer when the configured actor may
write; press ? inside the viewer for the keys.`,
		RunE: runWatch,
	}

	addProjectFlag(cmd)
	addFilterFlags(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	pid, err := projectID(cmd)
	if err != nil {
		return err
	}
	labels, _ := cmd.Flags().GetStringSlice("label")
	query, _ := cmd.Flags().GetString("search")
	view := launcher.View{Labels: labels, Search: query, Searching: cmd.Flags().Changed("search")}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		project, err := c.App.ProjectService.GetProject(ctx, pid)
		if err != nil {
			return f.Fail(err)
		}
		if err := launcher.Watch(ctx, c.App, c.Config, *project, view); err != nil {
			return f.Fail(err)
		}
		return nil
	})
}
