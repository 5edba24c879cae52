package story

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/models"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
)

// DoCmd returns the story do subcommand
func DoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "do <id> <action>",
		Short: "Apply a workflow action",
		Long: `Apply one workflow action: start, finish, deliver, accept, reject or restart.
Only the actions 'central story show' lists are allowed.

Examples:
  central story do 12 start
  central story do 12 accept --version=5
`,
		Args: cobra.ExactArgs(2),
		RunE: runDo,
	}

	addVersionFlag(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

func runDo(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story do <id> <action>")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		action, err := models.ParseAction(args[1])
		if err != nil {
			return f.Fail(err)
		}
		version, err := expectedVersion(ctx, cmd, c, id)
		if err != nil {
			return f.Fail(err)
		}

		story, err := c.App.StoryService.Transition(ctx, c.Actor(), storyservice.TransitionRequest{
			StoryID:         id,
			Action:          action,
			ExpectedVersion: version,
			MutationID:      cli.NewMutationID(),
		})
		if err != nil {
			return f.Fail(err)
		}
		return writeStory(f, story, action.String()+"ed")
	})
}
