package story

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
)

// EstimateCmd returns the story estimate subcommand
func EstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <id> <points>",
		Short: "Estimate a feature",
		Long: `Pick an estimate from the project's point scale. Unestimated features offer
point selection instead of workflow actions.

Example:
  central story estimate 12 3
`,
		Args: cobra.ExactArgs(2),
		RunE: runEstimate,
	}

	addVersionFlag(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

func runEstimate(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story estimate <id> <points>")
	if err != nil {
		return err
	}
	points, err := strconv.Atoi(args[1])
	if err != nil {
		return cli.NewFormatter(cmd).Usage("INVALID_ESTIMATE",
			"points must be an integer", "Run 'central story show <id>' to see the point scale")
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		version, err := expectedVersion(ctx, cmd, c, id)
		if err != nil {
			return f.Fail(err)
		}

		story, err := c.App.StoryService.EstimateStory(ctx, c.Actor(), storyservice.EstimateRequest{
			StoryID:         id,
			Points:          points,
			ExpectedVersion: version,
			MutationID:      cli.NewMutationID(),
		})
		if err != nil {
			return f.Fail(err)
		}
		return writeStory(f, story, "estimated")
	})
}
