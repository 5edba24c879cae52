package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
)

// LinksCmd returns the story links subcommand
func LinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links [id]",
		Short: "Resolve the #id references in a story",
		Long: `List the stories a story's description references with #<id>.
Deleted targets and stories of other projects show as missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLinks,
	}

	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runLinks(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story links <id>")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		refs, err := c.App.StoryService.Links(ctx, id)
		if err != nil {
			return f.Fail(err)
		}

		if f.Quiet {
			for _, l := range refs {
				fmt.Printf("%d\n", l.TargetID)
			}
			return nil
		}
		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success": true,
				"links":   refs,
			})
		}

		if len(refs) == 0 {
			fmt.Printf("Story %s references no stories\n", id)
			return nil
		}
		for _, l := range refs {
			fmt.Println(styles.RenderLink(l))
		}
		return nil
	})
}
