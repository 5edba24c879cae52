// Package board holds the whole-board commands: the column listing, the event
// log, and the live viewer.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// BoardCmd returns the board command
func BoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show a project's board",
		Long: `Show every story of a project grouped into its columns, in rank order.

With --label the board switches to epic columns: one column per label holding
the stories tagged with it. With --search a search results column lists the
stories whose id, title, description or labels contain every term.

Examples:
  central board --project=1
  central board --project=1 --label=auth --label=billing
  central board --project=1 --search="login bug"
  central board --project=1 --json`,
		RunE: runBoard,
	}

	addProjectFlag(cmd)
	addFilterFlags(cmd)
	cli.AddOutputFlags(cmd)

	return cmd
}

func addProjectFlag(cmd *cobra.Command) {
	cmd.Flags().Int("project", 0, "Project ID (required)")
	if err := cmd.MarkFlagRequired("project"); err != nil {
		panic(err)
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("label", nil, "Show an epic column for this label (repeatable)")
	cmd.Flags().String("search", "", "Show a search results column for this query")
}

func projectID(cmd *cobra.Command) (types.ProjectID, error) {
	id, _ := cmd.Flags().GetInt("project")
	if id <= 0 {
		return 0, cli.NewFormatter(cmd).Usage("INVALID_PROJECT_ID",
			"project ID must be a positive integer",
			"Usage: central "+cmd.Name()+" --project=<id>")
	}
	return types.ProjectID(id), nil
}

func runBoard(cmd *cobra.Command, args []string) error {
	pid, err := projectID(cmd)
	if err != nil {
		return err
	}
	labels, _ := cmd.Flags().GetStringSlice("label")
	query, _ := cmd.Flags().GetString("search")

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		filters := column.Filters{Labels: labels}
		if cmd.Flags().Changed("search") {
			hits, err := c.App.StoryService.Search(ctx, pid, query)
			if err != nil {
				return f.Fail(err)
			}
			filters.SearchResults = hits
		}

		view, err := c.App.StoryService.Board(ctx, pid, filters)
		if err != nil {
			return f.Fail(err)
		}

		if f.Quiet {
			for _, name := range view.Order {
				fmt.Printf("%s\t%d\n", name, len(view.Columns[name]))
			}
			return nil
		}
		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success": true,
				"board":   view,
			})
		}

		fmt.Println(styles.TitleStyle.Render(fmt.Sprintf("[%d] %s", view.Project.ID, view.Project.Name)))
		for _, name := range view.Order {
			stories := view.Columns[name]
			fmt.Println()
			fmt.Println(styles.ColumnStyle.Render(fmt.Sprintf("%s (%d)", name.Title(), len(stories))))
			if len(stories) == 0 {
				fmt.Println(styles.SubtitleStyle.Italic(true).Render("  No stories"))
				continue
			}
			var b strings.Builder
			for _, s := range stories {
				b.WriteString("  ")
				b.WriteString(styles.RenderStoryLine(s, view.Delayed[s.ID]))
				b.WriteString("\n")
			}
			fmt.Print(b.String())
		}
		return nil
	})
}
