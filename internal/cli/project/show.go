package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// ShowCmd returns the project show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show project details",
		Long:  "Display a project with its point scale, story counts per column and latest event sequence.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShow,
	}

	cmd.Flags().Int("id", 0, "Project ID (can also be provided as positional argument)")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)

	projectID, _ := cmd.Flags().GetInt("id")
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			n = 0
		}
		projectID = n
	}
	if projectID <= 0 {
		return formatter.Usage("INVALID_PROJECT_ID",
			"project ID must be a positive integer",
			"Usage: central project show <id> or central project show --id=<id>")
	}

	// Initialize CLI
	cliInstance, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		if fmtErr := formatter.Error("INITIALIZATION_ERROR", err.Error()); fmtErr != nil {
			slog.Error("failed to format error message", "error", fmtErr)
		}
		return err
	}
	defer func() {
		if err := cliInstance.Close(); err != nil {
			slog.Error("failed to close CLI", "error", err)
		}
	}()

	view, err := cliInstance.App.StoryService.Board(ctx, types.ProjectID(projectID), column.Filters{})
	if err != nil {
		return formatter.Fail(err)
	}

	counts := make(map[column.Name]int, len(view.Order))
	for _, name := range view.Order {
		counts[name] = len(view.Columns[name])
	}

	if formatter.Quiet {
		fmt.Printf("%d\n", view.Project.ID)
		return nil
	}

	if formatter.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"success":  true,
			"project":  view.Project,
			"counts":   counts,
			"last_seq": view.LastSeq,
		})
	}

	var content strings.Builder
	content.WriteString(styles.TitleStyle.Render(fmt.Sprintf("[%d] %s", view.Project.ID, view.Project.Name)))
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("%s %s %v\n",
		styles.LabelStyle.Render("Point scale:"),
		styles.ValueStyle.Render(string(view.Project.PointScale)),
		view.Project.PointScale.Points()))
	for _, name := range view.Order {
		content.WriteString(fmt.Sprintf("%s %d\n", styles.LabelStyle.Render(string(name)+":"), counts[name]))
	}
	content.WriteString(fmt.Sprintf("%s %d\n", styles.LabelStyle.Render("Last event:"), view.LastSeq))

	fmt.Println(styles.RenderCard(content.String()))
	return nil
}
