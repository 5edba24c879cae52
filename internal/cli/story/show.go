package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	"github.com/jv-vogler/cm42-central/internal/cli/styles"
	"github.com/jv-vogler/cm42-central/internal/links"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// ShowCmd returns the story show subcommand
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show story details",
		Long:  "Display a story with its description, the actions it offers and the stories it references.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShow,
	}

	// Flags
	cmd.Flags().Int("id", 0, "Story ID (can also be provided as positional argument)")
	cli.AddOutputFlags(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := storyID(cmd, args, "Usage: central story show <id> or central story show --id=<id>")
	if err != nil {
		return err
	}

	return cli.Run(cmd, func(ctx context.Context, c *cli.CLI, f *cli.OutputFormatter) error {
		story, err := c.App.StoryService.GetStory(ctx, id)
		if err != nil {
			return f.Fail(err)
		}
		actions, err := c.App.StoryService.Actions(ctx, id)
		if err != nil {
			return f.Fail(err)
		}
		refs, err := c.App.StoryService.Links(ctx, id)
		if err != nil {
			return f.Fail(err)
		}

		// Output in appropriate format
		if f.Quiet {
			fmt.Printf("%d\n", story.ID)
			return nil
		}

		if f.JSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"success": true,
				"story":   story,
				"actions": map[string]any{
					"kind":    actions.Kind.String(),
					"actions": actions.Actions,
					"points":  actions.Points,
				},
				"links": refs,
			})
		}

		fmt.Println(renderStory(story, actions, refs))
		return nil
	})
}

func renderStory(s *models.Story, actions workflow.ActionSet, refs []links.Link) string {
	var content strings.Builder

	// Header
	content.WriteString(styles.TitleStyle.Render(s.ID.String() + ": " + s.Title))
	content.WriteString("\n")
	content.WriteString(styles.RenderTypeBadge(s.Type))
	content.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("  version %d", s.Version)))
	content.WriteString("\n\n")

	field := func(name, value string) {
		content.WriteString(styles.LabelStyle.Render(name+":") + " " + styles.ValueStyle.Render(value) + "\n")
	}

	if s.Type.IsRelease() {
		if s.ReleaseDate != nil {
			field("Release date", s.ReleaseDate.Format("2006-01-02"))
		}
	} else {
		field("State", string(s.State))
		if s.Estimate != nil {
			field("Estimate", fmt.Sprintf("%d", *s.Estimate))
		} else if s.Type == models.StoryTypeFeature {
			field("Estimate", "unestimated")
		}
	}
	if s.OwnedBy != nil {
		field("Owner", fmt.Sprintf("%d", *s.OwnedBy))
	}
	if s.RequestedBy != nil {
		field("Requester", fmt.Sprintf("%d", *s.RequestedBy))
	}
	if len(s.Labels) > 0 {
		chips := make([]string, 0, len(s.Labels))
		for _, label := range s.Labels {
			chips = append(chips, styles.RenderLabelChip(label))
		}
		content.WriteString(styles.LabelStyle.Render("Labels:") + " " + strings.Join(chips, " ") + "\n")
	}

	// Description
	content.WriteString(styles.SectionStyle.Render("Description"))
	content.WriteString("\n")
	content.WriteString(styles.RenderMarkdown(s.Description, 72))
	content.WriteString("\n")

	if strings.TrimSpace(s.Notes) != "" {
		content.WriteString(styles.SectionStyle.Render("Notes"))
		content.WriteString("\n")
		content.WriteString(styles.ValueStyle.Render(s.Notes))
		content.WriteString("\n")
	}

	// Actions
	switch actions.Kind {
	case workflow.PointSelection:
		content.WriteString(styles.SectionStyle.Render("Estimate"))
		content.WriteString("\n")
		points := make([]string, 0, len(actions.Points))
		for _, p := range actions.Points {
			points = append(points, fmt.Sprintf("%d", p))
		}
		content.WriteString(styles.ValueStyle.Render(strings.Join(points, " | ")))
		content.WriteString("\n")
	case workflow.Transitions:
		if len(actions.Actions) > 0 {
			content.WriteString(styles.SectionStyle.Render("Actions"))
			content.WriteString("\n")
			names := make([]string, 0, len(actions.Actions))
			for _, a := range actions.Actions {
				names = append(names, string(a))
			}
			content.WriteString(styles.ValueStyle.Render(strings.Join(names, " | ")))
			content.WriteString("\n")
		}
	}

	// References
	if len(refs) > 0 {
		content.WriteString(styles.SectionStyle.Render("References"))
		content.WriteString("\n")
		for _, l := range refs {
			content.WriteString(styles.RenderLink(l))
			content.WriteString("\n")
		}
	}

	return styles.RenderCard(strings.TrimRight(content.String(), "\n"))
}
