// Package cmd assembles the central command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli/board"
	"github.com/jv-vogler/cm42-central/internal/cli/project"
	"github.com/jv-vogler/cm42-central/internal/cli/story"
)

// NewRootCmd builds the central command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "central",
		Short: "Central - an agile story board",
		Long: `Central keeps a project's stories on a board of derived columns. Stories move
through the workflow by actions, are ranked within their column, and every change
is recorded in the story's history and published to live viewers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(project.ProjectCmd())
	rootCmd.AddCommand(story.StoryCmd())
	rootCmd.AddCommand(board.BoardCmd())
	rootCmd.AddCommand(board.EventsCmd())
	rootCmd.AddCommand(board.WatchCmd())

	return rootCmd
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
