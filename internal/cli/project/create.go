// Package project holds all cli commands related to projects
//
// e.g., central project ...
package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/cli"
	projectservice "github.com/jv-vogler/cm42-central/internal/services/project"
)

// CreateCmd returns the project create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long: `Create a new project.

Examples:
  # Simple project (human-readable output)
  central project create --name="Mobile App"

  # JSON output for agents
  central project create --name="Mobile App" --json

  # Quiet mode for bash capture
  PROJECT_ID=$(central project create --name="Mobile App" --quiet)

  # Linear point scale (1-5) instead of fibonacci
  central project create --name="Mobile App" --point-scale=linear
`,
		RunE: runCreate,
	}

	// Required flags
	cmd.Flags().String("name", "", "Project name (required)")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}

	// Optional flags
	cmd.Flags().String("point-scale", "", "Point scale: fibonacci, linear, powers_of_two (default from config)")

	// Agent-friendly flags
	cli.AddOutputFlags(cmd)

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name, _ := cmd.Flags().GetString("name")
	scale, _ := cmd.Flags().GetString("point-scale")

	formatter := cli.NewFormatter(cmd)

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

	if scale == "" {
		scale = cliInstance.Config.PointScale
	}

	project, err := cliInstance.App.ProjectService.CreateProject(ctx, cliInstance.Actor(), projectservice.CreateProjectRequest{
		Name:       name,
		PointScale: scale,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	// Output based on mode (JSON/Quiet/Human)
	if formatter.Quiet {
		fmt.Printf("%d\n", project.ID)
		return nil
	}

	if formatter.JSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"success": true,
			"project": project,
		})
	}

	// Human-readable output
	fmt.Printf("✓ Project '%s' created successfully (ID: %d)\n", project.Name, project.ID)
	fmt.Printf("  Point scale: %s %v\n", project.PointScale, project.PointScale.Points())

	return nil
}
