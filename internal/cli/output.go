package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	projectservice "github.com/jv-vogler/cm42-central/internal/services/project"
)

// OutputFormatter handles three output modes: JSON, quiet, and human-readable
type OutputFormatter struct {
	JSON  bool
	Quiet bool
}

// NewFormatter reads the --json and --quiet flags of cmd.
func NewFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return &OutputFormatter{JSON: jsonOutput, Quiet: quietMode}
}

// AddOutputFlags registers the agent-friendly flags every command carries.
func AddOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")
}

// Success outputs successful operation result
func (f *OutputFormatter) Success(data any) error {
	if f.Quiet {
		// Extract ID if possible
		if idGetter, ok := data.(interface{ GetID() int }); ok {
			fmt.Printf("%d\n", idGetter.GetID())
			return nil
		}
	}

	if f.JSON {
		return f.JSONSuccess(data)
	}

	// Human-readable format
	return f.prettyPrint(data)
}

// JSONSuccess writes the standard success envelope.
func (f *OutputFormatter) JSONSuccess(data any) error {
	return json.NewEncoder(os.Stdout).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

// Error outputs error information
func (f *OutputFormatter) Error(code string, message string) error {
	return f.ErrorWithSuggestion(code, message, "")
}

// ErrorWithSuggestion outputs error information with an optional suggestion
func (f *OutputFormatter) ErrorWithSuggestion(code string, message string, suggestion string) error {
	if f.JSON {
		errData := map[string]any{
			"code":    code,
			"message": message,
		}
		if suggestion != "" {
			errData["suggestion"] = suggestion
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"success": false,
			"error":   errData,
		})
	}

	// Human-readable error
	writeHumanError(os.Stderr, message, suggestion)
	return nil
}

func writeHumanError(w io.Writer, message, suggestion string) {
	fmt.Fprintf(w, "❌ Error: %s\n", message)
	if suggestion != "" {
		fmt.Fprintf(w, "💡 Suggestion: %s\n", suggestion)
	}
}

// prettyPrint formats data for human-readable output
func (f *OutputFormatter) prettyPrint(data any) error {
	fmt.Printf("%+v\n", data)
	return nil
}

// Fail reports err in the formatter's mode and returns the StatusError the command
// should return.
func (f *OutputFormatter) Fail(err error) error {
	code, exit, suggestion := Classify(err)
	if fmtErr := f.ErrorWithSuggestion(code, err.Error(), suggestion); fmtErr != nil {
		slog.Error("failed to format error message", "error", fmtErr)
	}
	return &StatusError{Code: exit, Err: err}
}

// Usage reports a usage problem and returns an ExitUsage error.
func (f *OutputFormatter) Usage(code, message, suggestion string) error {
	if fmtErr := f.ErrorWithSuggestion(code, message, suggestion); fmtErr != nil {
		slog.Error("failed to format error message", "error", fmtErr)
	}
	return &StatusError{Code: ExitUsage, Err: errors.New(message)}
}

// Classify maps an error to its machine code, exit code and suggestion.
func Classify(err error) (code string, exit int, suggestion string) {
	var daemonErr *events.DaemonError
	switch {
	case errors.Is(err, models.ErrReadOnly):
		return "READ_ONLY", ExitPermission, "Set user.read_only to false or unset CENTRAL_READ_ONLY"
	case errors.Is(err, models.ErrStaleTransition):
		return "STALE_TRANSITION", ExitConflict, "Another user moved the story first; run 'central story show' and retry"
	case errors.Is(err, models.ErrStaleVersion):
		return "STALE_VERSION", ExitConflict, "The story changed since you read it; run 'central story show' and retry"
	case errors.Is(err, models.ErrInvalidTransition):
		return "INVALID_TRANSITION", ExitValidation, "Run 'central story show' to see the available actions"
	case errors.Is(err, models.ErrInvalidColumnTarget):
		return "INVALID_COLUMN_TARGET", ExitValidation, "Stories can be moved to chilly_bin, in_progress or done"
	case errors.Is(err, models.ErrStoryNotFound):
		return "STORY_NOT_FOUND", ExitNotFound, ""
	case errors.Is(err, models.ErrProjectNotFound):
		return "PROJECT_NOT_FOUND", ExitNotFound, "Run 'central project list' to see existing projects"
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, projectservice.ErrEmptyName),
		errors.Is(err, projectservice.ErrNameTooLong),
		errors.Is(err, projectservice.ErrInvalidProjectID):
		return "VALIDATION_ERROR", ExitValidation, ""
	case errors.As(err, &daemonErr):
		return "DAEMON_ERROR", ExitError, daemonErr.Hint
	}
	return "INTERNAL_ERROR", ExitError, ""
}
