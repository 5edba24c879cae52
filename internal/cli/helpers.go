package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// StoryIDArg reads a story ID from the first positional argument or the --id flag.
// "#42" and "42" are both accepted.
func StoryIDArg(cmd *cobra.Command, args []string) (types.StoryID, error) {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	} else if cmd.Flags().Lookup("id") != nil {
		n, _ := cmd.Flags().GetInt("id")
		if n > 0 {
			raw = strconv.Itoa(n)
		}
	}
	if raw == "" {
		return 0, fmt.Errorf("story ID is required")
	}
	id, err := types.ParseStoryID(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("story ID must be a positive integer, got %q", raw)
	}
	return id, nil
}

// ReadText returns s, or all of stdin when s is "-".
func ReadText(s string) (string, error) {
	if s != "-" {
		return s, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseUser parses a user ID flag value.
func ParseUser(s string) (*types.UserID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil, &models.ValidationError{Field: "user", Message: fmt.Sprintf("invalid user ID %q", s)}
	}
	id := types.UserID(n)
	return &id, nil
}

// SplitLabels splits a comma-separated flag into labels.
func SplitLabels(s string) []string {
	return models.ParseLabels(s)
}

// NewMutationID tags one command's write so live viewers can recognise their own
// echo.
func NewMutationID() string {
	return uuid.NewString()
}

// ParseDate parses a YYYY-MM-DD flag value.
func ParseDate(s string) (*time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return nil, &models.ValidationError{Field: "release_date", Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s)}
	}
	return &d, nil
}
