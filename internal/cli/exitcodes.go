package cli

import "fmt"

// Exit codes for CLI commands.
// These codes follow Unix conventions and provide consistent error reporting
// across all CLI commands.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitError indicates a general error occurred.
	// Use for: Database errors, daemon errors, unexpected failures,
	// or any error that doesn't fit the specific categories below.
	ExitError = 1

	// ExitUsage indicates incorrect command usage.
	// Use for: Missing required flags, invalid flag combinations, malformed IDs.
	ExitUsage = 2

	// ExitNotFound indicates a requested resource was not found.
	// Use for: Story not found, project not found.
	ExitNotFound = 3

	// ExitDataErr indicates invalid or malformed data.
	// Use for: Invalid JSON input, corrupted data, or data that cannot be processed.
	ExitDataErr = 4

	// ExitValidation indicates a validation error.
	// Use for: Invalid story types, estimates outside the point scale,
	// illegal workflow actions, columns without an implied state.
	ExitValidation = 5

	// ExitConflict indicates the story changed since it was read.
	// Use for: Stale versions and stale transitions; refetch and retry.
	ExitConflict = 6

	// ExitPermission indicates the actor may not write.
	ExitPermission = 7
)

// StatusError carries the process exit code of a failed command. The message has
// already been printed by the OutputFormatter.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }
