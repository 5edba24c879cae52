package models

import (
	"errors"
	"fmt"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// Error kinds surfaced by the board core. Match them with errors.Is; the structured
// types below carry the details and unwrap to these sentinels.
var (
	// ErrValidation indicates a malformed or missing field; recoverable by re-editing
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition indicates an action that is not legal for the story's state or type
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidColumnTarget indicates a drop target with no implied workflow state
	ErrInvalidColumnTarget = errors.New("invalid column target")

	// ErrStaleVersion indicates the caller lost a concurrency race and must refetch
	ErrStaleVersion = errors.New("stale version")

	// ErrStaleTransition is the transition flavour of ErrStaleVersion
	ErrStaleTransition = errors.New("stale transition")

	// ErrStoryNotFound indicates the story does not exist (or was deleted)
	ErrStoryNotFound = errors.New("story not found")

	// ErrProjectNotFound indicates the project does not exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrReadOnly indicates the actor lacks the write capability
	ErrReadOnly = errors.New("read-only access: write capability required")
)

// ValidationError reports a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports an action refused by the workflow.
type TransitionError struct {
	StoryID types.StoryID
	Type    StoryType
	State   State
	Action  Action
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s %s story %s in state %q", e.Action, e.Type, e.StoryID, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ColumnTargetError reports a drop onto a column with no implied state.
type ColumnTargetError struct {
	Column string
}

func (e *ColumnTargetError) Error() string {
	return fmt.Sprintf("column %q has no implied state", e.Column)
}

func (e *ColumnTargetError) Unwrap() error { return ErrInvalidColumnTarget }

// StaleError reports an optimistic-concurrency conflict. A stale transition matches
// both ErrStaleTransition and ErrStaleVersion.
type StaleError struct {
	StoryID    types.StoryID
	Expected   int
	Actual     int
	Transition bool
}

func (e *StaleError) Error() string {
	kind := "stale version"
	if e.Transition {
		kind = "stale transition"
	}
	return fmt.Sprintf("%s for story %s: expected version %d, current version %d",
		kind, e.StoryID, e.Expected, e.Actual)
}

func (e *StaleError) Is(target error) bool {
	switch target {
	case ErrStaleVersion:
		return true
	case ErrStaleTransition:
		return e.Transition
	}
	return false
}
