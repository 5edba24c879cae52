package models

import (
	"fmt"
	"strings"
)

// ============================================================================
// STORY TYPES
// ============================================================================

// StoryType classifies a story. Only features carry estimates; releases carry a date
// instead of a workflow state.
type StoryType string

const (
	StoryTypeFeature StoryType = "feature"
	StoryTypeBug     StoryType = "bug"
	StoryTypeChore   StoryType = "chore"
	StoryTypeRelease StoryType = "release"
)

var validStoryTypes = map[StoryType]bool{
	StoryTypeFeature: true,
	StoryTypeBug:     true,
	StoryTypeChore:   true,
	StoryTypeRelease: true,
}

// ParseStoryType parses a story type name (case-insensitive).
func ParseStoryType(s string) (StoryType, error) {
	st := StoryType(strings.ToLower(strings.TrimSpace(s)))
	if !validStoryTypes[st] {
		return "", &ValidationError{
			Field:   "story_type",
			Message: fmt.Sprintf("invalid story type %q: must be one of feature, bug, chore, release", s),
		}
	}
	return st, nil
}

func (t StoryType) String() string { return string(t) }

// IsRelease reports whether the type is a release marker.
func (t StoryType) IsRelease() bool { return t == StoryTypeRelease }

// ============================================================================
// WORKFLOW STATES
// ============================================================================

// State is a story's position in the workflow.
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateUnstarted   State = "unstarted"
	StateStarted     State = "started"
	StateFinished    State = "finished"
	StateDelivered   State = "delivered"
	StateAccepted    State = "accepted"
	StateRejected    State = "rejected"
)

// States lists every workflow state in board order.
var States = []State{
	StateUnscheduled,
	StateUnstarted,
	StateStarted,
	StateFinished,
	StateDelivered,
	StateAccepted,
	StateRejected,
}

// ParseState parses a workflow state name (case-insensitive).
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range States {
		if st == known {
			return st, nil
		}
	}
	return "", &ValidationError{
		Field:   "state",
		Message: fmt.Sprintf("invalid state %q", s),
	}
}

func (s State) String() string { return string(s) }

// Valid reports whether s belongs to the workflow's state set.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// ============================================================================
// WORKFLOW ACTIONS
// ============================================================================

// Action is a user-visible workflow verb ("start", "deliver", ...).
type Action string

const (
	ActionStart   Action = "start"
	ActionFinish  Action = "finish"
	ActionDeliver Action = "deliver"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionRestart Action = "restart"
)

// ParseAction parses an action name (case-insensitive).
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionStart, ActionFinish, ActionDeliver, ActionAccept, ActionReject, ActionRestart:
		return a, nil
	}
	return "", &ValidationError{
		Field:   "action",
		Message: fmt.Sprintf("unknown action %q", s),
	}
}

func (a Action) String() string { return string(a) }
