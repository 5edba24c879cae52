// Package workflow holds the story state machine: which actions a story exposes and
// which state each action leads to. Everything here is a pure function of
// (story type, estimate, state).
package workflow

import (
	"slices"

	"github.com/jv-vogler/cm42-central/internal/models"
)

// stateActions lists the buttons each state offers. States without an entry fall
// back to the unstarted set.
var stateActions = map[models.State][]models.Action{
	models.StateUnstarted: {models.ActionStart},
	models.StateStarted:   {models.ActionFinish},
	models.StateFinished:  {models.ActionDeliver},
	models.StateDelivered: {models.ActionAccept, models.ActionReject},
	models.StateRejected:  {models.ActionRestart},
	models.StateAccepted:  {},
}

// actionTargets maps each action to the state it produces.
var actionTargets = map[models.Action]models.State{
	models.ActionStart:   models.StateStarted,
	models.ActionFinish:  models.StateFinished,
	models.ActionDeliver: models.StateDelivered,
	models.ActionAccept:  models.StateAccepted,
	models.ActionReject:  models.StateRejected,
	models.ActionRestart: models.StateStarted,
}

// StoryActionFor returns the actions offered in state. Unknown or empty states get
// the unstarted actions rather than an error.
func StoryActionFor(state models.State) []models.Action {
	actions, ok := stateActions[state]
	if !ok {
		actions = stateActions[models.StateUnstarted]
	}
	return slices.Clone(actions)
}

// Target returns the state an action leads to.
func Target(action models.Action) (models.State, bool) {
	st, ok := actionTargets[action]
	return st, ok
}

// IsTerminal reports whether no action leaves state.
func IsTerminal(state models.State) bool {
	return len(StoryActionFor(state)) == 0
}

// ============================================================================
// ACTION SETS
// ============================================================================

// Kind tags which variant of ActionSet applies.
type Kind int

const (
	// Transitions: the story shows state buttons
	Transitions Kind = iota
	// PointSelection: an unestimated feature must be estimated first
	PointSelection
	// ReleaseOnly: releases have no workflow; only the delay flag applies
	ReleaseOnly
)

func (k Kind) String() string {
	switch k {
	case Transitions:
		return "transitions"
	case PointSelection:
		return "point_selection"
	case ReleaseOnly:
		return "release"
	}
	return "unknown"
}

// ActionSet is what a story offers its viewer.
type ActionSet struct {
	Kind    Kind            `json:"kind"`
	Actions []models.Action `json:"actions,omitempty"` // Transitions only
	Points  []int           `json:"points,omitempty"`  // PointSelection only
}

// ActionsFor decides between point selection and state buttons.
func ActionsFor(storyType models.StoryType, estimate *int, state models.State, scale models.PointScale) ActionSet {
	if storyType.IsRelease() {
		return ActionSet{Kind: ReleaseOnly}
	}
	if !models.IsEstimated(storyType, estimate) {
		return ActionSet{Kind: PointSelection, Points: scale.Points()}
	}
	return ActionSet{Kind: Transitions, Actions: StoryActionFor(state)}
}

// ActionsForStory is ActionsFor applied to a story.
func ActionsForStory(s models.Story, scale models.PointScale) ActionSet {
	return ActionsFor(s.Type, s.Estimate, s.State, scale)
}

// Allows reports whether the set contains action.
func (a ActionSet) Allows(action models.Action) bool {
	return a.Kind == Transitions && slices.Contains(a.Actions, action)
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// RequestAction validates action against the story and returns the next state.
func RequestAction(story models.Story, action models.Action) (models.State, error) {
	refuse := func(reason string) error {
		return &models.TransitionError{
			StoryID: story.ID,
			Type:    story.Type,
			State:   story.State,
			Action:  action,
			Reason:  reason,
		}
	}

	if story.Type.IsRelease() {
		return "", refuse("release stories have no workflow")
	}
	if !story.IsEstimated() {
		return "", refuse("feature must be estimated first")
	}
	if !slices.Contains(StoryActionFor(story.State), action) {
		return "", refuse("")
	}
	return actionTargets[action], nil
}

// PathTo finds the shortest chain of actions taking story to target. An empty chain
// means the story is already there.
func PathTo(story models.Story, target models.State) ([]models.Action, error) {
	if story.Type.IsRelease() {
		return nil, &models.TransitionError{
			StoryID: story.ID, Type: story.Type, Action: "move",
			Reason: "release stories have no workflow",
		}
	}
	start := story.State
	if start == "" {
		start = models.StateUnstarted
	}
	if start == target {
		return nil, nil
	}
	if !story.IsEstimated() {
		return nil, &models.TransitionError{
			StoryID: story.ID, Type: story.Type, State: story.State, Action: "move",
			Reason: "feature must be estimated first",
		}
	}

	type step struct {
		state models.State
		path  []models.Action
	}
	visited := map[models.State]bool{start: true}
	queue := []step{{state: start}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, action := range StoryActionFor(cur.state) {
			next := actionTargets[action]
			if visited[next] {
				continue
			}
			path := append(slices.Clone(cur.path), action)
			if next == target {
				return path, nil
			}
			visited[next] = true
			queue = append(queue, step{state: next, path: path})
		}
	}

	return nil, &models.TransitionError{
		StoryID: story.ID, Type: story.Type, State: story.State, Action: "move",
		Reason: "no workflow path to " + target.String(),
	}
}
