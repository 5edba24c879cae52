package tui

import (
	"context"
	"fmt"
	"slices"

	tea "charm.land/bubbletea/v2"

	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/rank"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// writable returns the confirmed copy of the selected story when the viewer may
// change it. Otherwise it sets a notice and reports false.
func (m *Model) writable() (models.Story, bool) {
	if m.writer == nil {
		m.notice = "Read-only viewer"
		return models.Story{}, false
	}
	if err := m.actor.RequireWrite(); err != nil {
		m.notice = "Read-only: " + err.Error()
		return models.Story{}, false
	}
	selected, ok := m.currentStory()
	if !ok {
		return models.Story{}, false
	}
	if m.board.Proposed(selected.ID) {
		m.notice = "Waiting for the previous change to " + selected.ID.String()
		return models.Story{}, false
	}
	s, ok := m.board.Story(selected.ID)
	if !ok {
		return models.Story{}, false
	}
	return s, true
}

// act applies the n-th (zero based) entry of the selected story's action set:
// a workflow action, or an estimate while the story still needs one.
func (m *Model) act(n int) tea.Cmd {
	s, ok := m.writable()
	if !ok {
		return nil
	}

	set := workflow.ActionsForStory(s, m.project.PointScale)
	switch set.Kind {
	case workflow.Transitions:
		if n >= len(set.Actions) {
			m.notice = fmt.Sprintf("%s has %d actions", s.ID, len(set.Actions))
			return nil
		}
		action := set.Actions[n]
		next, err := workflow.RequestAction(s, action)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		proposed := s.Clone()
		proposed.State = next
		mid := m.board.Propose(proposed)
		req := storyservice.TransitionRequest{StoryID: s.ID, Action: action, ExpectedVersion: s.Version, MutationID: mid}
		return mutate(m.ctx, mid, func(ctx context.Context) error {
			_, err := m.writer.Transition(ctx, m.actor, req)
			return err
		})

	case workflow.PointSelection:
		if n >= len(set.Points) {
			m.notice = fmt.Sprintf("%s has %d estimates to pick from", s.ID, len(set.Points))
			return nil
		}
		points := set.Points[n]
		proposed := s.Clone()
		proposed.Estimate = &points
		mid := m.board.Propose(proposed)
		req := storyservice.EstimateRequest{StoryID: s.ID, Points: points, ExpectedVersion: s.Version, MutationID: mid}
		return mutate(m.ctx, mid, func(ctx context.Context) error {
			_, err := m.writer.EstimateStory(ctx, m.actor, req)
			return err
		})
	}

	m.notice = "Release stories have no actions"
	return nil
}

// move drops the selected story at the end of the neighbouring standard column,
// walking the workflow to the column's state the way a drop does.
func (m *Model) move(step int) tea.Cmd {
	from := m.currentColumn()
	i := slices.Index(column.Standard, from)
	if i < 0 {
		m.notice = "Stories move between the standard columns only"
		return nil
	}
	j := i + step
	if j < 0 || j >= len(column.Standard) {
		return nil
	}
	target := column.Standard[j]

	s, ok := m.writable()
	if !ok {
		return nil
	}
	implied, err := column.ImpliedState(target)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	path, err := workflow.PathTo(s, implied)
	if err != nil {
		m.notice = err.Error()
		return nil
	}

	proposed := s.Clone()
	if len(path) > 0 {
		proposed.State = implied
	}
	if column.Home(proposed) != target {
		m.notice = (&models.ColumnTargetError{Column: string(target)}).Error()
		return nil
	}
	var ranks []float64
	for _, other := range m.board.Columns(column.Filters{})[target] {
		ranks = append(ranks, other.Rank)
	}
	proposed.Rank = rank.Last(ranks)

	mid := m.board.Propose(proposed)
	req := storyservice.ReorderRequest{StoryID: s.ID, Column: target, ExpectedVersion: s.Version, MutationID: mid}

	// follow the story into its new column
	if k := slices.Index(m.columns(), target); k >= 0 {
		m.selectedColumn = k
		m.selectedStory = len(m.partition()[target]) - 1
	}
	return mutate(m.ctx, mid, func(ctx context.Context) error {
		_, err := m.writer.Reorder(ctx, m.actor, req)
		return err
	})
}

// shift swaps the selected story with its neighbour in a standard column.
func (m *Model) shift(step int) tea.Cmd {
	name := m.currentColumn()
	if !slices.Contains(column.Standard, name) {
		m.notice = "Stories are ordered in the standard columns only"
		return nil
	}
	stories := m.partition()[name]
	i := m.selectedStory
	j := i + step
	if i >= len(stories) || j < 0 || j >= len(stories) {
		return nil
	}

	s, ok := m.writable()
	if !ok {
		return nil
	}

	// past the neighbour: after it going down, before it going up
	neighbor := stories[j]
	req := storyservice.ReorderRequest{StoryID: s.ID, ExpectedVersion: s.Version}
	var lo, hi *float64
	if step > 0 {
		req.AfterID = ptr(neighbor.ID)
		lo = &neighbor.Rank
		if j+1 < len(stories) {
			hi = &stories[j+1].Rank
		}
	} else {
		req.BeforeID = ptr(neighbor.ID)
		hi = &neighbor.Rank
		if j > 0 {
			lo = &stories[j-1].Rank
		}
	}

	proposed := s.Clone()
	// an exhausted gap is rebalanced by the server; the old rank stands in until then
	if r, err := rank.Between(lo, hi); err == nil {
		proposed.Rank = r
	}
	req.MutationID = m.board.Propose(proposed)
	m.selectedStory = j
	return mutate(m.ctx, req.MutationID, func(ctx context.Context) error {
		_, err := m.writer.Reorder(ctx, m.actor, req)
		return err
	})
}

func ptr(id types.StoryID) *types.StoryID { return &id }
