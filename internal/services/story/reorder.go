package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/database"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/history"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/rank"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

// Reorder moves a story within its column or drops it onto another one. A drop
// onto a different column walks the workflow to the column's implied state; when
// no path exists the drop is refused and nothing changes.
func (s *service) Reorder(ctx context.Context, actor models.Actor, req ReorderRequest) (*models.Story, error) {
	if err := actor.RequireWrite(); err != nil {
		return nil, err
	}
	if err := requireVersion(req.ExpectedVersion); err != nil {
		return nil, err
	}

	var (
		after     models.Story
		published []events.Event
	)
	err := s.repo.Commit(ctx, func(tx *database.Tx) error {
		before, err := loadVersion(ctx, tx, req.StoryID, req.ExpectedVersion, false)
		if err != nil {
			return err
		}

		target := req.Column
		if target == "" {
			target = column.Home(*before)
		}
		implied, err := column.ImpliedState(target)
		if err != nil {
			return err
		}

		after = before.Clone()
		stateChanged := false
		if target != column.Home(*before) {
			path, err := workflow.PathTo(*before, implied)
			if err != nil {
				return err
			}
			if len(path) > 0 {
				after.State = implied
				stateChanged = true
			}
		}
		if column.Home(after) != target {
			// a release or unscheduled story cannot be placed anywhere but its home
			return &models.ColumnTargetError{Column: string(target)}
		}

		members, err := columnMembers(ctx, tx, after.ProjectID, target, after.ID)
		if err != nil {
			return err
		}
		r, err := placement(members, req.AfterID, req.BeforeID)
		if errors.Is(err, rank.ErrExhausted) || errors.Is(err, rank.ErrInvalidBounds) {
			rebalanced, rerr := s.rebalance(ctx, tx, members, actor)
			if rerr != nil {
				return rerr
			}
			published = append(published, rebalanced...)
			r, err = placement(members, req.AfterID, req.BeforeID)
		}
		if err != nil {
			return err
		}
		after.Rank = r

		changes := history.Diff(*before, after)
		if len(changes) == 0 {
			return nil
		}
		if err := tx.UpdateStory(ctx, &after, req.ExpectedVersion, stateChanged); err != nil {
			return err
		}
		evType := events.EventStoryReordered
		if stateChanged {
			evType = events.EventStoryTransitioned
		}
		ev, err := record(ctx, tx, evType, changes, after, actor, req.MutationID)
		if err != nil {
			return err
		}
		published = append(published, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reorder story %s: %w", req.StoryID, err)
	}

	s.publish(ctx, published)
	return &after, nil
}

// columnMembers returns the stories living in col, ordered by rank, without skip.
func columnMembers(ctx context.Context, tx *database.Tx, projectID types.ProjectID, col column.Name, skip types.StoryID) ([]models.Story, error) {
	stories, err := tx.ListStories(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []models.Story
	for _, st := range stories {
		if st.ID != skip && column.Home(st) == col {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, rank.Compare)
	return out, nil
}

// placement picks the rank for a story dropped into members. after is anchored on
// its real successor and before on its real predecessor, so a neighbour that moved
// concurrently cannot produce a duplicate rank.
func placement(members []models.Story, afterID, beforeID *types.StoryID) (float64, error) {
	find := func(field string, id types.StoryID) (int, error) {
		i := slices.IndexFunc(members, func(m models.Story) bool { return m.ID == id })
		if i < 0 {
			return -1, &models.ValidationError{Field: field, Message: fmt.Sprintf("story %s is not in the target column", id)}
		}
		return i, nil
	}

	switch {
	case afterID != nil:
		i, err := find("after_id", *afterID)
		if err != nil {
			return 0, err
		}
		lo := members[i].Rank
		if i+1 < len(members) {
			hi := members[i+1].Rank
			return rank.Between(&lo, &hi)
		}
		return rank.Between(&lo, nil)
	case beforeID != nil:
		j, err := find("before_id", *beforeID)
		if err != nil {
			return 0, err
		}
		hi := members[j].Rank
		if j > 0 {
			lo := members[j-1].Rank
			return rank.Between(&lo, &hi)
		}
		return rank.Between(nil, &hi)
	}
	return endRank(members), nil
}

// rebalance respaces members in place and records a reorder for every story whose
// rank changed. The neighbours' events carry no mutation id: only the moved
// story's own event confirms the viewer's proposal.
func (s *service) rebalance(ctx context.Context, tx *database.Tx, members []models.Story, actor models.Actor) ([]events.Event, error) {
	var out []events.Event
	for i, r := range rank.Rebalance(len(members)) {
		before := members[i]
		if before.Rank == r {
			continue
		}
		moved := before.Clone()
		moved.Rank = r
		if err := tx.UpdateStory(ctx, &moved, before.Version, false); err != nil {
			return nil, err
		}
		ev, err := record(ctx, tx, events.EventStoryReordered, history.Diff(before, moved), moved, actor, "")
		if err != nil {
			return nil, err
		}
		members[i] = moved
		out = append(out, ev)
	}
	slog.Info("column rebalanced", "stories", len(members), "changed", len(out))
	return out, nil
}

// endOf returns the rank at the end of col, ignoring skip.
func endOf(stories []models.Story, col column.Name, skip types.StoryID) float64 {
	var members []models.Story
	for _, st := range stories {
		if st.ID != skip && column.Home(st) == col {
			members = append(members, st)
		}
	}
	return endRank(members)
}

func endRank(members []models.Story) float64 {
	ranks := make([]float64, 0, len(members))
	for _, m := range members {
		ranks = append(ranks, m.Rank)
	}
	return rank.Last(ranks)
}
