package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv-vogler/cm42-central/internal/models"
)

func intPtr(i int) *int { return &i }

func TestStoryActionFor(t *testing.T) {
	tests := []struct {
		state models.State
		want  []models.Action
	}{
		{models.StateUnstarted, []models.Action{models.ActionStart}},
		{models.StateStarted, []models.Action{models.ActionFinish}},
		{models.StateFinished, []models.Action{models.ActionDeliver}},
		{models.StateDelivered, []models.Action{models.ActionAccept, models.ActionReject}},
		{models.StateRejected, []models.Action{models.ActionRestart}},
		{models.StateAccepted, []models.Action{}},
		// unknown and unscheduled fall back to the unstarted actions
		{models.StateUnscheduled, []models.Action{models.ActionStart}},
		{models.State("bogus"), []models.Action{models.ActionStart}},
		{models.State(""), []models.Action{models.ActionStart}},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, StoryActionFor(tt.state))
		})
	}
}

func TestStoryActionFor_ReturnsCopy(t *testing.T) {
	got := StoryActionFor(models.StateDelivered)
	got[0] = models.ActionRestart
	assert.Equal(t, models.ActionAccept, StoryActionFor(models.StateDelivered)[0])
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.StateAccepted))
	assert.False(t, IsTerminal(models.StateDelivered))
}

func TestActionsFor(t *testing.T) {
	t.Run("unestimated feature selects points", func(t *testing.T) {
		set := ActionsFor(models.StoryTypeFeature, nil, models.StateUnstarted, models.PointScaleFibonacci)
		assert.Equal(t, PointSelection, set.Kind)
		assert.Equal(t, []int{0, 1, 2, 3, 5, 8}, set.Points)
		assert.Empty(t, set.Actions)
	})

	t.Run("zero estimate counts as estimated", func(t *testing.T) {
		set := ActionsFor(models.StoryTypeFeature, intPtr(0), models.StateUnstarted, models.PointScaleFibonacci)
		assert.Equal(t, Transitions, set.Kind)
		assert.Equal(t, []models.Action{models.ActionStart}, set.Actions)
	})

	t.Run("bug and chore skip the gate", func(t *testing.T) {
		for _, st := range []models.StoryType{models.StoryTypeBug, models.StoryTypeChore} {
			set := ActionsFor(st, nil, models.StateStarted, models.PointScaleLinear)
			assert.Equal(t, Transitions, set.Kind, st)
			assert.True(t, set.Allows(models.ActionFinish))
		}
	})

	t.Run("release", func(t *testing.T) {
		set := ActionsFor(models.StoryTypeRelease, nil, "", models.PointScaleFibonacci)
		assert.Equal(t, ReleaseOnly, set.Kind)
		assert.False(t, set.Allows(models.ActionStart))
	})

	t.Run("scale follows project", func(t *testing.T) {
		set := ActionsFor(models.StoryTypeFeature, nil, models.StateUnstarted, models.PointScalePowersOfTwo)
		assert.Equal(t, []int{0, 1, 2, 4, 8}, set.Points)
	})
}

func TestRequestAction(t *testing.T) {
	t.Run("estimate then start", func(t *testing.T) {
		a := models.Story{ID: 1, Type: models.StoryTypeFeature, State: models.StateUnstarted}

		_, err := RequestAction(a, models.ActionStart)
		require.ErrorIs(t, err, models.ErrInvalidTransition)

		a.Estimate = intPtr(2)
		next, err := RequestAction(a, models.ActionStart)
		require.NoError(t, err)
		assert.Equal(t, models.StateStarted, next)
	})

	t.Run("reject then restart", func(t *testing.T) {
		b := models.Story{ID: 2, Type: models.StoryTypeChore, State: models.StateDelivered}

		next, err := RequestAction(b, models.ActionReject)
		require.NoError(t, err)
		assert.Equal(t, models.StateRejected, next)

		b.State = next
		next, err = RequestAction(b, models.ActionRestart)
		require.NoError(t, err)
		assert.Equal(t, models.StateStarted, next)
	})

	t.Run("action not offered", func(t *testing.T) {
		s := models.Story{ID: 3, Type: models.StoryTypeBug, State: models.StateStarted}
		_, err := RequestAction(s, models.ActionAccept)

		var terr *models.TransitionError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, models.ActionAccept, terr.Action)
		assert.Equal(t, models.StateStarted, terr.State)
	})

	t.Run("accepted is terminal", func(t *testing.T) {
		s := models.Story{ID: 4, Type: models.StoryTypeBug, State: models.StateAccepted}
		for _, a := range []models.Action{models.ActionStart, models.ActionRestart, models.ActionReject} {
			_, err := RequestAction(s, a)
			assert.ErrorIs(t, err, models.ErrInvalidTransition, a)
		}
	})

	t.Run("release has no workflow", func(t *testing.T) {
		s := models.Story{ID: 5, Type: models.StoryTypeRelease}
		_, err := RequestAction(s, models.ActionStart)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestPathTo(t *testing.T) {
	chore := models.Story{ID: 1, Type: models.StoryTypeChore, State: models.StateUnstarted}

	path, err := PathTo(chore, models.StateAccepted)
	require.NoError(t, err)
	assert.Equal(t, []models.Action{
		models.ActionStart, models.ActionFinish, models.ActionDeliver, models.ActionAccept,
	}, path)

	path, err = PathTo(chore, models.StateUnstarted)
	require.NoError(t, err)
	assert.Empty(t, path)

	rejected := models.Story{ID: 2, Type: models.StoryTypeBug, State: models.StateRejected}
	path, err = PathTo(rejected, models.StateStarted)
	require.NoError(t, err)
	assert.Equal(t, []models.Action{models.ActionRestart}, path)

	// nothing leads back to unstarted
	_, err = PathTo(rejected, models.StateUnstarted)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	accepted := models.Story{ID: 3, Type: models.StoryTypeBug, State: models.StateAccepted}
	_, err = PathTo(accepted, models.StateStarted)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	unestimated := models.Story{ID: 4, Type: models.StoryTypeFeature, State: models.StateUnstarted}
	_, err = PathTo(unestimated, models.StateStarted)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestReleaseDelayed(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	release := models.Story{Type: models.StoryTypeRelease, ReleaseDate: &due}

	assert.True(t, ReleaseDelayed(release, due.AddDate(0, 0, 7)))
	assert.False(t, ReleaseDelayed(release, due.AddDate(0, 0, -7)))
	assert.False(t, ReleaseDelayed(release, time.Time{}))

	feature := models.Story{Type: models.StoryTypeFeature}
	assert.False(t, ReleaseDelayed(feature, due))
}
