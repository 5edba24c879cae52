package tui

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv-vogler/cm42-central/internal/app"
	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/search"
	storyservice "github.com/jv-vogler/cm42-central/internal/services/story"
	"github.com/jv-vogler/cm42-central/internal/testutil"
	"github.com/jv-vogler/cm42-central/internal/types"
	"github.com/jv-vogler/cm42-central/internal/workflow"
)

var writer = models.Actor{ID: 1, CanWrite: true}

type fixture struct {
	app     *app.App
	project models.Project
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	a := app.New(db)
	projectID := testutil.CreateTestProject(t, db, "Viewer")
	project, err := a.ProjectService.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	return fixture{app: a, project: *project}
}

func (f fixture) story(t *testing.T, title string) *models.Story {
	t.Helper()
	s, err := f.app.StoryService.CreateStory(context.Background(), writer, storyservice.CreateStoryRequest{
		ProjectID: f.project.ID,
		Type:      models.StoryTypeChore,
		Title:     title,
	})
	require.NoError(t, err)
	return s
}

func (f fixture) eventsAfter(t *testing.T, seq types.Seq) []events.Event {
	t.Helper()
	evs, err := f.app.StoryService.Events(context.Background(), f.project.ID, seq)
	require.NoError(t, err)
	return evs
}

func (f fixture) loaded(t *testing.T, opts ...Option) *Model {
	t.Helper()
	ctx := context.Background()
	m := New(ctx, f.app.Repo(), f.project, nil, opts...)
	m.Update(m.load()())
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return m
}

// settle feeds the server's answer to a proposal and the replay that follows it.
func settle(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd, "a mutation was sent")
	msg := cmd()
	require.IsType(t, MutationMsg{}, msg)
	_, next := m.Update(msg)
	require.NotNil(t, next, "the replica catches up after an answer")
	m.Update(next())
}

func press(m *Model, k tea.Key) tea.Cmd {
	_, cmd := m.Update(tea.KeyPressMsg(k))
	return cmd
}

func char(r rune) tea.Key {
	return tea.Key{Text: string(r), Code: r}
}

// ============================================================================
// SYNC
// ============================================================================

func TestSnapshotLoad(t *testing.T) {
	f := setup(t)
	f.story(t, "One")
	f.story(t, "Two")

	m := f.loaded(t)

	assert.Equal(t, types.Seq(2), m.Board().LastSeq())
	assert.Len(t, m.Board().Columns(column.Filters{})[column.ChillyBin], 2)
	assert.Equal(t, Offline, m.Connection())
}

func TestLiveEventIsApplied(t *testing.T) {
	f := setup(t)
	f.story(t, "One")
	stream := make(chan events.Event, 1)
	m := f.loaded(t, WithStream(stream))
	assert.Equal(t, Live, m.Connection())

	created := f.story(t, "Two")
	evs := f.eventsAfter(t, 1)
	require.Len(t, evs, 1)

	_, cmd := m.Update(EventMsg{Event: evs[0]})
	assert.NotNil(t, cmd, "the viewer keeps listening")

	got, ok := m.Board().Story(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Two", got.Title)
	assert.Equal(t, types.Seq(2), m.Board().LastSeq())
}

func TestGapIsFilledByReplay(t *testing.T) {
	f := setup(t)
	f.story(t, "One")
	m := f.loaded(t, WithStream(make(chan events.Event)))

	f.story(t, "Two")
	f.story(t, "Three")
	evs := f.eventsAfter(t, 1)
	require.Len(t, evs, 2)

	// seq 3 arrives before seq 2
	m.Update(EventMsg{Event: evs[1]})
	missing, gap := m.Board().Gap()
	require.True(t, gap)
	assert.Equal(t, types.Seq(2), missing)
	assert.Contains(t, m.View().Content, "waiting for 2")

	m.Update(replay(context.Background(), f.app.Repo(), f.project.ID, m.Board().LastSeq())())

	_, gap = m.Board().Gap()
	assert.False(t, gap)
	assert.Equal(t, types.Seq(3), m.Board().LastSeq())
	assert.Len(t, m.Board().Columns(column.Filters{})[column.ChillyBin], 3)
}

func TestForeignEventIsIgnored(t *testing.T) {
	f := setup(t)
	m := f.loaded(t, WithStream(make(chan events.Event)))

	m.Update(EventMsg{Event: events.Event{Type: events.EventStoryCreated, ProjectID: f.project.ID + 1, SequenceID: 1}})

	assert.Equal(t, types.Seq(0), m.Board().LastSeq())
	assert.Empty(t, m.notice)
}

func TestStreamClosed(t *testing.T) {
	f := setup(t)
	stream := make(chan events.Event)
	m := f.loaded(t, WithStream(stream))

	close(stream)
	msg := listen(context.Background(), stream)()
	assert.Equal(t, StreamClosedMsg{}, msg)

	m.Update(msg)
	assert.Equal(t, Lost, m.Connection())
	assert.Contains(t, m.View().Content, "disconnected")
}

func TestListenWithoutStream(t *testing.T) {
	assert.Nil(t, listen(context.Background(), nil))
}

// ============================================================================
// KEYS
// ============================================================================

func TestNavigation(t *testing.T) {
	f := setup(t)
	f.story(t, "One")
	f.story(t, "Two")
	m := f.loaded(t)

	press(m, char('j'))
	s, ok := m.currentStory()
	require.True(t, ok)
	assert.Equal(t, "Two", s.Title)

	// clamped at the bottom
	press(m, char('j'))
	assert.Equal(t, 1, m.selectedStory)

	press(m, tea.Key{Code: tea.KeyRight})
	assert.Equal(t, column.InProgress, m.currentColumn())
	assert.Equal(t, 0, m.selectedStory)

	press(m, char('h'))
	assert.Equal(t, column.ChillyBin, m.currentColumn())

	// clamped at the left edge
	press(m, char('h'))
	assert.Equal(t, 0, m.selectedColumn)
}

func TestToggleColumn(t *testing.T) {
	f := setup(t)
	m := f.loaded(t)

	press(m, char('v'))
	assert.True(t, m.visibility.Hidden(column.ChillyBin))
	assert.Contains(t, m.notice, "hidden")

	press(m, char('v'))
	assert.False(t, m.visibility.Hidden(column.ChillyBin))
}

func TestStoryDetailAndHelp(t *testing.T) {
	f := setup(t)
	f.story(t, "Detailed")
	m := f.loaded(t)

	press(m, tea.Key{Code: tea.KeyEnter})
	require.True(t, m.showStory)
	assert.Contains(t, m.View().Content, "Detailed")

	press(m, tea.Key{Code: tea.KeyEsc})
	assert.False(t, m.showStory)

	press(m, char('?'))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View().Content, "hide/show column")
}

func TestQuit(t *testing.T) {
	f := setup(t)
	m := f.loaded(t)

	cmd := press(m, char('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestEpicColumns(t *testing.T) {
	f := setup(t)
	_, err := f.app.StoryService.CreateStory(context.Background(), writer, storyservice.CreateStoryRequest{
		ProjectID: f.project.ID,
		Type:      models.StoryTypeChore,
		Title:     "Tagged",
		Labels:    []string{"auth"},
	})
	require.NoError(t, err)
	f.story(t, "Untagged")

	m := f.loaded(t, WithLabels([]string{"auth"}))

	assert.Equal(t, []column.Name{column.EpicColumn("auth")}, m.columns())
	content := m.View().Content
	assert.Contains(t, content, "Tagged")
	assert.NotContains(t, content, "Untagged")
}

func TestViewBeforeResize(t *testing.T) {
	f := setup(t)
	m := New(context.Background(), f.app.Repo(), f.project, nil)
	assert.Equal(t, "Loading...", m.View().Content)
}

// ============================================================================
// WRITES
// ============================================================================

func TestTransitionFromViewer(t *testing.T) {
	f := setup(t)
	s := f.story(t, "One")
	m := f.loaded(t, WithWriter(f.app.StoryService, writer))

	cmd := press(m, char('1'))
	assert.Equal(t, 1, m.Board().Pending())
	assert.Len(t, m.partition()[column.InProgress], 1, "shown in its new column before the server answers")
	assert.Contains(t, m.View().Content, "1 pending")

	settle(t, m, cmd)

	assert.Zero(t, m.Board().Pending())
	got, ok := m.Board().Story(s.ID)
	require.True(t, ok)
	assert.Equal(t, models.StateStarted, got.State)
	assert.Equal(t, types.Seq(2), m.Board().LastSeq())
}

func TestRejectedChangeRollsBack(t *testing.T) {
	f := setup(t)
	s := f.story(t, "One")
	m := f.loaded(t, WithWriter(f.app.StoryService, writer))

	// someone else starts the story; the replica has not seen it yet
	_, err := f.app.StoryService.Transition(context.Background(), writer, storyservice.TransitionRequest{
		StoryID: s.ID, Action: models.ActionStart, ExpectedVersion: s.Version,
	})
	require.NoError(t, err)

	settle(t, m, press(m, char('1')))

	assert.Zero(t, m.Board().Pending())
	assert.Contains(t, m.notice, "rolled back")
	assert.Contains(t, m.notice, "stale")
	got, _ := m.Board().Story(s.ID)
	assert.Equal(t, models.StateStarted, got.State, "the replica caught up with the other change")
	assert.Equal(t, 2, got.Version)
}

func TestEstimateFromViewer(t *testing.T) {
	f := setup(t)
	s, err := f.app.StoryService.CreateStory(context.Background(), writer, storyservice.CreateStoryRequest{
		ProjectID: f.project.ID, Type: models.StoryTypeFeature, Title: "Unestimated",
	})
	require.NoError(t, err)
	m := f.loaded(t, WithWriter(f.app.StoryService, writer))

	press(m, tea.Key{Code: tea.KeyEnter})
	assert.Contains(t, m.View().Content, "Actions")
	press(m, tea.Key{Code: tea.KeyEsc})

	points := workflow.ActionsForStory(*s, f.project.PointScale).Points
	require.Greater(t, len(points), 1)
	settle(t, m, press(m, char('2')))

	got, _ := m.Board().Story(s.ID)
	require.NotNil(t, got.Estimate)
	assert.Equal(t, points[1], *got.Estimate)
}

func TestMoveBetweenColumns(t *testing.T) {
	f := setup(t)
	s := f.story(t, "One")
	m := f.loaded(t, WithWriter(f.app.StoryService, writer))

	cmd := press(m, char('>'))
	assert.Equal(t, column.InProgress, m.currentColumn(), "the selection follows the story")
	settle(t, m, cmd)

	got, _ := m.Board().Story(s.ID)
	assert.Equal(t, models.StateStarted, got.State)
	assert.Zero(t, m.Board().Pending())

	// a drop on done walks the rest of the workflow
	settle(t, m, press(m, char('>')))
	got, _ = m.Board().Story(s.ID)
	assert.Equal(t, models.StateAccepted, got.State)
	assert.Equal(t, column.Done, m.currentColumn())

	// nothing right of done
	assert.Nil(t, press(m, char('>')))
	assert.Zero(t, m.Board().Pending())
}

func TestShiftWithinColumn(t *testing.T) {
	f := setup(t)
	f.story(t, "One")
	f.story(t, "Two")
	f.story(t, "Three")
	m := f.loaded(t, WithWriter(f.app.StoryService, writer))

	cmd := press(m, char('J'))
	assert.Equal(t, 1, m.selectedStory)
	settle(t, m, cmd)

	titles := func() []string {
		var out []string
		for _, s := range m.Board().Columns(column.Filters{})[column.ChillyBin] {
			out = append(out, s.Title)
		}
		return out
	}
	assert.Equal(t, []string{"Two", "One", "Three"}, titles())

	settle(t, m, press(m, char('K')))
	assert.Equal(t, []string{"One", "Two", "Three"}, titles())
	assert.Equal(t, 0, m.selectedStory)
}

func TestReadOnlyViewer(t *testing.T) {
	f := setup(t)
	f.story(t, "One")

	m := f.loaded(t)
	assert.Nil(t, press(m, char('1')))
	assert.Equal(t, "Read-only viewer", m.notice)

	m = f.loaded(t, WithWriter(f.app.StoryService, models.Actor{ID: 2}))
	assert.Nil(t, press(m, char('>')))
	assert.Contains(t, m.notice, "Read-only")
	assert.Zero(t, m.Board().Pending())
}

// ============================================================================
// DETAIL, SEARCH, RELEASES
// ============================================================================

// openLinks feeds the pending link resolution into the model.
func openLinks(t *testing.T, m *Model) {
	t.Helper()
	cmd := m.linksCmd()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

func TestStoryDetailFollowsLinkTargets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target := f.story(t, "Target")
	_, err := f.app.StoryService.CreateStory(ctx, writer, storyservice.CreateStoryRequest{
		ProjectID:   f.project.ID,
		Type:        models.StoryTypeChore,
		Title:       "Source",
		Description: "depends on " + target.ID.String(),
	})
	require.NoError(t, err)

	m := f.loaded(t, WithLinks(f.app.Links), WithObserver(f.app.Links))
	press(m, char('j'))
	cmd := press(m, tea.Key{Code: tea.KeyEnter})
	require.NotNil(t, cmd, "opening the story resolves its references")
	m.Update(cmd())
	content := m.View().Content
	assert.Contains(t, content, "References")
	assert.Contains(t, content, "Target (unstarted)")

	// the target starts; the open view picks up its new state
	seq := m.Board().LastSeq()
	_, err = f.app.StoryService.Transition(ctx, writer, storyservice.TransitionRequest{
		StoryID: target.ID, Action: models.ActionStart, ExpectedVersion: target.Version,
	})
	require.NoError(t, err)
	evs := f.eventsAfter(t, seq)
	require.Len(t, evs, 1)
	m.Update(EventMsg{Event: evs[0]})
	openLinks(t, m)
	assert.Contains(t, m.View().Content, "Target (started)")

	// then it is deleted
	require.NoError(t, f.app.StoryService.DeleteStory(ctx, writer, storyservice.DeleteStoryRequest{StoryID: target.ID}))
	evs = f.eventsAfter(t, m.Board().LastSeq())
	require.Len(t, evs, 1)
	m.Update(EventMsg{Event: evs[0]})
	openLinks(t, m)
	content = m.View().Content
	assert.Contains(t, content, target.ID.String()+" - missing")
	assert.NotContains(t, content, "Target (")
}

func TestSearchColumn(t *testing.T) {
	f := setup(t)
	f.story(t, "Login bug")
	f.story(t, "Export")

	m := f.loaded(t, WithSearch("login", search.NewText()))
	assert.Contains(t, m.columns(), column.SearchResults)
	assert.False(t, m.visibility.Hidden(column.SearchResults))
	assert.Len(t, m.partition()[column.SearchResults], 1)

	// a new matching story joins the column as its event arrives
	f.story(t, "Login page")
	evs := f.eventsAfter(t, m.Board().LastSeq())
	require.Len(t, evs, 1)
	m.Update(EventMsg{Event: evs[0]})
	assert.Len(t, m.partition()[column.SearchResults], 2)
	assert.Contains(t, m.View().Content, "Login page")
}

type fixedProjector time.Time

func (p fixedProjector) ProjectedCompletion(context.Context, types.ProjectID) (time.Time, error) {
	return time.Time(p), nil
}

func TestDelayedRelease(t *testing.T) {
	f := setup(t)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.app.StoryService.CreateStory(context.Background(), writer, storyservice.CreateStoryRequest{
		ProjectID: f.project.ID, Type: models.StoryTypeRelease, Title: "v1", ReleaseDate: &due,
	})
	require.NoError(t, err)

	m := f.loaded(t, WithProjector(fixedProjector(due.AddDate(0, 1, 0))))
	assert.Contains(t, m.View().Content, "DELAYED")

	onTime := f.loaded(t, WithProjector(fixedProjector(due.AddDate(0, -1, 0))))
	assert.NotContains(t, onTime.View().Content, "DELAYED")

	assert.NotContains(t, f.loaded(t).View().Content, "DELAYED")
}
