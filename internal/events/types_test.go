package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv-vogler/cm42-central/internal/models"
)

func TestEventType_IsStoryEvent(t *testing.T) {
	for _, et := range []EventType{
		EventStoryCreated, EventStoryTransitioned, EventStoryReordered, EventStoryEdited, EventStoryDeleted,
	} {
		assert.True(t, et.IsStoryEvent(), et)
	}
	assert.False(t, EventPing.IsStoryEvent())
	assert.False(t, EventPong.IsStoryEvent())
	assert.False(t, EventType("db_changed").IsStoryEvent())
}

func TestNewStoryEvent(t *testing.T) {
	est := 3
	story := models.Story{
		ID: 12, ProjectID: 4, Type: models.StoryTypeFeature, Title: "Login",
		State: models.StateStarted, Estimate: &est, Labels: []string{"ui"}, Version: 2,
	}

	ev, err := NewStoryEvent(EventStoryTransitioned, story, "m-1", 7)
	require.NoError(t, err)
	assert.Equal(t, story.ProjectID, ev.ProjectID)
	assert.Equal(t, story.ID, ev.StoryID)
	assert.Equal(t, "m-1", ev.MutationID)
	assert.Zero(t, ev.SequenceID, "the store assigns sequences")
	assert.False(t, ev.Timestamp.IsZero())

	got, err := ev.Story()
	require.NoError(t, err)
	assert.Equal(t, story.Title, got.Title)
	assert.Equal(t, 3, *got.Estimate)
	assert.Equal(t, []string{"ui"}, got.Labels)
}

func TestEvent_StoryWithoutPayload(t *testing.T) {
	_, err := Event{Type: EventStoryDeleted, SequenceID: 5}.Story()
	assert.Error(t, err)
}

func TestMessage_WireShape(t *testing.T) {
	data, err := json.Marshal(Message{
		Version: ProtocolVersion,
		Type:    MessageReplay,
		Replay:  &ReplayRequest{ProjectID: 1, AfterSeq: 10},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"type":"replay","replay":{"project_id":1,"after_seq":10}}`, string(data))
}
