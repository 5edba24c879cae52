package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// ProtocolVersion is stamped on every wire message.
const ProtocolVersion = 1

// EventType indicates what kind of board change occurred
type EventType string

const (
	EventStoryCreated      EventType = "story_created"
	EventStoryTransitioned EventType = "story_transitioned"
	EventStoryReordered    EventType = "story_reordered"
	EventStoryEdited       EventType = "story_edited"
	EventStoryDeleted      EventType = "story_deleted"
	EventPing              EventType = "ping"
	EventPong              EventType = "pong"
)

// IsStoryEvent reports whether t changes board state.
func (t EventType) IsStoryEvent() bool {
	switch t {
	case EventStoryCreated, EventStoryTransitioned, EventStoryReordered, EventStoryEdited, EventStoryDeleted:
		return true
	}
	return false
}

// Event is one committed board change. SequenceID is assigned by the store when the
// change commits and orders events within a project.
type Event struct {
	Type       EventType       `json:"type"`
	ProjectID  types.ProjectID `json:"project_id"`
	StoryID    types.StoryID   `json:"story_id,omitempty"`
	SequenceID types.Seq       `json:"seq"`
	MutationID string          `json:"mutation_id,omitempty"` // set by the originating viewer
	Actor      types.UserID    `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"` // story snapshot after the change
	Timestamp  time.Time       `json:"timestamp"`
}

// NewStoryEvent builds an event carrying a snapshot of story. The sequence is left
// for the store to assign.
func NewStoryEvent(t EventType, story models.Story, mutationID string, actor types.UserID) (Event, error) {
	payload, err := json.Marshal(story)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode story snapshot: %w", err)
	}
	return Event{
		Type:       t,
		ProjectID:  story.ProjectID,
		StoryID:    story.ID,
		MutationID: mutationID,
		Actor:      actor,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Story decodes the snapshot carried by the event.
func (e Event) Story() (models.Story, error) {
	var s models.Story
	if len(e.Payload) == 0 {
		return s, fmt.Errorf("event %d (%s) carries no story", e.SequenceID, e.Type)
	}
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return s, fmt.Errorf("failed to decode story snapshot: %w", err)
	}
	return s, nil
}

// Wire message types
const (
	MessageEvent     = "event"
	MessageSubscribe = "subscribe"
	MessageReplay    = "replay"
	MessagePing      = "ping"
	MessagePong      = "pong"
)

// SubscribeMessage is sent by clients to subscribe to specific project updates
type SubscribeMessage struct {
	ProjectID types.ProjectID `json:"project_id"` // 0 = all projects
}

// ReplayRequest asks the daemon to resend a project's events after AfterSeq.
type ReplayRequest struct {
	ProjectID types.ProjectID `json:"project_id"`
	AfterSeq  types.Seq       `json:"after_seq"`
}

// Message wraps events and control messages for wire protocol
type Message struct {
	Version   int               `json:"version,omitempty"`
	Type      string            `json:"type"` // "event", "subscribe", "replay", "ping", "pong"
	Event     *Event            `json:"event,omitempty"`
	Subscribe *SubscribeMessage `json:"subscribe,omitempty"`
	Replay    *ReplayRequest    `json:"replay,omitempty"`
}
