package models

import (
	"time"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// HistoryEntry records one field change on a story. Entries are immutable once written.
type HistoryEntry struct {
	ID        int           `json:"id"`
	StoryID   types.StoryID `json:"story_id"`
	Field     string        `json:"field"`
	OldValue  string        `json:"old_value"`
	NewValue  string        `json:"new_value"`
	ChangedBy types.UserID  `json:"changed_by"`
	ChangedAt time.Time     `json:"changed_at"`
	Seq       types.Seq     `json:"seq,omitempty"` // event that produced the change, 0 if recorded directly
}
