// Package history records field-level changes to stories and serves them back in
// commit order.
package history

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Store persists history entries. Entries are append-only.
type Store interface {
	AppendHistory(ctx context.Context, entries ...models.HistoryEntry) error
	ListHistory(ctx context.Context, storyID types.StoryID) ([]models.HistoryEntry, error)
}

// Tracker writes history entries for committed changes.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker returns a tracker writing to store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock replaces the tracker's time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Record appends one entry for a single field change.
func (t *Tracker) Record(ctx context.Context, story models.Story, field, oldValue, newValue string, actor types.UserID) error {
	return t.RecordChanges(ctx, story.ID, []Change{{Field: field, Old: oldValue, New: newValue}}, actor, 0)
}

// RecordChanges appends one entry per change, stamped with the same time and event
// sequence.
func (t *Tracker) RecordChanges(ctx context.Context, storyID types.StoryID, changes []Change, actor types.UserID, seq types.Seq) error {
	if len(changes) == 0 {
		return nil
	}
	at := t.now().UTC()
	entries := make([]models.HistoryEntry, len(changes))
	for i, c := range changes {
		entries[i] = models.HistoryEntry{
			StoryID:   storyID,
			Field:     c.Field,
			OldValue:  c.Old,
			NewValue:  c.New,
			ChangedBy: actor,
			ChangedAt: at,
			Seq:       seq,
		}
	}
	if err := t.store.AppendHistory(ctx, entries...); err != nil {
		return fmt.Errorf("failed to record history for story %s: %w", storyID, err)
	}
	return nil
}

// HistoryFor returns the story's entries oldest first. The entries are read once;
// the returned sequence can be ranged over repeatedly.
func (t *Tracker) HistoryFor(ctx context.Context, storyID types.StoryID) (iter.Seq[models.HistoryEntry], error) {
	entries, err := t.store.ListHistory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for story %s: %w", storyID, err)
	}
	return func(yield func(models.HistoryEntry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}, nil
}

// ============================================================================
// DIFF
// ============================================================================

// Change is one field that differs between two versions of a story.
type Change struct {
	Field string
	Old   string
	New   string
}

// Diff lists the tracked fields that differ between before and after, in a fixed
// field order. Version and timestamps are bookkeeping and never appear.
func Diff(before, after models.Story) []Change {
	fields := []struct {
		name     string
		old, new string
	}{
		{"title", before.Title, after.Title},
		{"description", before.Description, after.Description},
		{"notes", before.Notes, after.Notes},
		{"story_type", before.Type.String(), after.Type.String()},
		{"estimate", formatInt(before.Estimate), formatInt(after.Estimate)},
		{"state", before.State.String(), after.State.String()},
		{"labels", models.JoinLabels(before.Labels), models.JoinLabels(after.Labels)},
		{"owned_by", formatUser(before.OwnedBy), formatUser(after.OwnedBy)},
		{"requested_by", formatUser(before.RequestedBy), formatUser(after.RequestedBy)},
		{"release_date", formatDate(before.ReleaseDate), formatDate(after.ReleaseDate)},
		{"rank", formatRank(before.Rank), formatRank(after.Rank)},
	}

	var out []Change
	for _, f := range fields {
		if f.old != f.new {
			out = append(out, Change{Field: f.name, Old: f.old, New: f.new})
		}
	}
	return out
}

// Created lists the non-empty fields of a new story as changes from nothing.
func Created(s models.Story) []Change {
	return Diff(models.Story{}, s)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatUser(v *types.UserID) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(v.ToInt())
}

func formatDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.DateOnly)
}

func formatRank(r float64) string {
	return strconv.FormatFloat(r, 'g', -1, 64)
}
