package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// appendEvent assigns the project's next sequence to ev and stores it. Must run in
// the same transaction as the change it describes.
func appendEvent(ctx context.Context, q querier, ev *events.Event) error {
	res, err := q.ExecContext(ctx,
		`UPDATE project_counters SET last_seq = last_seq + 1 WHERE project_id = ?`, ev.ProjectID.ToInt())
	if err != nil {
		return fmt.Errorf("failed to advance sequence for project %d: %w", ev.ProjectID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("project %d: %w", ev.ProjectID, models.ErrProjectNotFound)
	}

	var seq int64
	if err := q.QueryRowContext(ctx,
		`SELECT last_seq FROM project_counters WHERE project_id = ?`, ev.ProjectID.ToInt()).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read sequence for project %d: %w", ev.ProjectID, err)
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.SequenceID = types.Seq(seq)

	if _, err := q.ExecContext(ctx,
		`INSERT INTO board_events (project_id, seq, event_type, story_id, mutation_id, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ProjectID.ToInt(), seq, string(ev.Type), ev.StoryID.ToInt(), ev.MutationID,
		ev.Actor.ToInt(), string(ev.Payload), ev.Timestamp); err != nil {
		return fmt.Errorf("failed to append event for project %d: %w", ev.ProjectID, err)
	}
	return nil
}

// eventsSince returns a project's events with seq > after, oldest first.
func eventsSince(ctx context.Context, q querier, projectID types.ProjectID, after types.Seq) ([]events.Event, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT project_id, seq, event_type, story_id, mutation_id, actor, payload, created_at
		FROM board_events WHERE project_id = ? AND seq > ? ORDER BY seq`,
		projectID.ToInt(), int64(after))
	if err != nil {
		return nil, fmt.Errorf("failed to query events for project %d: %w", projectID, err)
	}
	defer closeRows(rows)

	var out []events.Event
	for rows.Next() {
		var (
			ev      events.Event
			evType  string
			payload string
		)
		if err := rows.Scan(&ev.ProjectID, &ev.SequenceID, &evType, &ev.StoryID, &ev.MutationID,
			&ev.Actor, &payload, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = events.EventType(evType)
		if payload != "" {
			ev.Payload = json.RawMessage(payload)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return out, nil
}

func lastSeq(ctx context.Context, q querier, projectID types.ProjectID) (types.Seq, error) {
	var seq int64
	err := q.QueryRowContext(ctx,
		`SELECT last_seq FROM project_counters WHERE project_id = ?`, projectID.ToInt()).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence for project %d: %w", projectID, err)
	}
	return types.Seq(seq), nil
}

// ============================================================================
// HISTORY
// ============================================================================

func appendHistory(ctx context.Context, q querier, entries ...models.HistoryEntry) error {
	for _, e := range entries {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO story_history (story_id, field, old_value, new_value, changed_by, changed_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.StoryID.ToInt(), e.Field, e.OldValue, e.NewValue, e.ChangedBy.ToInt(), e.ChangedAt.UTC(), int64(e.Seq)); err != nil {
			return fmt.Errorf("failed to append history for story %s: %w", e.StoryID, err)
		}
	}
	return nil
}

func listHistory(ctx context.Context, q querier, storyID types.StoryID) ([]models.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, story_id, field, old_value, new_value, changed_by, changed_at, seq
		FROM story_history WHERE story_id = ? ORDER BY id`, storyID.ToInt())
	if err != nil {
		return nil, fmt.Errorf("failed to query history for story %s: %w", storyID, err)
	}
	defer closeRows(rows)

	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.StoryID, &e.Field, &e.OldValue, &e.NewValue,
			&e.ChangedBy, &e.ChangedAt, &e.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.ChangedAt = e.ChangedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return out, nil
}
