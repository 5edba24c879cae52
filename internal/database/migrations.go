package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		point_scale TEXT NOT NULL DEFAULT 'fibonacci',
		created_at DATETIME NOT NULL
	)`,

	// last_seq is the newest event sequence handed out for the project
	`CREATE TABLE IF NOT EXISTS project_counters (
		project_id INTEGER PRIMARY KEY,
		last_seq INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	)`,

	// AUTOINCREMENT keeps deleted ids from being reused, so a stale "#id" reference
	// stays missing instead of pointing at a new story.
	`CREATE TABLE IF NOT EXISTS stories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		story_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		estimate INTEGER,
		state TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '',
		owned_by INTEGER,
		requested_by INTEGER,
		release_date DATETIME,
		rank REAL NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stories_project ON stories(project_id, rank)`,

	// History outlives the story it describes, so there is no foreign key.
	`CREATE TABLE IF NOT EXISTS story_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		story_id INTEGER NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		changed_by INTEGER NOT NULL DEFAULT 0,
		changed_at DATETIME NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_story_history_story ON story_history(story_id, id)`,

	`CREATE TABLE IF NOT EXISTS board_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		story_id INTEGER NOT NULL DEFAULT 0,
		mutation_id TEXT NOT NULL DEFAULT '',
		actor INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE (project_id, seq)
	)`,
}

// runMigrations creates the database schema
func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
