package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

func createProject(ctx context.Context, q querier, name string, scale models.PointScale) (*models.Project, error) {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx,
		`INSERT INTO projects (name, point_scale, created_at) VALUES (?, ?, ?)`,
		name, string(scale), now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project '%s': %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get project ID after insert: %w", err)
	}

	// Initialize the event sequence counter
	if _, err := q.ExecContext(ctx,
		`INSERT INTO project_counters (project_id, last_seq) VALUES (?, 0)`, id); err != nil {
		return nil, fmt.Errorf("failed to initialize project counter for project %d: %w", id, err)
	}

	return &models.Project{
		ID:         types.ProjectID(id),
		Name:       name,
		PointScale: scale,
		CreatedAt:  now,
	}, nil
}

func scanProject(row rowScanner) (models.Project, error) {
	var (
		p     models.Project
		scale string
	)
	if err := row.Scan(&p.ID, &p.Name, &scale, &p.CreatedAt); err != nil {
		return p, err
	}
	p.PointScale = models.PointScale(scale)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func getProject(ctx context.Context, q querier, id types.ProjectID) (*models.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx,
		`SELECT id, name, point_scale, created_at FROM projects WHERE id = ?`, id.ToInt()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, models.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}
	return &p, nil
}

func listProjects(ctx context.Context, q querier) ([]models.Project, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, point_scale, created_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all projects: %w", err)
	}
	defer closeRows(rows)

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return out, nil
}
