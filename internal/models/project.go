package models

import (
	"time"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// Project represents a container for stories.
// Projects are the top-level organizational unit; every board belongs to one project.
type Project struct {
	ID         types.ProjectID `json:"id"`
	Name       string          `json:"name"`
	PointScale PointScale      `json:"point_scale"`
	CreatedAt  time.Time       `json:"created_at"`
}
