package workflow

import (
	"context"
	"time"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Projector estimates when a project's remaining unaccepted work will be done.
// The velocity model lives outside the core; only the resulting date is consumed.
type Projector interface {
	ProjectedCompletion(ctx context.Context, projectID types.ProjectID) (time.Time, error)
}

// ReleaseDelayed reports whether a release is due before the projected completion.
// A zero projection means no projection is available.
func ReleaseDelayed(story models.Story, projected time.Time) bool {
	if !story.Type.IsRelease() || story.ReleaseDate == nil || projected.IsZero() {
		return false
	}
	return story.ReleaseDate.Before(projected)
}
