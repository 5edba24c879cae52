package models

import (
	"slices"
	"strings"
	"time"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// MaxTitleLength bounds story titles.
const MaxTitleLength = 255

// Story is a single card on the board.
type Story struct {
	ID          types.StoryID   `json:"id"`
	ProjectID   types.ProjectID `json:"project_id"`
	Type        StoryType       `json:"story_type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Estimate    *int            `json:"estimate,omitempty"`     // features only
	State       State           `json:"state,omitempty"`        // empty for releases
	Labels      []string        `json:"labels,omitempty"`       // ordered set
	OwnedBy     *types.UserID   `json:"owned_by,omitempty"`     // weak reference
	RequestedBy *types.UserID   `json:"requested_by,omitempty"`
	ReleaseDate *time.Time      `json:"release_date,omitempty"` // releases only
	Rank        float64         `json:"rank"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (s Story) Clone() Story {
	c := s
	c.Labels = slices.Clone(s.Labels)
	if s.Estimate != nil {
		v := *s.Estimate
		c.Estimate = &v
	}
	if s.OwnedBy != nil {
		v := *s.OwnedBy
		c.OwnedBy = &v
	}
	if s.RequestedBy != nil {
		v := *s.RequestedBy
		c.RequestedBy = &v
	}
	if s.ReleaseDate != nil {
		v := *s.ReleaseDate
		c.ReleaseDate = &v
	}
	return c
}

// IsEstimated reports whether the story passes the estimate gate. Only features can
// be unestimated; bugs and chores always count as estimated.
func (s Story) IsEstimated() bool {
	return IsEstimated(s.Type, s.Estimate)
}

// IsEstimated is the estimate gate for a (type, estimate) pair.
func IsEstimated(storyType StoryType, estimate *int) bool {
	return storyType != StoryTypeFeature || estimate != nil
}

// Normalize applies the per-type shape rules: releases drop workflow fields, other
// stories default to unstarted, and only features keep an estimate.
func (s *Story) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.Labels = NormalizeLabels(s.Labels)
	if s.Type.IsRelease() {
		s.State = ""
		s.Estimate = nil
		s.OwnedBy = nil
		s.Labels = nil
		return
	}
	s.ReleaseDate = nil
	if s.State == "" {
		s.State = StateUnstarted
	}
	if s.Type != StoryTypeFeature {
		s.Estimate = nil
	}
}

// Validate checks the story invariants against the project's point scale.
func (s Story) Validate(scale PointScale) error {
	if !validStoryTypes[s.Type] {
		return &ValidationError{Field: "story_type", Message: "story type is required"}
	}
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	if len(s.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: "title cannot exceed 255 characters"}
	}

	if s.Type.IsRelease() {
		switch {
		case s.State != "":
			return &ValidationError{Field: "state", Message: "release stories have no state"}
		case s.Estimate != nil:
			return &ValidationError{Field: "estimate", Message: "release stories have no estimate"}
		case s.OwnedBy != nil:
			return &ValidationError{Field: "owned_by", Message: "release stories have no owner"}
		case len(s.Labels) > 0:
			return &ValidationError{Field: "labels", Message: "release stories have no labels"}
		case s.ReleaseDate == nil:
			return &ValidationError{Field: "release_date", Message: "release date is required"}
		}
		return nil
	}

	if !s.State.Valid() {
		return &ValidationError{Field: "state", Message: "state must be a workflow state"}
	}
	if s.ReleaseDate != nil {
		return &ValidationError{Field: "release_date", Message: "only release stories have a release date"}
	}
	if s.Estimate != nil {
		if s.Type != StoryTypeFeature {
			return &ValidationError{Field: "estimate", Message: "only features are estimated"}
		}
		if !scale.Allows(*s.Estimate) {
			return &ValidationError{Field: "estimate", Message: "estimate is not on the project point scale"}
		}
	}
	// a feature may not have left unstarted without an estimate
	if s.Estimate == nil && s.Type == StoryTypeFeature &&
		s.State != StateUnstarted && s.State != StateUnscheduled {
		return &ValidationError{Field: "estimate", Message: "features must be estimated before they start"}
	}
	return nil
}

// ============================================================================
// LABELS
// ============================================================================

// ParseLabels splits a comma-separated label list.
func ParseLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeLabels(strings.Split(s, ","))
}

// NormalizeLabels trims labels, drops blanks, and removes duplicates while keeping
// the first occurrence's position.
func NormalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// JoinLabels is the inverse of ParseLabels.
func JoinLabels(labels []string) string {
	return strings.Join(labels, ",")
}

// HasLabel reports whether the story carries label.
func (s Story) HasLabel(label string) bool {
	return slices.Contains(s.Labels, label)
}
