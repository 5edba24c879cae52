// Package search finds the stories matching a free-text query. The hit list feeds
// the board's search results column.
package search

import (
	"context"
	"strings"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Matcher returns the ids of the stories matching query. The result is never nil
// so an empty search still shows its column.
type Matcher interface {
	Match(ctx context.Context, query string, stories []models.Story) ([]types.StoryID, error)
}

// Text matches every whitespace separated term of the query, case-insensitively,
// against a story's id ("#12"), title, description and labels.
type Text struct{}

// NewText returns the in-process matcher.
func NewText() Text { return Text{} }

// Match implements Matcher.
func (Text) Match(ctx context.Context, query string, stories []models.Story) ([]types.StoryID, error) {
	terms := strings.Fields(strings.ToLower(query))
	hits := make([]types.StoryID, 0)
	for _, s := range stories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if matches(s, terms) {
			hits = append(hits, s.ID)
		}
	}
	return hits, nil
}

func matches(s models.Story, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	haystack := strings.ToLower(strings.Join([]string{
		s.ID.String(), s.Title, s.Description, strings.Join(s.Labels, " "),
	}, "\n"))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
