// Package links finds "#<id>" references in story text and resolves them against the
// current board.
package links

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"sync"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/types"
)

var refPattern = regexp.MustCompile(`#(\d+)\b`)

// Extract yields every story id referenced in text, once each, in order of first
// appearance. The sequence can be ranged over more than once.
func Extract(text string) iter.Seq[types.StoryID] {
	return func(yield func(types.StoryID) bool) {
		seen := make(map[types.StoryID]bool)
		for _, m := range refPattern.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				continue
			}
			id := types.StoryID(n)
			if seen[id] {
				continue
			}
			seen[id] = true
			if !yield(id) {
				return
			}
		}
	}
}

// Link is one resolved reference. Missing marks a target that was deleted or lives
// in another project; Title and State are empty then.
type Link struct {
	TargetID types.StoryID `json:"target_id"`
	Title    string        `json:"title,omitempty"`
	State    models.State  `json:"state,omitempty"`
	Type     string        `json:"story_type,omitempty"`
	Missing  bool          `json:"missing,omitempty"`
}

// Lookup fetches a story by id. It returns models.ErrStoryNotFound when absent.
type Lookup interface {
	LookupStory(ctx context.Context, id types.StoryID) (*models.Story, error)
}

type entry struct {
	project types.ProjectID
	link    Link
}

// Resolver resolves references with a per-target cache.
type Resolver struct {
	lookup Lookup

	mu    sync.RWMutex
	cache map[types.StoryID]entry
	gen   map[types.StoryID]uint64 // bumped by Invalidate
}

// NewResolver builds a resolver backed by lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{
		lookup: lookup,
		cache:  make(map[types.StoryID]entry),
		gen:    make(map[types.StoryID]uint64),
	}
}

// Resolve returns one Link per id, in order. A missing target is reported in the
// Link, never as an error; only lookup failures are errors.
func (r *Resolver) Resolve(ctx context.Context, projectID types.ProjectID, ids iter.Seq[types.StoryID]) ([]Link, error) {
	var out []Link
	for id := range ids {
		e, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		link := e.link
		if link.Missing || e.project != projectID {
			link = Link{TargetID: id, Missing: true}
		}
		out = append(out, link)
	}
	return out, nil
}

// ResolveText is Resolve over the references in text.
func (r *Resolver) ResolveText(ctx context.Context, projectID types.ProjectID, text string) ([]Link, error) {
	return r.Resolve(ctx, projectID, Extract(text))
}

func (r *Resolver) get(ctx context.Context, id types.StoryID) (entry, error) {
	r.mu.RLock()
	e, ok := r.cache[id]
	gen := r.gen[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	s, err := r.lookup.LookupStory(ctx, id)
	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		e = entry{link: Link{TargetID: id, Missing: true}}
	case err != nil:
		return entry{}, fmt.Errorf("failed to look up story %s: %w", id, err)
	default:
		e = entry{
			project: s.ProjectID,
			link: Link{
				TargetID: id,
				Title:    s.Title,
				State:    s.State,
				Type:     s.Type.String(),
			},
		}
	}

	// a lookup that raced an invalidation may hold the old state; keep it out
	// of the cache so the next caller looks again
	r.mu.Lock()
	if r.gen[id] == gen {
		r.cache[id] = e
	}
	r.mu.Unlock()
	return e, nil
}

// Invalidate drops the cached resolution for id.
func (r *Resolver) Invalidate(id types.StoryID) {
	r.mu.Lock()
	delete(r.cache, id)
	r.gen[id]++
	r.mu.Unlock()
}

// StoryChanged lets the resolver observe committed board events.
func (r *Resolver) StoryChanged(id types.StoryID) {
	r.Invalidate(id)
}
