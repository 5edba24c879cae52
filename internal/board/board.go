// Package board keeps a viewer's replica of one project's board in step with the
// server's event stream.
//
// Events are applied strictly in sequence order. Duplicates are ignored and events
// that arrive early are held until the gap before them is filled, so every replica
// that sees the same events converges on the same confirmed state. Local mutations
// are layered on top as proposals until the server confirms or refuses them.
package board

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jv-vogler/cm42-central/internal/column"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/rank"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// ErrForeignEvent is returned for an event that belongs to another project.
var ErrForeignEvent = errors.New("event belongs to another project")

// Observer is told about every story touched by an applied event.
// links.Resolver satisfies it.
type Observer interface {
	StoryChanged(id types.StoryID)
}

// RejectFunc is called when the server refuses a proposed mutation.
type RejectFunc func(mutationID string, err error)

type proposal struct {
	id      string
	story   models.Story
	deleted bool
}

// Board is a replica of one project's board.
type Board struct {
	projectID types.ProjectID

	mu       sync.RWMutex
	stories  map[types.StoryID]models.Story // confirmed
	seq      types.Seq
	held     map[types.Seq]events.Event // arrived ahead of a gap
	proposed []proposal                 // in proposal order

	observers []Observer
	onReject  RejectFunc
}

// Option configures a Board.
type Option func(*Board)

// WithObserver registers an observer for applied events.
func WithObserver(o Observer) Option {
	return func(b *Board) { b.observers = append(b.observers, o) }
}

// WithRejectHandler installs the callback for refused proposals.
func WithRejectHandler(fn RejectFunc) Option {
	return func(b *Board) { b.onReject = fn }
}

// New returns an empty replica for projectID.
func New(projectID types.ProjectID, opts ...Option) *Board {
	b := &Board{
		projectID: projectID,
		stories:   make(map[types.StoryID]models.Story),
		held:      make(map[types.Seq]events.Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProjectID returns the project the replica follows.
func (b *Board) ProjectID() types.ProjectID { return b.projectID }

// Load replaces confirmed state with a snapshot taken at seq. Held events past seq
// are kept and applied if they now follow on.
func (b *Board) Load(stories []models.Story, seq types.Seq) error {
	b.mu.Lock()
	b.stories = make(map[types.StoryID]models.Story, len(stories))
	for _, s := range stories {
		if s.ProjectID != b.projectID {
			continue
		}
		b.stories[s.ID] = s.Clone()
	}
	b.seq = seq
	for held := range b.held {
		if held <= seq {
			delete(b.held, held)
		}
	}
	touched, err := b.drainLocked()
	b.mu.Unlock()

	b.notify(touched)
	return err
}

// Apply applies ev if it is the next event in sequence. It reports whether
// confirmed state advanced; duplicates and held events report false.
func (b *Board) Apply(ev events.Event) (bool, error) {
	if ev.ProjectID != b.projectID {
		return false, fmt.Errorf("%w: event for project %d on board %d", ErrForeignEvent, ev.ProjectID, b.projectID)
	}
	if !ev.Type.IsStoryEvent() {
		return false, nil
	}

	b.mu.Lock()
	switch {
	case ev.SequenceID <= b.seq:
		b.mu.Unlock()
		return false, nil
	case ev.SequenceID > b.seq+1:
		b.held[ev.SequenceID] = ev
		b.mu.Unlock()
		return false, nil
	}

	var touched []types.StoryID
	err := b.applyLocked(ev)
	if err == nil {
		touched = append(touched, ev.StoryID)
		var more []types.StoryID
		more, err = b.drainLocked()
		touched = append(touched, more...)
	}
	b.mu.Unlock()

	b.notify(touched)
	return err == nil, err
}

// Replay applies events in order, stopping at the first failure.
func (b *Board) Replay(evs iter.Seq[events.Event]) error {
	for ev := range evs {
		if _, err := b.Apply(ev); err != nil {
			return err
		}
	}
	return nil
}

// applyLocked applies the next event. The caller holds the write lock.
func (b *Board) applyLocked(ev events.Event) error {
	if ev.Type == events.EventStoryDeleted {
		delete(b.stories, ev.StoryID)
	} else {
		s, err := ev.Story()
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.SequenceID, err)
		}
		b.stories[s.ID] = s
	}
	b.seq = ev.SequenceID

	if ev.MutationID != "" {
		b.proposed = slices.DeleteFunc(b.proposed, func(p proposal) bool { return p.id == ev.MutationID })
	}
	return nil
}

// drainLocked applies held events that now follow on.
func (b *Board) drainLocked() ([]types.StoryID, error) {
	var touched []types.StoryID
	for {
		next, ok := b.held[b.seq+1]
		if !ok {
			return touched, nil
		}
		delete(b.held, next.SequenceID)
		if err := b.applyLocked(next); err != nil {
			return touched, err
		}
		touched = append(touched, next.StoryID)
	}
}

func (b *Board) notify(ids []types.StoryID) {
	for _, id := range ids {
		for _, o := range b.observers {
			o.StoryChanged(id)
		}
	}
}

// LastSeq returns the sequence of the last applied event.
func (b *Board) LastSeq() types.Seq {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Gap reports the first missing sequence when events are being held behind it.
// The viewer should request a replay after LastSeq.
func (b *Board) Gap() (types.Seq, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.held) == 0 {
		return 0, false
	}
	return b.seq + 1, true
}

// ============================================================================
// PROPOSALS
// ============================================================================

// Propose layers an optimistic change over confirmed state and returns the
// mutation id to send with the request.
func (b *Board) Propose(s models.Story) string {
	return b.propose(proposal{story: s.Clone()})
}

// ProposeDelete hides a story optimistically.
func (b *Board) ProposeDelete(id types.StoryID) string {
	return b.propose(proposal{story: models.Story{ID: id, ProjectID: b.projectID}, deleted: true})
}

func (b *Board) propose(p proposal) string {
	p.id = uuid.NewString()
	b.mu.Lock()
	b.proposed = append(b.proposed, p)
	b.mu.Unlock()
	return p.id
}

// Withdraw drops a proposal the viewer abandoned. It reports false once the
// proposal was confirmed or rejected.
func (b *Board) Withdraw(mutationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.proposed)
	b.proposed = slices.DeleteFunc(b.proposed, func(p proposal) bool { return p.id == mutationID })
	return len(b.proposed) < n
}

// Reject rolls back a proposal the server refused and tells the originator why.
func (b *Board) Reject(mutationID string, err error) bool {
	if !b.Withdraw(mutationID) {
		return false
	}
	if b.onReject != nil {
		b.onReject(mutationID, err)
	}
	return true
}

// Pending returns the number of unconfirmed proposals.
func (b *Board) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.proposed)
}

// Proposed reports whether a proposal for id is waiting for the server.
func (b *Board) Proposed(id types.StoryID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.ContainsFunc(b.proposed, func(p proposal) bool { return p.story.ID == id })
}

// ============================================================================
// READS
// ============================================================================

// Story returns the confirmed story.
func (b *Board) Story(id types.StoryID) (models.Story, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.stories[id]
	return s.Clone(), ok
}

// LookupStory lets a link resolver read from the replica.
func (b *Board) LookupStory(_ context.Context, id types.StoryID) (*models.Story, error) {
	s, ok := b.Story(id)
	if !ok {
		return nil, fmt.Errorf("story %s: %w", id, models.ErrStoryNotFound)
	}
	return &s, nil
}

// Stories returns the confirmed stories ordered by rank.
func (b *Board) Stories() []models.Story {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Story, 0, len(b.stories))
	for _, s := range b.stories {
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, rank.Compare)
	return out
}

// Columns partitions confirmed state.
func (b *Board) Columns(f column.Filters) map[column.Name][]models.Story {
	return column.Partition(b.Stories(), f)
}

// Optimistic partitions confirmed state with pending proposals applied on top.
func (b *Board) Optimistic(f column.Filters) map[column.Name][]models.Story {
	b.mu.RLock()
	view := make(map[types.StoryID]models.Story, len(b.stories))
	maps.Copy(view, b.stories)
	for _, p := range b.proposed {
		if p.deleted {
			delete(view, p.story.ID)
			continue
		}
		view[p.story.ID] = p.story
	}
	b.mu.RUnlock()

	return column.Partition(slices.Collect(maps.Values(view)), f)
}

// Digest hashes confirmed state and the last sequence. Two replicas that applied
// the same events have equal digests. Timestamps are left out so a replica loaded
// from a snapshot matches one built by replay.
func (b *Board) Digest() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h := sha256.New()
	_, _ = fmt.Fprintf(h, "project=%d seq=%d\n", b.projectID, b.seq)
	for _, id := range slices.Sorted(maps.Keys(b.stories)) {
		writeStory(h, b.stories[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeStory(w io.Writer, s models.Story) {
	est, owner, requester, release := "-", "-", "-", "-"
	if s.Estimate != nil {
		est = fmt.Sprint(*s.Estimate)
	}
	if s.OwnedBy != nil {
		owner = fmt.Sprint(*s.OwnedBy)
	}
	if s.RequestedBy != nil {
		requester = fmt.Sprint(*s.RequestedBy)
	}
	if s.ReleaseDate != nil {
		release = s.ReleaseDate.UTC().Format("2006-01-02")
	}
	_, _ = fmt.Fprintf(w, "%d|%s|%q|%q|%q|%s|%s|%q|%s|%s|%s|%g|%d\n",
		s.ID, s.Type, s.Title, s.Description, s.Notes, est, s.State,
		models.JoinLabels(s.Labels), owner, requester, release, s.Rank, s.Version)
}
