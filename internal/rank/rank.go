// Package rank assigns fractional positions to stories so a reorder only touches the
// moved story.
package rank

import (
	"errors"
	"math"

	"github.com/jv-vogler/cm42-central/internal/models"
)

const (
	// Step is the gap left beyond an open end and between rebalanced ranks.
	Step = 1.0
	// Initial is the rank of the first story in an empty column.
	Initial = 1.0
)

var (
	// ErrExhausted means no float fits strictly between the neighbours; rebalance first.
	ErrExhausted = errors.New("rank precision exhausted")
	// ErrInvalidBounds means after is not strictly below before.
	ErrInvalidBounds = errors.New("rank bounds out of order")
)

// Between returns a rank strictly between after and before. A nil bound is open.
func Between(after, before *float64) (float64, error) {
	switch {
	case after == nil && before == nil:
		return Initial, nil
	case after == nil:
		return beyond(*before, -Step)
	case before == nil:
		return beyond(*after, Step)
	}

	lo, hi := *after, *before
	if !(lo < hi) {
		return 0, ErrInvalidBounds
	}
	mid := lo + (hi-lo)/2
	if !(lo < mid && mid < hi) || math.IsInf(mid, 0) {
		return 0, ErrExhausted
	}
	return mid, nil
}

// beyond steps past an open end. Far from zero a step no longer changes the
// float, which counts as exhausted like a midpoint that cannot split.
func beyond(bound, step float64) (float64, error) {
	r := bound + step
	if r == bound || math.IsInf(r, 0) || math.IsNaN(r) {
		return 0, ErrExhausted
	}
	return r, nil
}

// Rebalance returns n evenly spaced ranks starting at Initial.
func Rebalance(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Initial + float64(i)*Step
	}
	return out
}

// Less orders stories by rank, then creation time, then id so ties are stable.
func Less(a, b models.Story) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Compare is Less in the form slices.SortFunc expects.
func Compare(a, b models.Story) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}

// Last returns the rank after the highest in ranks, or Initial when empty.
func Last(ranks []float64) float64 {
	if len(ranks) == 0 {
		return Initial
	}
	hi := ranks[0]
	for _, r := range ranks[1:] {
		hi = max(hi, r)
	}
	return hi + Step
}
