package column

import "sync"

// Visibility tracks which columns a viewer has hidden. It only affects rendering;
// membership is unchanged.
type Visibility struct {
	mu     sync.RWMutex
	hidden map[Name]bool
}

// NewVisibility starts with search_results hidden.
func NewVisibility() *Visibility {
	return &Visibility{hidden: map[Name]bool{SearchResults: true}}
}

// Hidden reports whether n is hidden.
func (v *Visibility) Hidden(n Name) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hidden[n]
}

// Toggle flips n and returns the new hidden state.
func (v *Visibility) Toggle(n Name) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hidden[n] = !v.hidden[n]
	return v.hidden[n]
}

// Show unhides n.
func (v *Visibility) Show(n Name) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.hidden, n)
}

// Hide hides n.
func (v *Visibility) Hide(n Name) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hidden[n] = true
}

// Visible filters names down to the ones shown.
func (v *Visibility) Visible(names []Name) []Name {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Name, 0, len(names))
	for _, n := range names {
		if !v.hidden[n] {
			out = append(out, n)
		}
	}
	return out
}
