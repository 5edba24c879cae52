// Package column derives board columns from story state. Columns are never stored;
// membership is recomputed from the stories whenever the board is drawn.
package column

import (
	"slices"
	"strings"

	"github.com/jv-vogler/cm42-central/internal/models"
	"github.com/jv-vogler/cm42-central/internal/rank"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Name identifies a column.
type Name string

const (
	ChillyBin     Name = "chilly_bin"
	InProgress    Name = "in_progress"
	Done          Name = "done"
	SearchResults Name = "search_results"

	epicPrefix = "epic_"
)

// Standard lists the state-derived columns in board order.
var Standard = []Name{ChillyBin, InProgress, Done}

func (n Name) String() string { return string(n) }

// EpicColumn names the filter column for label.
func EpicColumn(label string) Name {
	return Name(epicPrefix + label)
}

// IsEpic reports whether n is an epic filter column and returns its label.
func (n Name) IsEpic() (string, bool) {
	label, ok := strings.CutPrefix(string(n), epicPrefix)
	return label, ok && label != ""
}

// Title is the display form: "epic: <label>" for epic columns, spaces for
// underscores otherwise.
func (n Name) Title() string {
	if label, ok := n.IsEpic(); ok {
		return "epic: " + label
	}
	return strings.ReplaceAll(string(n), "_", " ")
}

// ParseName accepts a standard column, search_results, or epic_<label>.
func ParseName(s string) (Name, error) {
	n := Name(strings.TrimSpace(s))
	if slices.Contains(Standard, n) || n == SearchResults {
		return n, nil
	}
	if _, ok := n.IsEpic(); ok {
		return n, nil
	}
	return "", &models.ValidationError{Field: "column", Message: "unknown column " + s}
}

// Home returns the column a story lives in when no filter is active.
func Home(s models.Story) Name {
	if s.Type.IsRelease() {
		return ChillyBin
	}
	switch s.State {
	case models.StateStarted, models.StateFinished, models.StateDelivered, models.StateRejected:
		return InProgress
	case models.StateAccepted:
		return Done
	}
	return ChillyBin
}

// ImpliedState is the workflow state a drop onto the column asks for.
func ImpliedState(n Name) (models.State, error) {
	switch n {
	case ChillyBin:
		return models.StateUnstarted, nil
	case InProgress:
		return models.StateStarted, nil
	case Done:
		return models.StateAccepted, nil
	}
	return "", &models.ColumnTargetError{Column: string(n)}
}

// ============================================================================
// FILTERS
// ============================================================================

// Filters are the viewer's active filters.
type Filters struct {
	Labels        []string        // epic filters
	SearchResults []types.StoryID // hit list supplied by the search collaborator; nil when no search is active
}

func (f Filters) searching() bool { return f.SearchResults != nil }

// epicOnly is true when the epic filter is the only active filter.
func (f Filters) epicOnly() bool {
	return len(f.Labels) > 0 && !f.searching()
}

// ColumnsFor returns every column the story appears in under filters.
func ColumnsFor(s models.Story, f Filters) []Name {
	var out []Name
	if !f.epicOnly() {
		out = append(out, Home(s))
	}
	for _, label := range f.Labels {
		if s.HasLabel(label) {
			out = append(out, EpicColumn(label))
		}
	}
	if f.searching() && slices.Contains(f.SearchResults, s.ID) {
		out = append(out, SearchResults)
	}
	return out
}

// Partition groups stories by column, each column sorted by rank. Stories belonging
// to another project are the caller's concern.
func Partition(stories []models.Story, f Filters) map[Name][]models.Story {
	out := make(map[Name][]models.Story)
	for _, s := range stories {
		for _, n := range ColumnsFor(s, f) {
			out[n] = append(out[n], s)
		}
	}
	for _, col := range out {
		slices.SortFunc(col, rank.Compare)
	}
	return out
}

// Order returns the column names to render for filters: standard columns first,
// then epic columns in filter order, then search results.
func Order(f Filters) []Name {
	var out []Name
	if !f.epicOnly() {
		out = append(out, Standard...)
	}
	for _, label := range f.Labels {
		out = append(out, EpicColumn(label))
	}
	if f.searching() {
		out = append(out, SearchResults)
	}
	return out
}
