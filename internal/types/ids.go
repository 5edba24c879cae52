package types

import "strconv"

// ID type aliases provide semantic meaning and reduce repetitive int conversions.
// These aliases document what each integer represents in the domain model.

// ProjectID identifies a unique project in the system
type ProjectID int

// StoryID identifies a unique story. Story ids are global, so "#42" in a description
// names exactly one story.
type StoryID int

// UserID identifies a user. References are weak: the core never dereferences them.
type UserID int

// Seq is a server-assigned position in a project's event log.
type Seq int64

// ToInt converts type alias back to int for compatibility with sql scanning
func (id ProjectID) ToInt() int {
	return int(id)
}

func (id StoryID) ToInt() int {
	return int(id)
}

func (id UserID) ToInt() int {
	return int(id)
}

// String renders a story id the way it is referenced in free text.
func (id StoryID) String() string {
	return "#" + strconv.Itoa(int(id))
}

// ParseStoryID parses "42" or "#42".
func ParseStoryID(s string) (StoryID, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return StoryID(n), nil
}
