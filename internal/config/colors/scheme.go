package colors

// ColorScheme defines all configurable color values
type ColorScheme struct {
	// Preset name (e.g., "default", "monochrome")
	Preset string `yaml:"preset"`

	// Primary accent color (used for selections, titles, highlights)
	Accent string `yaml:"accent"`

	// Story type badges
	Feature string `yaml:"feature"`
	Bug     string `yaml:"bug"`
	Chore   string `yaml:"chore"`
	Release string `yaml:"release"`
	Delayed string `yaml:"delayed"` // releases due before the projected completion

	// UI element colors
	ColumnBorder   string `yaml:"column_border"`
	StoryBorder    string `yaml:"story_border"`
	SelectedBorder string `yaml:"selected_border"`

	// Text colors
	Title  string `yaml:"title"`
	Subtle string `yaml:"subtle"` // Muted/placeholder text
	Normal string `yaml:"normal"`

	// Notification colors
	InfoFg    string `yaml:"info_fg"`
	WarningFg string `yaml:"warning_fg"`
	ErrorFg   string `yaml:"error_fg"`
}

// GetPreset returns a preset color scheme by name
func GetPreset(name string) *ColorScheme {
	switch name {
	case "monochrome":
		return Monochrome()
	default:
		return Default()
	}
}

// ApplyDefaults fills in missing color values using the preset as base
// If preset is specified, loads that preset first, then overrides with custom values
func (c *ColorScheme) ApplyDefaults() {
	preset := GetPreset(c.Preset)

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&c.Accent, preset.Accent)
	fill(&c.Feature, preset.Feature)
	fill(&c.Bug, preset.Bug)
	fill(&c.Chore, preset.Chore)
	fill(&c.Release, preset.Release)
	fill(&c.Delayed, preset.Delayed)
	fill(&c.ColumnBorder, preset.ColumnBorder)
	fill(&c.StoryBorder, preset.StoryBorder)
	fill(&c.SelectedBorder, preset.SelectedBorder)
	fill(&c.Title, preset.Title)
	fill(&c.Subtle, preset.Subtle)
	fill(&c.Normal, preset.Normal)
	fill(&c.InfoFg, preset.InfoFg)
	fill(&c.WarningFg, preset.WarningFg)
	fill(&c.ErrorFg, preset.ErrorFg)
}

// MergeFrom overrides values with the non-empty values of other.
func (c *ColorScheme) MergeFrom(other ColorScheme) {
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&c.Preset, other.Preset)
	merge(&c.Accent, other.Accent)
	merge(&c.Feature, other.Feature)
	merge(&c.Bug, other.Bug)
	merge(&c.Chore, other.Chore)
	merge(&c.Release, other.Release)
	merge(&c.Delayed, other.Delayed)
	merge(&c.ColumnBorder, other.ColumnBorder)
	merge(&c.StoryBorder, other.StoryBorder)
	merge(&c.SelectedBorder, other.SelectedBorder)
	merge(&c.Title, other.Title)
	merge(&c.Subtle, other.Subtle)
	merge(&c.Normal, other.Normal)
	merge(&c.InfoFg, other.InfoFg)
	merge(&c.WarningFg, other.WarningFg)
	merge(&c.ErrorFg, other.ErrorFg)
}
