package colors

// Monochrome returns a black and white color scheme
func Monochrome() *ColorScheme {
	return &ColorScheme{
		Preset: "monochrome",

		Accent: "#FFFFFF",

		Feature: "#FFFFFF",
		Bug:     "#FFFFFF",
		Chore:   "#8A8A8A",
		Release: "#D0D0D0",
		Delayed: "#FFFFFF",

		ColumnBorder:   "#FFFFFF",
		StoryBorder:    "#585858",
		SelectedBorder: "#FFFFFF",

		Title:  "#FFFFFF",
		Subtle: "#585858",
		Normal: "#D0D0D0",

		InfoFg:    "#FFFFFF",
		WarningFg: "#FFFFFF",
		ErrorFg:   "#FFFFFF",
	}
}
