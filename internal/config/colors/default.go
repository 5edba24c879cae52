package colors

// Default returns the default color scheme (purple theme)
func Default() *ColorScheme {
	return &ColorScheme{
		Preset: "default",

		Accent: "#874BFD",

		// Story types
		Feature: "#FFD75F",
		Bug:     "#FF5F5F",
		Chore:   "#8A8A8A",
		Release: "#5F87D7",
		Delayed: "#FF0000",

		// UI elements
		ColumnBorder:   "#5F87D7",
		StoryBorder:    "#585858",
		SelectedBorder: "#D75FD7",

		// Text
		Title:  "#D75FD7",
		Subtle: "#585858",
		Normal: "#D0D0D0",

		// Notifications
		InfoFg:    "#00AFFF",
		WarningFg: "#FFD700",
		ErrorFg:   "#FF0000",
	}
}
