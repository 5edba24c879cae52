package config

// KeyMappings defines the key bindings of the live board viewer
type KeyMappings struct {
	// Navigation
	PrevColumn string `yaml:"prev_column"`
	NextColumn string `yaml:"next_column"`
	PrevStory  string `yaml:"prev_story"`
	NextStory  string `yaml:"next_story"`

	// Board
	ToggleColumn string `yaml:"toggle_column"`
	ShowStory    string `yaml:"show_story"`
	Resync       string `yaml:"resync"`

	// Writes; story actions are always on the digit keys
	MoveLeft  string `yaml:"move_left"`
	MoveRight string `yaml:"move_right"`
	MoveUp    string `yaml:"move_up"`
	MoveDown  string `yaml:"move_down"`

	// Other
	ShowHelp string `yaml:"show_help"`
	Quit     string `yaml:"quit"`
}

// DefaultKeyMappings returns the default key mappings
func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		PrevColumn: "h",
		NextColumn: "l",
		PrevStory:  "k",
		NextStory:  "j",

		ToggleColumn: "v",
		ShowStory:    "enter",
		Resync:       "r",

		MoveLeft:  "<",
		MoveRight: ">",
		MoveUp:    "K",
		MoveDown:  "J",

		ShowHelp: "?",
		Quit:     "q",
	}
}

// applyDefaults fills in missing key mappings with defaults
func (k *KeyMappings) applyDefaults() {
	defaults := DefaultKeyMappings()

	for _, pair := range []struct {
		dst *string
		def string
	}{
		{&k.PrevColumn, defaults.PrevColumn},
		{&k.NextColumn, defaults.NextColumn},
		{&k.PrevStory, defaults.PrevStory},
		{&k.NextStory, defaults.NextStory},
		{&k.ToggleColumn, defaults.ToggleColumn},
		{&k.ShowStory, defaults.ShowStory},
		{&k.Resync, defaults.Resync},
		{&k.MoveLeft, defaults.MoveLeft},
		{&k.MoveRight, defaults.MoveRight},
		{&k.MoveUp, defaults.MoveUp},
		{&k.MoveDown, defaults.MoveDown},
		{&k.ShowHelp, defaults.ShowHelp},
		{&k.Quit, defaults.Quit},
	} {
		if *pair.dst == "" {
			*pair.dst = pair.def
		}
	}
}
