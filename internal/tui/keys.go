package tui

import (
	"charm.land/bubbles/v2/key"

	"github.com/jv-vogler/cm42-central/internal/config"
)

// keyMap binds the viewer's actions to the configured keys. Arrow keys always
// work alongside the configured navigation keys.
type keyMap struct {
	PrevColumn   key.Binding
	NextColumn   key.Binding
	PrevStory    key.Binding
	NextStory    key.Binding
	ToggleColumn key.Binding
	ShowStory    key.Binding
	Resync       key.Binding
	Action       key.Binding
	MoveLeft     key.Binding
	MoveRight    key.Binding
	MoveUp       key.Binding
	MoveDown     key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func newKeyMap(km config.KeyMappings) keyMap {
	return keyMap{
		PrevColumn: key.NewBinding(
			key.WithKeys(km.PrevColumn, "left"),
			key.WithHelp(km.PrevColumn+"/←", "previous column"),
		),
		NextColumn: key.NewBinding(
			key.WithKeys(km.NextColumn, "right"),
			key.WithHelp(km.NextColumn+"/→", "next column"),
		),
		PrevStory: key.NewBinding(
			key.WithKeys(km.PrevStory, "up"),
			key.WithHelp(km.PrevStory+"/↑", "previous story"),
		),
		NextStory: key.NewBinding(
			key.WithKeys(km.NextStory, "down"),
			key.WithHelp(km.NextStory+"/↓", "next story"),
		),
		ToggleColumn: key.NewBinding(
			key.WithKeys(km.ToggleColumn),
			key.WithHelp(km.ToggleColumn, "hide/show column"),
		),
		ShowStory: key.NewBinding(
			key.WithKeys(km.ShowStory),
			key.WithHelp(km.ShowStory, "story details"),
		),
		Resync: key.NewBinding(
			key.WithKeys(km.Resync),
			key.WithHelp(km.Resync, "reload board"),
		),
		Action: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "story action / estimate"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys(km.MoveLeft),
			key.WithHelp(km.MoveLeft, "move story to previous column"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys(km.MoveRight),
			key.WithHelp(km.MoveRight, "move story to next column"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys(km.MoveUp),
			key.WithHelp(km.MoveUp, "move story up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys(km.MoveDown),
			key.WithHelp(km.MoveDown, "move story down"),
		),
		Help: key.NewBinding(
			key.WithKeys(km.ShowHelp),
			key.WithHelp(km.ShowHelp, "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys(km.Quit, "ctrl+c"),
			key.WithHelp(km.Quit, "quit"),
		),
	}
}

// bindings lists every binding in help order.
func (k keyMap) bindings() []key.Binding {
	return []key.Binding{
		k.PrevColumn, k.NextColumn, k.PrevStory, k.NextStory,
		k.ToggleColumn, k.ShowStory, k.Resync,
		k.Action, k.MoveLeft, k.MoveRight, k.MoveUp, k.MoveDown,
		k.Help, k.Quit,
	}
}
