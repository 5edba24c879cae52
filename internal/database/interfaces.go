package database

import (
	"github.com/jv-vogler/cm42-central/internal/history"
	"github.com/jv-vogler/cm42-central/internal/links"
)

// Compile-time verification of the collaborators the store backs.
var (
	_ history.Store = (*Tx)(nil)
	_ history.Store = (*Repository)(nil)
	_ links.Lookup  = (*Repository)(nil)
)
