package models

import "github.com/jv-vogler/cm42-central/internal/types"

// Actor is the user performing an operation. Authentication happens elsewhere;
// the core only checks the binary write capability.
type Actor struct {
	ID       types.UserID
	CanWrite bool
}

// RequireWrite returns ErrReadOnly when the actor may only read the board.
func (a Actor) RequireWrite() error {
	if !a.CanWrite {
		return ErrReadOnly
	}
	return nil
}
