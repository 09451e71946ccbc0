package session

import (
	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
)

// EntryState is the pre-attempt state of a player. It is restored exactly
// once, when the session ends.
type EntryState struct {
	player   uuid.UUID
	saved    Presentation
	location arena.Location
	restored bool
}

// CaptureEntryState saves the player's current state and applies the arena
// presentation: others hidden, no collisions, flight for dropper arenas.
func CaptureEntryState(w World, player uuid.UUID, a *arena.Arena) *EntryState {
	e := &EntryState{
		player:   player,
		saved:    w.Presentation(player),
		location: w.Location(player),
	}
	p := Presentation{SeeOthers: false, Collidable: false}
	if a.AssistsMovement() {
		p.AllowFlight = true
		p.Flying = true
	}
	w.ApplyPresentation(player, p)
	return e
}

// Restore puts back the saved presentation. It reports false when the state
// had already been restored.
func (e *EntryState) Restore(w World) bool {
	if e.restored {
		return false
	}
	e.restored = true
	w.ApplyPresentation(e.player, e.saved)
	return true
}

func (e *EntryState) Restored() bool { return e.restored }

// Location is where the player stood before the attempt.
func (e *EntryState) Location() arena.Location { return e.location }
