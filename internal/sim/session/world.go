package session

import (
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

// Presentation is the part of a player's state an attempt overrides.
type Presentation struct {
	SeeOthers   bool `json:"see_others"`
	Collidable  bool `json:"collidable"`
	AllowFlight bool `json:"allow_flight"`
	Flying      bool `json:"flying"`
}

// World is the adapter to the host game. Teleport with immediate=false may be
// deferred; the adapter must re-validate the player before acting.
type World interface {
	Teleport(player uuid.UUID, to arena.Location, forceIfMounted, immediate bool) bool
	SetMovementAssist(player uuid.UUID, vertical, horizontal float64)
	Notify(player uuid.UUID, msg string)
	Presentation(player uuid.UUID) Presentation
	ApplyPresentation(player uuid.UUID, p Presentation)
	Location(player uuid.UUID) arena.Location
}

// Flags are the configuration switches the session core reads.
type Flags struct {
	SuppressRecordsUntilGroupCleared bool
	MustClearSequentially            bool
}

// Outcome is written once per ended session.
type Outcome struct {
	At           time.Time      `json:"at"`
	Player       uuid.UUID      `json:"player"`
	ArenaID      string         `json:"arena_id"`
	Mode         arena.GameMode `json:"mode"`
	Event        string         `json:"event"`
	Deaths       records.Deaths `json:"deaths"`
	Millis       records.Millis `json:"millis"`
	TimeResult   string         `json:"time_result,omitempty"`
	DeathsResult string         `json:"deaths_result,omitempty"`
	Suppressed   bool           `json:"suppressed,omitempty"`
	FirstClear   bool           `json:"first_clear,omitempty"`
}

type OutcomeSink interface {
	WriteOutcome(o Outcome) error
}
