package arena

import (
	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/records"
)

// Store durably keeps what arenas and groups change at runtime. Writes are
// fire-and-forget and must not block; implementations queue them off the game
// loop and may drop writes when the queue is full.
type Store interface {
	PutRecord(arenaID string, mode GameMode, kind records.Kind, player uuid.UUID, value int64)
	PutCompletion(arenaID string, mode GameMode, player uuid.UUID)
	PutGroup(id uuid.UUID, name string, arenaIDs []string)
	DeleteGroup(id uuid.UUID)
	DeleteArena(arenaID string)
	PutArenaEdit(arenaID string, prop Property, value string)
	ClearArenaEdits(arenaID string)
}

// Arena is a single playable course with per-mode boards and completion sets.
type Arena struct {
	ID    string
	Name  string
	Kind  Kind
	Spawn Location
	// Exit is optional; players fall back to their pre-attempt location.
	Exit *Location

	VerticalSpeed   float64
	HorizontalSpeed float64

	registries map[GameMode]*records.Registry
	completed  map[GameMode]map[uuid.UUID]struct{}
	store      Store
}

func New(id, name string, kind Kind, spawn Location) *Arena {
	return &Arena{
		ID:              id,
		Name:            name,
		Kind:            kind,
		Spawn:           spawn,
		VerticalSpeed:   1.0,
		HorizontalSpeed: 1.0,
		registries:      map[GameMode]*records.Registry{},
		completed:       map[GameMode]map[uuid.UUID]struct{}{},
	}
}

func (a *Arena) SetStore(s Store) { a.store = s }

// Records returns the registry for mode, creating an empty one on first use.
func (a *Arena) Records(mode GameMode) *records.Registry {
	reg, ok := a.registries[mode]
	if !ok {
		reg = records.NewRegistry()
		a.registries[mode] = reg
	}
	return reg
}

// RecordModes lists the modes that have a registry or any completion, in
// AllModes order.
func (a *Arena) RecordModes() []GameMode {
	out := make([]GameMode, 0, len(a.registries))
	for _, m := range AllModes {
		_, hasReg := a.registries[m]
		if hasReg || len(a.completed[m]) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func (a *Arena) RegisterTime(mode GameMode, player uuid.UUID, elapsed records.Millis) records.Result {
	res := a.Records(mode).RegisterTimeRecord(player, elapsed)
	if res != records.ResultNone && a.store != nil {
		a.store.PutRecord(a.ID, mode, records.KindTime, player, int64(elapsed))
	}
	return res
}

func (a *Arena) RegisterDeaths(mode GameMode, player uuid.UUID, deaths records.Deaths) records.Result {
	res := a.Records(mode).RegisterDeathsRecord(player, deaths)
	if res != records.ResultNone && a.store != nil {
		a.store.PutRecord(a.ID, mode, records.KindDeaths, player, int64(deaths))
	}
	return res
}

func (a *Arena) HasCompleted(mode GameMode, player uuid.UUID) bool {
	_, ok := a.completed[mode][player]
	return ok
}

// MarkCompleted records that player cleared the arena under mode. It reports
// whether this was the first clear.
func (a *Arena) MarkCompleted(mode GameMode, player uuid.UUID) bool {
	if !a.restoreCompletion(mode, player) {
		return false
	}
	if a.store != nil {
		a.store.PutCompletion(a.ID, mode, player)
	}
	return true
}

// RestoreCompletion marks a clear loaded from storage without writing it back.
func (a *Arena) RestoreCompletion(mode GameMode, player uuid.UUID) { a.restoreCompletion(mode, player) }

func (a *Arena) restoreCompletion(mode GameMode, player uuid.UUID) bool {
	set, ok := a.completed[mode]
	if !ok {
		set = map[uuid.UUID]struct{}{}
		a.completed[mode] = set
	}
	if _, done := set[player]; done {
		return false
	}
	set[player] = struct{}{}
	return true
}

// Completions returns the players that cleared the arena under mode.
func (a *Arena) Completions(mode GameMode) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.completed[mode]))
	for p := range a.completed[mode] {
		out = append(out, p)
	}
	return out
}

// ExitFor returns the arena exit, or fallback when none is defined.
func (a *Arena) ExitFor(fallback Location) Location {
	if a.Exit != nil {
		return *a.Exit
	}
	return fallback
}

// AssistsMovement reports whether flight assist is applied inside the arena.
func (a *Arena) AssistsMovement() bool { return a.Kind == KindDropper }
