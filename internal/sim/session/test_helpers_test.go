package session

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
)

type teleportCall struct {
	player    uuid.UUID
	to        arena.Location
	immediate bool
}

type fakeWorld struct {
	presentation map[uuid.UUID]Presentation
	location     map[uuid.UUID]arena.Location
	teleports    []teleportCall
	assists      int
	notes        map[uuid.UUID][]string
	failTeleport bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		presentation: map[uuid.UUID]Presentation{},
		location:     map[uuid.UUID]arena.Location{},
		notes:        map[uuid.UUID][]string{},
	}
}

func (w *fakeWorld) Teleport(player uuid.UUID, to arena.Location, _ bool, immediate bool) bool {
	w.teleports = append(w.teleports, teleportCall{player: player, to: to, immediate: immediate})
	if w.failTeleport {
		return false
	}
	w.location[player] = to
	return true
}

func (w *fakeWorld) SetMovementAssist(uuid.UUID, float64, float64) { w.assists++ }

func (w *fakeWorld) Notify(player uuid.UUID, msg string) {
	w.notes[player] = append(w.notes[player], msg)
}

func (w *fakeWorld) Presentation(player uuid.UUID) Presentation { return w.presentation[player] }

func (w *fakeWorld) ApplyPresentation(player uuid.UUID, p Presentation) { w.presentation[player] = p }

func (w *fakeWorld) Location(player uuid.UUID) arena.Location { return w.location[player] }

func (w *fakeWorld) lastTeleport(t *testing.T) teleportCall {
	t.Helper()
	if len(w.teleports) == 0 {
		t.Fatalf("no teleports recorded")
	}
	return w.teleports[len(w.teleports)-1]
}

type memOutcomes struct{ got []Outcome }

func (m *memOutcomes) WriteOutcome(o Outcome) error {
	m.got = append(m.got, o)
	return nil
}

type fixture struct {
	dir      *arena.Directory
	world    *fakeWorld
	mgr      *Manager
	outcomes *memOutcomes
	logs     *bytes.Buffer
	now      time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, flags Flags, arenaIDs ...string) *fixture {
	t.Helper()
	f := &fixture{
		world:    newFakeWorld(),
		outcomes: &memOutcomes{},
		logs:     &bytes.Buffer{},
		now:      time.Unix(1_700_000_000, 0),
	}
	logger := log.New(f.logs, "[session] ", 0)
	f.dir = arena.NewDirectory(logger)
	for _, id := range arenaIDs {
		a := arena.New(id, "Arena "+id, arena.KindDropper, arena.Location{World: "arenas", Y: 200})
		if err := f.dir.Add(a); err != nil {
			t.Fatalf("add arena: %v", err)
		}
	}
	f.mgr = NewManager(Config{
		Directory: f.dir,
		World:     f.world,
		Flags:     flags,
		Outcomes:  f.outcomes,
		Now:       func() time.Time { return f.now },
		Logger:    logger,
	})
	return f
}

func (f *fixture) start(t *testing.T, player uuid.UUID, arenaID string, mode arena.GameMode) *Session {
	t.Helper()
	s, err := f.mgr.Start(player, arenaID, mode)
	if err != nil {
		t.Fatalf("Start(%s): %v", arenaID, err)
	}
	return s
}
