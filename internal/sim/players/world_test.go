package players

import (
	"testing"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/loop"
	"arenaworks.dev/internal/sim/session"
)

func TestTeleport_DeferredRunsNextTick(t *testing.T) {
	l := loop.New(20)
	w := NewWorld(l)
	id := uuid.New()
	w.Join(id, "alice", arena.Location{World: "lobby"})

	exit := arena.Location{World: "hub", Y: 70}
	if !w.Teleport(id, exit, true, false) {
		t.Fatalf("deferred teleport refused")
	}
	if w.Location(id) == exit {
		t.Fatalf("deferred teleport moved the player synchronously")
	}
	l.StepOnce()
	if w.Location(id) != exit {
		t.Fatalf("location after tick = %+v, want %+v", w.Location(id), exit)
	}
}

func TestTeleport_DeferredSkipsStaleState(t *testing.T) {
	l := loop.New(20)
	w := NewWorld(l)
	id := uuid.New()
	w.Join(id, "bob", arena.Location{World: "lobby"})

	w.Teleport(id, arena.Location{World: "hub"}, true, false)
	spawn := arena.Location{World: "arenas", Y: 200}
	w.Teleport(id, spawn, true, true)
	l.StepOnce()
	if w.Location(id) != spawn {
		t.Fatalf("stale deferred teleport overrode a newer move: %+v", w.Location(id))
	}

	w.Teleport(id, arena.Location{World: "hub"}, true, false)
	w.Leave(id)
	l.StepOnce()
	if w.Location(id) != spawn {
		t.Fatalf("deferred teleport acted on an offline player")
	}
}

func TestTeleport_Mounted(t *testing.T) {
	w := NewWorld(nil)
	id := uuid.New()
	p := w.Join(id, "carol", arena.Location{})
	p.Mounted = true
	if w.Teleport(id, arena.Location{World: "x"}, false, true) {
		t.Fatalf("teleport of mounted player without force should fail")
	}
	if !w.Teleport(id, arena.Location{World: "x"}, true, true) || p.Mounted {
		t.Fatalf("forced teleport should dismount and move")
	}
}

func TestWorld_WithSessionManager(t *testing.T) {
	l := loop.New(20)
	w := NewWorld(l)
	dir := arena.NewDirectory(nil)
	a := arena.New("drop1", "Drop One", arena.KindDropper, arena.Location{World: "arenas", Y: 256})
	a.VerticalSpeed, a.HorizontalSpeed = 0.5, 0.3
	if err := dir.Add(a); err != nil {
		t.Fatalf("add: %v", err)
	}
	mgr := session.NewManager(session.Config{Directory: dir, World: w})

	id := uuid.New()
	home := arena.Location{World: "lobby", X: 1}
	p := w.Join(id, "dave", home)
	s, err := mgr.Start(id, "drop1", arena.ModeDefault)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.VerticalSpeed != 0.5 || p.Presentation.SeeOthers {
		t.Fatalf("arena state not applied: %+v", p)
	}
	s.TriggerQuit(false)
	if !p.Presentation.SeeOthers || !p.Presentation.Collidable {
		t.Fatalf("presentation not restored: %+v", p.Presentation)
	}
	l.StepOnce()
	if p.Location != home {
		t.Fatalf("player not returned home: %+v", p.Location)
	}
}
