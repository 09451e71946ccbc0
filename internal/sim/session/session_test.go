package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/leaderboard"
	"arenaworks.dev/internal/sim/records"
)

func TestStart_AppliesArenaPresentation(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	home := arena.Location{World: "lobby", X: 5}
	f.world.location[p] = home
	f.world.presentation[p] = Presentation{SeeOthers: true, Collidable: true}

	s := f.start(t, p, "a", arena.ModeDefault)
	if got := f.world.presentation[p]; got.SeeOthers || got.Collidable || !got.Flying {
		t.Fatalf("presentation in arena = %+v", got)
	}
	if s.EntryState().Location() != home {
		t.Fatalf("entry location = %+v, want %+v", s.EntryState().Location(), home)
	}
	if f.world.assists != 1 {
		t.Fatalf("movement assist applied %d times, want 1", f.world.assists)
	}
	if _, ok := f.mgr.Session(p); !ok {
		t.Fatalf("session not registered")
	}
}

func TestStart_Rejections(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	f.start(t, p, "a", arena.ModeDefault)
	if _, err := f.mgr.Start(p, "a", arena.ModeDefault); !errors.Is(err, ErrAlreadyPlaying) {
		t.Fatalf("second start err = %v, want ErrAlreadyPlaying", err)
	}
	if _, err := f.mgr.Start(uuid.New(), "nope", arena.ModeDefault); !errors.Is(err, arena.ErrUnknownArena) {
		t.Fatalf("unknown arena err = %v", err)
	}

	f.world.failTeleport = true
	q := uuid.New()
	f.world.presentation[q] = Presentation{SeeOthers: true}
	if _, err := f.mgr.Start(q, "a", arena.ModeDefault); !errors.Is(err, ErrTeleportFailed) {
		t.Fatalf("failed teleport err = %v", err)
	}
	if !f.world.presentation[q].SeeOthers {
		t.Fatalf("entry state not restored after failed start")
	}
}

func TestTriggerLoss_KeepsSession(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	s := f.start(t, p, "a", arena.ModeDefault)

	s.TriggerLoss()
	s.TriggerLoss()
	if s.Deaths() != 2 {
		t.Fatalf("deaths = %d, want 2", s.Deaths())
	}
	if _, ok := f.mgr.Active().Get(p); !ok || s.State() != StateActive {
		t.Fatalf("loss must not end the session")
	}
	if s.EntryState().Restored() {
		t.Fatalf("loss must not restore entry state")
	}
	if got := f.world.lastTeleport(t); got.to != s.Arena.Spawn {
		t.Fatalf("loss teleport = %+v, want spawn", got.to)
	}
	if f.world.assists != 3 {
		t.Fatalf("movement assist applied %d times, want 3", f.world.assists)
	}
}

func TestTriggerWin_RegistersAndExits(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	home := arena.Location{World: "lobby"}
	f.world.location[p] = home
	f.world.presentation[p] = Presentation{SeeOthers: true, Collidable: true}
	s := f.start(t, p, "a", arena.ModeLeastTime)
	s.TriggerLoss()
	f.advance(1500 * time.Millisecond)

	s.TriggerWin()
	if s.State() != StateWon || f.mgr.Active().Len() != 0 {
		t.Fatalf("win must end and remove the session")
	}
	if got := f.world.presentation[p]; !got.SeeOthers || !got.Collidable {
		t.Fatalf("presentation not restored: %+v", got)
	}
	a, _ := f.dir.Arena("a")
	if rec, ok := a.Records(arena.ModeLeastTime).Time().Get(p); !ok || rec.Value != 1500 {
		t.Fatalf("time record = %+v %v, want 1500", rec, ok)
	}
	if rec, ok := a.Records(arena.ModeLeastTime).Deaths().Get(p); !ok || rec.Value != 1 {
		t.Fatalf("deaths record = %+v %v, want 1", rec, ok)
	}
	if !a.HasCompleted(arena.ModeLeastTime, p) {
		t.Fatalf("arena not marked completed")
	}
	last := f.world.lastTeleport(t)
	if last.to != home || last.immediate {
		t.Fatalf("exit teleport = %+v, want deferred teleport home", last)
	}
	notes := strings.Join(f.world.notes[p], "\n")
	if !strings.Contains(notes, "New world record for time") {
		t.Fatalf("missing record notification: %q", notes)
	}
	if len(f.outcomes.got) != 1 || f.outcomes.got[0].TimeResult != "WORLD_RECORD" || !f.outcomes.got[0].FirstClear {
		t.Fatalf("outcome = %+v", f.outcomes.got)
	}
}

func TestTriggerWin_UsesArenaExit(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	a, _ := f.dir.Arena("a")
	exit := arena.Location{World: "hub", Y: 70}
	a.Exit = &exit
	s := f.start(t, uuid.New(), "a", arena.ModeDefault)
	s.TriggerWin()
	if got := f.world.lastTeleport(t).to; got != exit {
		t.Fatalf("exit teleport = %+v, want %+v", got, exit)
	}
}

func TestTriggerWin_RestoresEvenIfTeleportFails(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	f.world.presentation[p] = Presentation{SeeOthers: true, Collidable: true}
	s := f.start(t, p, "a", arena.ModeDefault)

	f.world.failTeleport = true
	s.TriggerWin()
	if f.mgr.Active().Len() != 0 || s.State() != StateWon {
		t.Fatalf("win must remove the session")
	}
	if got := f.world.presentation[p]; !got.SeeOthers || !got.Collidable {
		t.Fatalf("entry state not restored: %+v", got)
	}
	if !s.EntryState().Restored() {
		t.Fatalf("entry state not marked restored")
	}
	a, _ := f.dir.Arena("a")
	if !a.HasCompleted(arena.ModeDefault, p) {
		t.Fatalf("arena not marked completed")
	}
}

func TestTriggerQuit_RestoresEvenIfTeleportFails(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	f.world.presentation[p] = Presentation{SeeOthers: true}
	s := f.start(t, p, "a", arena.ModeDefault)

	f.world.failTeleport = true
	s.TriggerQuit(true)
	if f.mgr.Active().Len() != 0 || s.State() != StateQuit {
		t.Fatalf("quit must remove the session")
	}
	if !f.world.presentation[p].SeeOthers {
		t.Fatalf("entry state not restored")
	}
	if !f.world.lastTeleport(t).immediate {
		t.Fatalf("quit(true) should request an immediate teleport")
	}
	a, _ := f.dir.Arena("a")
	if a.Records(arena.ModeDefault).Time().Len() != 0 {
		t.Fatalf("quit must not register records")
	}
}

func TestTerminalSession_IgnoresTriggers(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	s := f.start(t, p, "a", arena.ModeDefault)
	s.TriggerQuit(true)
	teleports := len(f.world.teleports)

	s.TriggerWin()
	s.TriggerLoss()
	s.TriggerQuit(false)
	if len(f.world.teleports) != teleports || s.Deaths() != 0 {
		t.Fatalf("triggers on an ended session must do nothing")
	}
	if !strings.Contains(f.logs.String(), "SEVERE") {
		t.Fatalf("expected SEVERE log, got %q", f.logs.String())
	}
}

func TestTerminate_ReportsMissingDirectoryEntry(t *testing.T) {
	f := newFixture(t, Flags{}, "a")
	p := uuid.New()
	s := f.start(t, p, "a", arena.ModeDefault)
	f.mgr.Active().Remove(p)

	s.TriggerQuit(true)
	if !s.EntryState().Restored() {
		t.Fatalf("entry state must be restored even when the directory lost the session")
	}
	if !strings.Contains(f.logs.String(), "not in the active directory") {
		t.Fatalf("missing consistency log: %q", f.logs.String())
	}
}

func TestEndArena_QuitsOnlyThatArena(t *testing.T) {
	f := newFixture(t, Flags{}, "a", "b")
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	f.start(t, p1, "a", arena.ModeDefault)
	f.start(t, p2, "a", arena.ModeInverted)
	f.start(t, p3, "b", arena.ModeDefault)

	if n := f.mgr.EndArena("a"); n != 2 {
		t.Fatalf("EndArena = %d, want 2", n)
	}
	if f.mgr.Active().Len() != 1 {
		t.Fatalf("active = %d, want 1", f.mgr.Active().Len())
	}
	if _, ok := f.mgr.Session(p3); !ok {
		t.Fatalf("session in arena b should survive")
	}
	for _, c := range f.world.teleports[3:] {
		if c.immediate {
			t.Fatalf("forced quits must not teleport immediately")
		}
	}
}

func TestStart_SequentialGating(t *testing.T) {
	f := newFixture(t, Flags{MustClearSequentially: true}, "a", "b")
	if _, err := f.dir.AddGroup(uuid.New(), "pair", []string{"a", "b"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	p := uuid.New()
	if _, err := f.mgr.Start(p, "b", arena.ModeDefault); !errors.Is(err, ErrLocked) {
		t.Fatalf("start b before a err = %v, want ErrLocked", err)
	}
	if f.world.presentation[p] != (Presentation{}) || len(f.world.notes[p]) != 1 {
		t.Fatalf("locked start should only notify the player")
	}
	f.start(t, p, "a", arena.ModeDefault).TriggerWin()
	f.start(t, p, "b", arena.ModeDefault)
}

func TestTriggerWin_SuppressedUntilGroupCleared(t *testing.T) {
	f := newFixture(t, Flags{SuppressRecordsUntilGroupCleared: true}, "a", "b")
	if _, err := f.dir.AddGroup(uuid.New(), "pair", []string{"a", "b"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	p := uuid.New()
	a, _ := f.dir.Arena("a")
	b, _ := f.dir.Arena("b")

	f.start(t, p, "a", arena.ModeDefault).TriggerWin()
	f.start(t, p, "b", arena.ModeDefault).TriggerWin()
	if a.Records(arena.ModeDefault).Time().Len() != 0 || b.Records(arena.ModeDefault).Time().Len() != 0 {
		t.Fatalf("records registered before the group was cleared")
	}
	if !a.HasCompleted(arena.ModeDefault, p) || !b.HasCompleted(arena.ModeDefault, p) {
		t.Fatalf("completions must be tracked while records are suppressed")
	}
	if !f.outcomes.got[0].Suppressed {
		t.Fatalf("outcome should be flagged suppressed")
	}

	f.start(t, p, "a", arena.ModeDefault).TriggerWin()
	if a.Records(arena.ModeDefault).Time().Len() != 1 {
		t.Fatalf("records should register once the group is cleared")
	}
}

func TestGroupRecords_EndToEnd(t *testing.T) {
	f := newFixture(t, Flags{}, "A", "B")
	g, err := f.dir.AddGroup(uuid.New(), "G", []string{"A", "B"})
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	p, q := uuid.New(), uuid.New()

	s := f.start(t, p, "A", arena.ModeLeastDeaths)
	s.TriggerLoss()
	s.TriggerLoss()
	f.advance(1000 * time.Millisecond)
	s.TriggerWin()

	s = f.start(t, p, "B", arena.ModeLeastDeaths)
	s.TriggerLoss()
	f.advance(500 * time.Millisecond)
	s.TriggerWin()

	f.start(t, q, "A", arena.ModeLeastDeaths).TriggerWin()

	deaths := leaderboard.CombineDeaths(f.dir, g, arena.ModeLeastDeaths)
	if len(deaths) != 1 || deaths[0].Player != p || deaths[0].Value != records.Deaths(3) {
		t.Fatalf("combined deaths = %+v, want only p with 3", deaths)
	}
	times := leaderboard.CombineTime(f.dir, g, arena.ModeLeastDeaths)
	if len(times) != 1 || times[0].Value != records.Millis(1500) {
		t.Fatalf("combined time = %+v, want 1500", times)
	}
}
