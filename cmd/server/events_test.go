package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/leaderboard"
	"arenaworks.dev/internal/sim/players"
	"arenaworks.dev/internal/sim/session"
	"arenaworks.dev/internal/sim/tuning"
)

func newTestHandler(t *testing.T, flags session.Flags) *handler {
	t.Helper()
	cfg := tuning.Tuning{
		Arenas: []tuning.ArenaSpec{
			{ID: "a", Name: "Alpha", Kind: "DROPPER", Spawn: arena.Location{World: "arenas", Y: 200}},
			{ID: "b", Name: "Beta", Kind: "DROPPER", Spawn: arena.Location{World: "arenas", X: 100, Y: 200}},
			{ID: "p", Name: "Parkour", Kind: "PARKOUR", Spawn: arena.Location{World: "arenas", Z: 100}},
		},
		Groups: []tuning.GroupSpec{{Name: "Pair", Arenas: []string{"a", "b"}}},
	}
	cfg.Normalize()
	dir := arena.NewDirectory(nil)
	if err := cfg.Apply(dir); err != nil {
		t.Fatalf("apply: %v", err)
	}
	world := players.NewWorld(nil)
	mgr := session.NewManager(session.Config{Directory: dir, World: world, Flags: flags})
	return &handler{
		dir:    dir,
		world:  world,
		mgr:    mgr,
		boards: leaderboard.NewBoards(dir, time.Now),
	}
}

func mustHandle(t *testing.T, h *handler, line string) reply {
	t.Helper()
	ev, err := decodeEvent([]byte(line))
	if err != nil {
		t.Fatalf("decode %s: %v", line, err)
	}
	r := h.handle(ev)
	if !r.OK {
		t.Fatalf("%s: %s", line, r.Error)
	}
	return r
}

func TestHandler_PlayThroughGroup(t *testing.T) {
	h := newTestHandler(t, session.Flags{MustClearSequentially: true})
	for _, name := range []string{"ann", "bob"} {
		mustHandle(t, h, `{"op":"join","player":"`+name+`"}`)
	}

	ev, _ := decodeEvent([]byte(`{"op":"start","player":"ann","arena":"Beta"}`))
	if r := h.handle(ev); r.OK || !strings.Contains(r.Error, "locked") {
		t.Fatalf("second arena should be locked: %+v", r)
	}

	for _, name := range []string{"ann", "bob"} {
		mustHandle(t, h, `{"op":"start","player":"`+name+`","arena":"a"}`)
	}
	mustHandle(t, h, `{"op":"loss","player":"bob"}`)
	mustHandle(t, h, `{"op":"win","player":"ann"}`)
	mustHandle(t, h, `{"op":"win","player":"bob"}`)
	for _, name := range []string{"ann", "bob"} {
		mustHandle(t, h, `{"op":"start","player":"`+name+`","arena":"b"}`)
		mustHandle(t, h, `{"op":"win","player":"`+name+`"}`)
	}

	r := mustHandle(t, h, `{"op":"top","group":"pair","kind":"deaths"}`)
	if len(r.Lines) != 2 {
		t.Fatalf("group board = %+v", r.Lines)
	}
	ann, _ := playerID(event{Player: "ann"})
	if r.Lines[0].Player != ann || r.Lines[0].Value != 0 || r.Lines[1].Value != 1 {
		t.Fatalf("group deaths = %+v", r.Lines)
	}

	r = mustHandle(t, h, `{"op":"placing","arena":"a","kind":"deaths","n":2}`)
	if len(r.Lines) != 1 || r.Lines[0].Placing != 2 || r.Lines[0].Value != 1 {
		t.Fatalf("placing 2 = %+v", r.Lines)
	}
}

func TestHandler_PlacingPastEndIsEmpty(t *testing.T) {
	h := newTestHandler(t, session.Flags{})
	mustHandle(t, h, `{"op":"join","player":"dee"}`)
	mustHandle(t, h, `{"op":"start","player":"dee","arena":"a"}`)
	mustHandle(t, h, `{"op":"win","player":"dee"}`)

	r := mustHandle(t, h, `{"op":"placing","arena":"a","kind":"time","n":5}`)
	if len(r.Lines) != 0 || r.Error != "" {
		t.Fatalf("placing 5 = %+v, want ok with no lines", r)
	}
	r = mustHandle(t, h, `{"op":"placing","arena":"a","kind":"time","n":1}`)
	if len(r.Lines) != 1 || r.Lines[0].Placing != 1 {
		t.Fatalf("placing 1 = %+v", r.Lines)
	}
}

func TestHandler_GroupAdmin(t *testing.T) {
	h := newTestHandler(t, session.Flags{})
	mustHandle(t, h, `{"op":"group_create","group":"Solo"}`)
	ev, _ := decodeEvent([]byte(`{"op":"group_add","group":"Solo","arena":"a"}`))
	if r := h.handle(ev); r.OK {
		t.Fatalf("arena a already belongs to Pair")
	}
	r := mustHandle(t, h, `{"op":"group_add","group":"Solo","arena":"p"}`)
	if len(r.Groups) != 2 {
		t.Fatalf("groups = %+v", r.Groups)
	}
	r = mustHandle(t, h, `{"op":"group_swap","group":"Pair","i":0,"j":1}`)
	for _, g := range r.Groups {
		if g.Name == "Pair" && strings.Join(g.Arenas, ",") != "b,a" {
			t.Fatalf("swap not applied: %+v", g)
		}
	}
	mustHandle(t, h, `{"op":"group_remove","arena":"b"}`)
	r = mustHandle(t, h, `{"op":"group_delete","group":"Solo"}`)
	if len(r.Groups) != 1 || strings.Join(r.Groups[0].Arenas, ",") != "a" {
		t.Fatalf("groups after delete = %+v", r.Groups)
	}
}

func TestHandler_ArenaDeleteEndsSessions(t *testing.T) {
	h := newTestHandler(t, session.Flags{})
	mustHandle(t, h, `{"op":"join","player":"cy","at":"lobby,1,64,1"}`)
	mustHandle(t, h, `{"op":"start","player":"cy","arena":"p","mode":"inverted"}`)
	r := mustHandle(t, h, `{"op":"arena_delete","arena":"p"}`)
	if r.Ended != 1 {
		t.Fatalf("ended = %d, want 1", r.Ended)
	}
	id, _ := playerID(event{Player: "cy"})
	if _, ok := h.mgr.Session(id); ok {
		t.Fatalf("session survived arena delete")
	}
	if loc := h.world.Location(id); loc.World != "lobby" || loc.X != 1 {
		t.Fatalf("player not returned: %+v", loc)
	}
	ev, _ := decodeEvent([]byte(`{"op":"quit","player":"cy"}`))
	if r := h.handle(ev); r.OK {
		t.Fatalf("quit without a session should fail")
	}
}

func TestHandler_EditSurvivesReload(t *testing.T) {
	h := newTestHandler(t, session.Flags{})
	mustHandle(t, h, `{"op":"arena_edit","arena":"a","prop":"vertical_speed","value":"0.4"}`)
	a, _ := h.dir.Arena("a")
	if a.VerticalSpeed != 0.4 {
		t.Fatalf("vertical speed = %v", a.VerticalSpeed)
	}

	next := tuning.Tuning{
		MustClearSequentially: true,
		Arenas: []tuning.ArenaSpec{
			{ID: "a", Name: "Alpha", Kind: "DROPPER", Spawn: arena.Location{World: "arenas", Y: 200}},
		},
	}
	next.Normalize()
	h.reload(next)
	if _, ok := h.dir.Arena("b"); ok {
		t.Fatalf("b should be gone after reload")
	}
	a, _ = h.dir.Arena("a")
	if a.VerticalSpeed != 0.4 {
		t.Fatalf("reload reverted the edit, vertical speed = %v", a.VerticalSpeed)
	}

	mustHandle(t, h, `{"op":"arena_reset","arena":"a"}`)
	h.reload(next)
	a, _ = h.dir.Arena("a")
	if a.VerticalSpeed != 1 {
		t.Fatalf("after reset, reload should restore configured speed, got %v", a.VerticalSpeed)
	}
}

func TestReplyWriter_OneLinePerReply(t *testing.T) {
	var buf bytes.Buffer
	w := newReplyWriter(&buf)
	w.write(reply{Op: "notify", OK: true, Message: "hi"})
	w.write(reply{Op: "error", Error: "bad"})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var r reply
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil || r.Error != "bad" {
		t.Fatalf("decode: %v %+v", err, r)
	}
	if _, err := decodeEvent([]byte(`{"player":"x"}`)); err == nil {
		t.Fatalf("missing op should be rejected")
	}
}
