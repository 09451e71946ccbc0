package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
)

func newDirectory(t *testing.T, ids ...string) *arena.Directory {
	t.Helper()
	dir := arena.NewDirectory(nil)
	for _, id := range ids {
		if err := dir.Add(arena.New(id, id, arena.KindDropper, arena.Location{World: "w"})); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	return dir
}

func TestSnapshot_WriteReadRestore(t *testing.T) {
	p, q := uuid.New(), uuid.New()
	src := newDirectory(t, "a", "b")
	a, _ := src.Arena("a")
	a.RegisterTime(arena.ModeDefault, p, 1200)
	a.RegisterTime(arena.ModeDefault, q, 1200)
	a.RegisterDeaths(arena.ModeInverted, q, 5)
	a.MarkCompleted(arena.ModeDefault, p)
	b, _ := src.Arena("b")
	b.MarkCompleted(arena.ModeLeastTime, q)
	gid := uuid.New()
	if _, err := src.AddGroup(gid, "Both", []string{"b", "a"}); err != nil {
		t.Fatalf("group: %v", err)
	}

	snap := Capture(src, time.Unix(1700000000, 0))
	path := filepath.Join(t.TempDir(), "records", "latest.snap.zst")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != Version || h.Arenas != 2 || h.Groups != 1 {
		t.Fatalf("header = %+v", h)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dst := newDirectory(t, "a", "b")
	st, err := Restore(dst, got)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.Records != 3 || st.Completions != 2 || st.Groups != 1 || st.Skipped != 0 {
		t.Fatalf("stats = %+v", st)
	}
	da, _ := dst.Arena("a")
	best, ok := da.Records(arena.ModeDefault).Time().Best()
	if !ok || best.Player != p {
		t.Fatalf("tie order lost: %+v", best)
	}
	if !da.HasCompleted(arena.ModeDefault, p) {
		t.Fatalf("completion lost")
	}
	db, _ := dst.Arena("b")
	if !db.HasCompleted(arena.ModeLeastTime, q) {
		t.Fatalf("completion-only mode lost")
	}
	g, ok := dst.Group(gid)
	if !ok || len(g.Arenas()) != 2 || g.Arenas()[0] != "b" {
		t.Fatalf("group = %+v", g)
	}
}

func TestRestore_SkipsUnknownArenasAndKeepsBetterValues(t *testing.T) {
	p := uuid.New()
	src := newDirectory(t, "a", "gone")
	a, _ := src.Arena("a")
	a.RegisterDeaths(arena.ModeDefault, p, 4)
	gone, _ := src.Arena("gone")
	gone.RegisterDeaths(arena.ModeDefault, p, 1)
	snap := Capture(src, time.Now())

	dst := newDirectory(t, "a")
	da, _ := dst.Arena("a")
	da.RegisterDeaths(arena.ModeDefault, p, 2)
	st, err := Restore(dst, snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", st.Skipped)
	}
	if rec, _ := da.Records(arena.ModeDefault).Deaths().Get(p); rec.Value != 2 {
		t.Fatalf("restore overwrote a better value: %+v", rec)
	}

	snap.Header.Version = 99
	if _, err := Restore(dst, snap); err == nil {
		t.Fatalf("expected version error")
	}
}
