package main

import (
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"arenaworks.dev/internal/persistence/snapshot"
	"arenaworks.dev/internal/sim/session"
)

func TestWriteSnapshot_ConcurrentWritersLeaveReadableFile(t *testing.T) {
	h := newTestHandler(t, session.Flags{})
	mustHandle(t, h, `{"op":"join","player":"eve"}`)
	mustHandle(t, h, `{"op":"start","player":"eve","arena":"a"}`)
	mustHandle(t, h, `{"op":"win","player":"eve"}`)

	dataDir := t.TempDir()
	snapDir := filepath.Join(dataDir, "snapshots")
	logger := log.New(io.Discard, "", 0)
	snap := snapshot.Capture(h.dir, time.Now())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := writeSnapshot(dataDir, snapDir, snap, logger); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("write snapshot: %v", err)
	}

	got, err := snapshot.ReadSnapshot(filepath.Join(snapDir, "records.snap.zst"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if got.Header.Arenas != 3 || len(got.Arenas) != 3 {
		t.Fatalf("arenas = %d/%d, want 3", got.Header.Arenas, len(got.Arenas))
	}
}
