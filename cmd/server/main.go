package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"arenaworks.dev/internal/persistence/archive"
	persistlog "arenaworks.dev/internal/persistence/log"
	"arenaworks.dev/internal/persistence/snapshot"
	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/leaderboard"
	"arenaworks.dev/internal/sim/loop"
	"arenaworks.dev/internal/sim/players"
	"arenaworks.dev/internal/sim/session"
	"arenaworks.dev/internal/sim/tuning"
)

func main() {
	var (
		configPath    = flag.String("config", "./configs/arenas.yaml", "path to arenas.yaml")
		dataDir       = flag.String("data", "./data", "runtime data directory")
		disableDB     = flag.Bool("disable_db", false, "disable the sqlite record store")
		watch         = flag.Bool("watch", true, "reload arenas when the config file changes")
		snapshotEvery = flag.Duration("snapshot_every", 10*time.Minute, "records snapshot interval (0 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	arenaLogger := log.New(os.Stdout, "[arena] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	dir := arena.NewDirectory(arenaLogger)
	if err := tune.ApplyArenas(dir); err != nil {
		logger.Fatalf("load arenas: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	if store != nil {
		defer store.Close()
		defer func() {
			if qs := store.Stats(); qs.Dropped > 0 {
				logger.Printf("WARN: record store dropped %d writes; the latest snapshot holds the full state", qs.Dropped)
			}
		}()
		st, err := store.Load(ctx, dir)
		if err != nil {
			logger.Fatalf("restore records: %v", err)
		}
		logger.Printf("restored %d records, %d completions, %d groups, %d edits (%d skipped)", st.Records, st.Completions, st.Groups, st.Edits, st.Skipped)
		dir.SetStore(store)
	}
	if err := tune.ApplyGroups(dir); err != nil {
		logger.Fatalf("load groups: %v", err)
	}

	outcomes := persistlog.NewOutcomeLogger(*dataDir)
	defer outcomes.Close()

	l := loop.New(tune.TickRateHz)
	out := newReplyWriter(os.Stdout)
	world := players.NewWorld(l)
	world.OnNotify = func(p *players.Player, msg string) {
		out.write(reply{Op: "notify", OK: true, Player: p.ID.String(), Message: msg})
	}
	mgr := session.NewManager(session.Config{
		Directory: dir,
		World:     world,
		Flags:     tune.Flags(),
		Outcomes:  outcomes,
		Logger:    logger,
	})
	boards := leaderboard.NewBoards(dir, time.Now)

	snapDir := filepath.Join(*dataDir, "snapshots")
	h := &handler{
		dir:    dir,
		world:  world,
		mgr:    mgr,
		boards: boards,
		logger: logger,
		snapshot: func() (string, error) {
			return writeSnapshot(*dataDir, snapDir, snapshot.Capture(dir, time.Now()), logger)
		},
	}

	go readEvents(ctx, os.Stdin, l, h, out, logger)

	if *watch && strings.TrimSpace(*configPath) != "" {
		w, err := tuning.NewWatcher(*configPath)
		if err != nil {
			logger.Printf("config watch disabled: %v", err)
		} else {
			defer w.Close()
			go watchConfig(ctx, w, *configPath, l, h, logger)
		}
	}

	if *snapshotEvery > 0 {
		go func() {
			t := time.NewTicker(*snapshotEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					var snap snapshot.RecordsV1
					if err := l.Call(ctx, func() { snap = snapshot.Capture(dir, time.Now()) }); err != nil {
						return
					}
					if _, err := writeSnapshot(*dataDir, snapDir, snap, logger); err != nil {
						logger.Printf("snapshot: %v", err)
					}
				}
			}
		}()
	}

	logger.Printf("serving %d arenas, %d groups at %d Hz", len(dir.Arenas()), len(dir.Groups()), tune.TickRateHz)
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		logger.Printf("loop stopped: %v", err)
	}

	// The loop is gone; the directory is ours again.
	for _, s := range mgr.Active().Sessions() {
		s.TriggerQuit(true)
	}
	if _, err := writeSnapshot(*dataDir, snapDir, snapshot.Capture(dir, time.Now()), logger); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
	logger.Printf("shutdown complete")
}

// snapshotMu serializes the periodic writer and the snapshot op, which share
// the tmp path and the archive directory.
var snapshotMu sync.Mutex

func writeSnapshot(dataDir, snapDir string, snap snapshot.RecordsV1, logger *log.Logger) (string, error) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	path := filepath.Join(snapDir, "records.snap.zst")
	tmp := path + ".tmp"
	if err := snapshot.WriteSnapshot(tmp, snap); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	if archived, ok, err := archive.ArchiveDaily(dataDir, path, snap.Header, time.Now()); err != nil {
		logger.Printf("archive snapshot: %v", err)
	} else if ok {
		logger.Printf("archived snapshot to %s", archived)
	}
	return path, nil
}

func readEvents(ctx context.Context, r io.Reader, l *loop.Loop, h *handler, out *replyWriter, logger *log.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := decodeEvent([]byte(line))
		if err != nil {
			out.write(reply{Op: "error", Error: err.Error()})
			continue
		}
		if err := l.Submit(ctx, func() { out.write(h.handle(ev)) }); err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil {
		logger.Printf("read events: %v", err)
	}
}

func watchConfig(ctx context.Context, w *tuning.Watcher, path string, l *loop.Loop, h *handler, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Printf("config watch: %v", err)
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			next, err := tuning.Load(path)
			if err != nil {
				logger.Printf("config reload rejected: %v", err)
				continue
			}
			if err := l.Submit(ctx, func() { h.reload(next) }); err != nil {
				return
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
