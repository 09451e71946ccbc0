package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/persistence/indexdb"
	persistlog "arenaworks.dev/internal/persistence/log"
	"arenaworks.dev/internal/persistence/snapshot"
	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/leaderboard"
	"arenaworks.dev/internal/sim/records"
	"arenaworks.dev/internal/sim/session"
	"arenaworks.dev/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "top":
			topCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		case "outcomes":
			outcomesCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	configPath := fs.String("config", "./configs/arenas.yaml", "path to arenas.yaml")
	_ = fs.Parse(args)

	cfg, err := tuning.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	for _, a := range cfg.Arenas {
		fmt.Printf("%s\t%s\t%s\n", a.ID, a.Kind, a.Name)
	}
	for _, g := range cfg.Groups {
		fmt.Printf("group %s\t%s\n", g.Name, strings.Join(g.Arenas, ","))
	}
}

// loadDirectory rebuilds the server's view: configured arenas, stored boards
// and groups, then configured groups not yet stored. When attach is true the
// store is attached so later changes are written back.
func loadDirectory(configPath, dbPath string, attach bool) (*arena.Directory, *indexdb.SQLiteStore, error) {
	cfg, err := tuning.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	dir := arena.NewDirectory(nil)
	if err := cfg.ApplyArenas(dir); err != nil {
		return nil, nil, err
	}
	store, err := indexdb.OpenSQLite(dbPath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := store.Load(context.Background(), dir); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("load store: %w", err)
	}
	if attach {
		dir.SetStore(store)
	}
	if err := cfg.ApplyGroups(dir); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return dir, store, nil
}

func defaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "arenas.sqlite")
}

func topCmd(args []string) {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	configPath := fs.String("config", "./configs/arenas.yaml", "path to arenas.yaml")
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	arenaRef := fs.String("arena", "", "arena id or name")
	groupRef := fs.String("group", "", "group name or id")
	modeName := fs.String("mode", "DEFAULT", "game mode")
	kindName := fs.String("kind", "time", "board kind: time|deaths")
	limit := fs.Int("limit", 10, "result limit")
	_ = fs.Parse(args)

	if (*arenaRef == "") == (*groupRef == "") {
		fmt.Fprintln(os.Stderr, "need exactly one of -arena or -group")
		os.Exit(2)
	}
	mode, ok := arena.ParseGameMode(*modeName)
	if !ok {
		fmt.Fprintln(os.Stderr, "bad -mode:", *modeName)
		os.Exit(2)
	}
	kind, ok := records.ParseKind(strings.ToLower(*kindName))
	if !ok {
		fmt.Fprintln(os.Stderr, "bad -kind:", *kindName)
		os.Exit(2)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = defaultDBPath(*dataDir)
	}

	dir, store, err := loadDirectory(*configPath, path, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	boards := leaderboard.NewBoards(dir, time.Now)
	var lines []leaderboard.Line
	if *groupRef != "" {
		g, ok := dir.GroupByName(*groupRef)
		if !ok {
			if id, err := uuid.Parse(*groupRef); err == nil {
				g, ok = dir.Group(id)
			}
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "unknown group:", *groupRef)
			os.Exit(2)
		}
		lines, err = boards.GroupLines(g, mode, kind)
	} else {
		a, ok := dir.Arena(*arenaRef)
		if !ok {
			a, ok = dir.ArenaByName(*arenaRef)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "unknown arena:", *arenaRef)
			os.Exit(2)
		}
		lines, err = boards.ArenaLines(a, mode, kind)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for i, l := range lines {
		if *limit > 0 && i >= *limit {
			break
		}
		_ = enc.Encode(l)
	}
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "./configs/arenas.yaml", "path to arenas.yaml")
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	outPath := fs.String("out", "", "output snapshot path (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*outPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = defaultDBPath(*dataDir)
	}
	dir, store, err := loadDirectory(*configPath, path, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	snap := snapshot.Capture(dir, time.Now())
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d arenas, %d groups)\n", *outPath, snap.Header.Arenas, snap.Header.Groups)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "./configs/arenas.yaml", "path to arenas.yaml")
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	inPath := fs.String("in", "", "snapshot to import (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*inPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(*inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = defaultDBPath(*dataDir)
	}
	dir, store, err := loadDirectory(*configPath, path, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	st, err := snapshot.Restore(dir, snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	if err := store.Flush(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "flush:", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d records, %d completions, %d groups (%d skipped)\n", st.Records, st.Completions, st.Groups, st.Skipped)
}

func outcomesCmd(args []string) {
	fs := flag.NewFlagSet("outcomes", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player uuid filter")
	arenaID := fs.String("arena", "", "arena id filter")
	_ = fs.Parse(args)

	enc := json.NewEncoder(os.Stdout)
	err := persistlog.ReadOutcomes(*dataDir, func(o session.Outcome) error {
		if *player != "" && o.Player.String() != *player {
			return nil
		}
		if *arenaID != "" && o.ArenaID != *arenaID {
			return nil
		}
		return enc.Encode(o)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read outcomes:", err)
		os.Exit(1)
	}
}
