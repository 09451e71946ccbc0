package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"arenaworks.dev/internal/persistence/indexdb"
)

func openStore(dataDir string, disableDB bool, logger *log.Logger) (*indexdb.SQLiteStore, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("ARENA_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := strings.TrimSpace(os.Getenv("ARENA_INDEX_SQLITE_PATH"))
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "index", "arenas.sqlite")
		}
		return indexdb.OpenSQLite(dbPath, logger)
	default:
		return nil, fmt.Errorf("unsupported ARENA_INDEX_BACKEND: %s", backend)
	}
}
