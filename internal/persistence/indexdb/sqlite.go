package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

var ErrClosed = errors.New("store closed")

// SQLiteStore persists boards, completions and groups. Writes are queued and
// applied by a single writer goroutine in batched transactions. A write that
// finds the queue full is dropped and counted; the game loop never waits on
// sqlite.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
}

type QueueStats struct {
	Depth    int
	Capacity int
	Dropped  uint64
}

type reqKind int

const (
	reqRecord reqKind = iota + 1
	reqCompletion
	reqGroup
	reqDeleteGroup
	reqDeleteArena
	reqArenaEdit
	reqClearEdits
	reqFlush
)

type req struct {
	kind reqKind

	arenaID string
	mode    arena.GameMode
	rkind   records.Kind
	player  uuid.UUID
	value   int64

	groupID   uuid.UUID
	groupName string
	arenaIDs  []string

	prop      arena.Property
	propValue string

	done chan struct{}
}

func OpenSQLite(path string, logger *log.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		ch:     make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			arena_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			kind TEXT NOT NULL,
			player TEXT NOT NULL,
			value INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (arena_id, mode, kind, player)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_board ON records(arena_id, mode, kind, value);`,
		`CREATE TABLE IF NOT EXISTS completions (
			arena_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			player TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			PRIMARY KEY (arena_id, mode, player)
		);`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS group_arenas (
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			pos INTEGER NOT NULL,
			arena_id TEXT NOT NULL,
			PRIMARY KEY (group_id, pos)
		);`,
		`CREATE TABLE IF NOT EXISTS arena_edits (
			arena_id TEXT NOT NULL,
			prop TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (arena_id, prop)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) enqueue(r req) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- r:
		return true
	default:
	}
	n := s.dropped.Add(1)
	if n == 1 || n%1000 == 0 {
		s.printf("WARN: indexdb: write queue full, %d writes dropped", n)
	}
	return false
}

func (s *SQLiteStore) Stats() QueueStats {
	return QueueStats{Depth: len(s.ch), Capacity: cap(s.ch), Dropped: s.dropped.Load()}
}

func (s *SQLiteStore) PutRecord(arenaID string, mode arena.GameMode, kind records.Kind, player uuid.UUID, value int64) {
	s.enqueue(req{kind: reqRecord, arenaID: arenaID, mode: mode, rkind: kind, player: player, value: value})
}

func (s *SQLiteStore) PutCompletion(arenaID string, mode arena.GameMode, player uuid.UUID) {
	s.enqueue(req{kind: reqCompletion, arenaID: arenaID, mode: mode, player: player})
}

func (s *SQLiteStore) PutGroup(id uuid.UUID, name string, arenaIDs []string) {
	ids := append([]string(nil), arenaIDs...)
	s.enqueue(req{kind: reqGroup, groupID: id, groupName: name, arenaIDs: ids})
}

func (s *SQLiteStore) DeleteGroup(id uuid.UUID) {
	s.enqueue(req{kind: reqDeleteGroup, groupID: id})
}

func (s *SQLiteStore) DeleteArena(arenaID string) {
	s.enqueue(req{kind: reqDeleteArena, arenaID: arenaID})
}

func (s *SQLiteStore) PutArenaEdit(arenaID string, prop arena.Property, value string) {
	s.enqueue(req{kind: reqArenaEdit, arenaID: arenaID, prop: prop, propValue: value})
}

func (s *SQLiteStore) ClearArenaEdits(arenaID string) {
	s.enqueue(req{kind: reqClearEdits, arenaID: arenaID})
}

// Flush blocks until every write queued before it is committed. Unlike the
// Put methods it waits for queue space.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteStore) printf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *SQLiteStore) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.printf("WARN: indexdb begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.printf("WARN: indexdb commit: %v", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.printf("WARN: indexdb write: %v", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case next, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = next
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		if err := apply(tx, r); err != nil {
			rollback(err)
			continue
		}
		opCount++
		if opCount >= commitEvery {
			commit()
		}
	}
}

func apply(tx *sql.Tx, r req) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	switch r.kind {
	case reqRecord:
		_, err := tx.Exec(`INSERT OR REPLACE INTO records(arena_id,mode,kind,player,value,updated_at) VALUES(?,?,?,?,?,?)`,
			r.arenaID, string(r.mode), r.rkind.String(), r.player.String(), r.value, now)
		return err
	case reqCompletion:
		_, err := tx.Exec(`INSERT OR IGNORE INTO completions(arena_id,mode,player,completed_at) VALUES(?,?,?,?)`,
			r.arenaID, string(r.mode), r.player.String(), now)
		return err
	case reqGroup:
		id := r.groupID.String()
		if _, err := tx.Exec(`INSERT INTO groups(id,name) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, id, r.groupName); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM group_arenas WHERE group_id=?`, id); err != nil {
			return err
		}
		for i, arenaID := range r.arenaIDs {
			if _, err := tx.Exec(`INSERT INTO group_arenas(group_id,pos,arena_id) VALUES(?,?,?)`, id, i, arenaID); err != nil {
				return err
			}
		}
		return nil
	case reqDeleteGroup:
		_, err := tx.Exec(`DELETE FROM groups WHERE id=?`, r.groupID.String())
		return err
	case reqDeleteArena:
		for _, q := range []string{
			`DELETE FROM records WHERE arena_id=?`,
			`DELETE FROM completions WHERE arena_id=?`,
			`DELETE FROM arena_edits WHERE arena_id=?`,
		} {
			if _, err := tx.Exec(q, r.arenaID); err != nil {
				return err
			}
		}
		return nil
	case reqArenaEdit:
		_, err := tx.Exec(`INSERT OR REPLACE INTO arena_edits(arena_id,prop,value,updated_at) VALUES(?,?,?,?)`,
			r.arenaID, r.prop.String(), r.propValue, now)
		return err
	case reqClearEdits:
		_, err := tx.Exec(`DELETE FROM arena_edits WHERE arena_id=?`, r.arenaID)
		return err
	}
	return fmt.Errorf("unknown request kind %d", r.kind)
}
