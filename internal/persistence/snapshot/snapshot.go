package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	TakenAt string `json:"taken_at"`
	Arenas  int    `json:"arenas"`
	Groups  int    `json:"groups"`
}

// RecordsV1 is a portable dump of every board, completion set and group.
type RecordsV1 struct {
	Header Header `json:"header"`

	Arenas []ArenaV1 `json:"arenas"`
	Groups []GroupV1 `json:"groups"`
}

type ArenaV1 struct {
	ID    string   `json:"id"`
	Modes []ModeV1 `json:"modes"`
}

type ModeV1 struct {
	Mode string `json:"mode"`
	// Entries are best first; equal values keep the order they were set in.
	Time        []EntryV1 `json:"time,omitempty"`
	Deaths      []EntryV1 `json:"deaths,omitempty"`
	Completions []string  `json:"completions,omitempty"`
}

type EntryV1 struct {
	Player string `json:"player"`
	Value  int64  `json:"value"`
}

type GroupV1 struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Arenas []string `json:"arenas"`
}

// Capture dumps dir. Arenas and groups come out in directory order.
func Capture(dir *arena.Directory, now time.Time) RecordsV1 {
	snap := RecordsV1{}
	for _, a := range dir.Arenas() {
		av := ArenaV1{ID: a.ID}
		for _, mode := range a.RecordModes() {
			reg := a.Records(mode)
			mv := ModeV1{Mode: string(mode)}
			for _, r := range reg.TimeRecords() {
				mv.Time = append(mv.Time, EntryV1{Player: r.Player.String(), Value: int64(r.Value)})
			}
			for _, r := range reg.DeathRecords() {
				mv.Deaths = append(mv.Deaths, EntryV1{Player: r.Player.String(), Value: int64(r.Value)})
			}
			for _, p := range a.Completions(mode) {
				mv.Completions = append(mv.Completions, p.String())
			}
			sort.Strings(mv.Completions)
			av.Modes = append(av.Modes, mv)
		}
		snap.Arenas = append(snap.Arenas, av)
	}
	for _, g := range dir.Groups() {
		snap.Groups = append(snap.Groups, GroupV1{ID: g.ID.String(), Name: g.Name, Arenas: g.Arenas()})
	}
	snap.Header = Header{
		Version: Version,
		TakenAt: now.UTC().Format(time.RFC3339Nano),
		Arenas:  len(snap.Arenas),
		Groups:  len(snap.Groups),
	}
	return snap
}

type RestoreStats struct {
	Records     int
	Completions int
	Groups      int
	Skipped     int
}

// Restore loads snap into dir. Boards of arenas in snap are replaced only
// through normal registration rules, so restoring into a non-empty board keeps
// whichever value is better. Groups already present by id or name are left
// alone.
func Restore(dir *arena.Directory, snap RecordsV1) (RestoreStats, error) {
	var st RestoreStats
	if snap.Header.Version != Version {
		return st, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, Version)
	}
	for _, av := range snap.Arenas {
		a, ok := dir.Arena(av.ID)
		if !ok {
			st.Skipped++
			continue
		}
		for _, mv := range av.Modes {
			mode, ok := arena.ParseGameMode(mv.Mode)
			if !ok {
				st.Skipped++
				continue
			}
			for _, e := range mv.Time {
				p, err := uuid.Parse(e.Player)
				if err != nil {
					st.Skipped++
					continue
				}
				a.RegisterTime(mode, p, records.Millis(e.Value))
				st.Records++
			}
			for _, e := range mv.Deaths {
				p, err := uuid.Parse(e.Player)
				if err != nil {
					st.Skipped++
					continue
				}
				a.RegisterDeaths(mode, p, records.Deaths(e.Value))
				st.Records++
			}
			for _, s := range mv.Completions {
				p, err := uuid.Parse(s)
				if err != nil {
					st.Skipped++
					continue
				}
				a.MarkCompleted(mode, p)
				st.Completions++
			}
		}
	}
	for _, gv := range snap.Groups {
		id, err := uuid.Parse(gv.ID)
		if err != nil {
			st.Skipped++
			continue
		}
		if _, ok := dir.Group(id); ok {
			continue
		}
		if _, ok := dir.GroupByName(gv.Name); ok {
			continue
		}
		var members []string
		for _, arenaID := range gv.Arenas {
			if _, ok := dir.Arena(arenaID); !ok {
				st.Skipped++
				continue
			}
			if _, ok := dir.GroupContaining(arenaID); ok {
				st.Skipped++
				continue
			}
			members = append(members, arenaID)
		}
		if _, err := dir.AddGroup(id, gv.Name, members); err != nil {
			return st, err
		}
		st.Groups++
	}
	return st, nil
}

func WriteSnapshot(path string, snap RecordsV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (RecordsV1, error) {
	var snap RecordsV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for humans and tools; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader returns only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, err
	}
	return h, nil
}
