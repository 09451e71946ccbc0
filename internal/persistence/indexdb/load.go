package indexdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

type LoadStats struct {
	Records     int
	Completions int
	Groups      int
	Edits       int
	// Skipped counts rows that refer to arenas the directory does not have.
	Skipped int
}

// Load restores stored boards, completions, arena edits and groups into dir. It must run
// before dir.SetStore so nothing is written back. Records are restored in
// the order they were last set, which keeps tie order stable.
func (s *SQLiteStore) Load(ctx context.Context, dir *arena.Directory) (LoadStats, error) {
	var st LoadStats
	if err := s.Flush(ctx); err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT arena_id, mode, kind, player, value FROM records ORDER BY rowid`)
	if err != nil {
		return st, err
	}
	err = eachRow(rows, func() error {
		var (
			arenaID, mode, kind, player string
			value                       int64
		)
		if err := rows.Scan(&arenaID, &mode, &kind, &player, &value); err != nil {
			return err
		}
		a, ok := dir.Arena(arenaID)
		gm, okMode := arena.ParseGameMode(mode)
		k, okKind := records.ParseKind(kind)
		id, err := uuid.Parse(player)
		if !ok || !okMode || !okKind || err != nil {
			st.Skipped++
			return nil
		}
		reg := a.Records(gm)
		switch k {
		case records.KindDeaths:
			reg.Deaths().Restore(records.New(id, records.Deaths(value)))
		case records.KindTime:
			reg.Time().Restore(records.New(id, records.Millis(value)))
		}
		st.Records++
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("restore records: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT arena_id, mode, player FROM completions`)
	if err != nil {
		return st, err
	}
	err = eachRow(rows, func() error {
		var arenaID, mode, player string
		if err := rows.Scan(&arenaID, &mode, &player); err != nil {
			return err
		}
		a, ok := dir.Arena(arenaID)
		gm, okMode := arena.ParseGameMode(mode)
		id, err := uuid.Parse(player)
		if !ok || !okMode || err != nil {
			st.Skipped++
			return nil
		}
		a.RestoreCompletion(gm, id)
		st.Completions++
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("restore completions: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT arena_id, prop, value FROM arena_edits ORDER BY rowid`)
	if err != nil {
		return st, err
	}
	err = eachRow(rows, func() error {
		var arenaID, prop, value string
		if err := rows.Scan(&arenaID, &prop, &value); err != nil {
			return err
		}
		p, ok := arena.ParseProperty(prop)
		if !ok {
			st.Skipped++
			return nil
		}
		if err := dir.RestoreEdit(arenaID, p, value); err != nil {
			s.printf("WARN: indexdb: restore edit %s %s: %v", arenaID, prop, err)
			st.Skipped++
			return nil
		}
		st.Edits++
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("restore edits: %w", err)
	}

	groups, err := s.groups(ctx)
	if err != nil {
		return st, err
	}
	for _, g := range groups {
		members := make([]string, 0, len(g.arenas))
		for _, arenaID := range g.arenas {
			if _, ok := dir.Arena(arenaID); ok {
				members = append(members, arenaID)
			} else {
				st.Skipped++
			}
		}
		if _, err := dir.AddGroup(g.id, g.name, members); err != nil {
			s.printf("WARN: indexdb: restore group %s: %v", g.name, err)
			continue
		}
		st.Groups++
	}
	return st, nil
}

// eachRow calls fn for every row and reports iteration errors that end the
// result set early.
func eachRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return rows.Close()
}

type storedGroup struct {
	id     uuid.UUID
	name   string
	arenas []string
}

func (s *SQLiteStore) groups(ctx context.Context) ([]storedGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT g.id, g.name, ga.arena_id FROM groups g
		LEFT JOIN group_arenas ga ON ga.group_id = g.id
		ORDER BY g.name, g.id, ga.pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedGroup
	for rows.Next() {
		var (
			id, name string
			arenaID  *string
		)
		if err := rows.Scan(&id, &name, &arenaID); err != nil {
			return nil, err
		}
		gid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", id, err)
		}
		if len(out) == 0 || out[len(out)-1].id != gid {
			out = append(out, storedGroup{id: gid, name: name})
		}
		if arenaID != nil {
			last := &out[len(out)-1]
			last.arenas = append(last.arenas, *arenaID)
		}
	}
	return out, rows.Err()
}

// Counts reports row totals per table.
func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, table := range []string{"records", "completions", "groups", "group_arenas", "arena_edits"} {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		out[table] = n
	}
	return out, nil
}
