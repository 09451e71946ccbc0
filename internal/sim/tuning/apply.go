package tuning

import (
	"errors"
	"fmt"

	"arenaworks.dev/internal/sim/arena"
)

// Changes summarises what a Reload did to the directory.
type Changes struct {
	Added   []string
	Changed []string
	Removed []string
	Ended   int
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Apply loads the configured arenas and groups into an empty directory.
func (t Tuning) Apply(dir *arena.Directory) error {
	if err := t.ApplyArenas(dir); err != nil {
		return err
	}
	return t.ApplyGroups(dir)
}

func (t Tuning) ApplyArenas(dir *arena.Directory) error {
	for _, spec := range t.Arenas {
		a, err := spec.Build()
		if err != nil {
			return err
		}
		if err := dir.Add(a); err != nil {
			return err
		}
	}
	return nil
}

// ApplyGroups creates configured groups that the directory does not know yet,
// by id or by name. Groups already restored from storage keep their stored
// membership and order.
func (t Tuning) ApplyGroups(dir *arena.Directory) error {
	for _, gs := range t.Groups {
		id := gs.GroupID()
		if _, ok := dir.Group(id); ok {
			continue
		}
		if _, ok := dir.GroupByName(gs.Name); ok {
			continue
		}
		members := make([]string, 0, len(gs.Arenas))
		for _, arenaID := range gs.Arenas {
			if other, ok := dir.GroupContaining(arenaID); ok {
				if l := dir.Logger(); l != nil {
					l.Printf("WARN: group %s: arena %s already in %s; skipping", gs.Name, arenaID, other.Name)
				}
				continue
			}
			members = append(members, arenaID)
		}
		if _, err := dir.AddGroup(id, gs.Name, members); err != nil {
			return fmt.Errorf("group %s: %w", gs.Name, err)
		}
	}
	return nil
}

// Reload brings dir in line with t. Admin edits recorded in dir are laid over
// the configured definitions. Arenas that disappeared or whose definition
// changed have their sessions ended through end before the directory is
// touched. Boards survive a definition change.
func (t Tuning) Reload(dir *arena.Directory, end func(arenaID string) int) (Changes, error) {
	var ch Changes
	want := make(map[string]ArenaSpec, len(t.Arenas))
	for _, spec := range t.Arenas {
		want[spec.ID] = spec
	}

	for _, a := range dir.Arenas() {
		if _, ok := want[a.ID]; ok {
			continue
		}
		if end != nil {
			ch.Ended += end(a.ID)
		}
		dir.Remove(a.ID)
		ch.Removed = append(ch.Removed, a.ID)
	}

	var errs []error
	for _, spec := range t.Arenas {
		next, err := spec.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cur, ok := dir.Arena(spec.ID)
		if !ok {
			if err := dir.Add(next); err != nil {
				errs = append(errs, err)
				continue
			}
			ch.Added = append(ch.Added, spec.ID)
			continue
		}
		if err := dir.ApplyEdits(next); err != nil {
			errs = append(errs, err)
		}
		if sameDefinition(cur, next) {
			continue
		}
		if end != nil {
			ch.Ended += end(spec.ID)
		}
		if err := dir.Replace(next); err != nil {
			errs = append(errs, err)
			continue
		}
		ch.Changed = append(ch.Changed, spec.ID)
	}

	if err := t.ApplyGroups(dir); err != nil {
		errs = append(errs, err)
	}
	return ch, errors.Join(errs...)
}

func sameDefinition(a, b *arena.Arena) bool {
	if a.Name != b.Name || a.Kind != b.Kind || a.Spawn != b.Spawn {
		return false
	}
	if a.VerticalSpeed != b.VerticalSpeed || a.HorizontalSpeed != b.HorizontalSpeed {
		return false
	}
	switch {
	case a.Exit == nil && b.Exit == nil:
		return true
	case a.Exit == nil || b.Exit == nil:
		return false
	default:
		return *a.Exit == *b.Exit
	}
}
