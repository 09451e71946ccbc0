package arena

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

var (
	ErrNotMember       = errors.New("arena is not a member of the group")
	ErrIndexOutOfRange = errors.New("group index out of range")
)

// Lookup resolves arena ids to live arenas.
type Lookup interface {
	Arena(id string) (*Arena, bool)
}

// Group is an ordered sequence of arena ids. Membership is a plain list; the
// Directory decides which arenas may join.
type Group struct {
	ID     uuid.UUID
	Name   string
	arenas []string
	logger *log.Logger
}

func NewGroup(id uuid.UUID, name string, logger *log.Logger) *Group {
	return &Group{ID: id, Name: name, logger: logger}
}

// Arenas returns a copy of the member ids in order.
func (g *Group) Arenas() []string {
	out := make([]string, len(g.arenas))
	copy(out, g.arenas)
	return out
}

func (g *Group) Len() int { return len(g.arenas) }

func (g *Group) Append(arenaID string) { g.arenas = append(g.arenas, arenaID) }

func (g *Group) Swap(i, j int) error {
	if i < 0 || j < 0 || i >= len(g.arenas) || j >= len(g.arenas) {
		return fmt.Errorf("swap %d,%d in group %s of %d: %w", i, j, g.Name, len(g.arenas), ErrIndexOutOfRange)
	}
	g.arenas[i], g.arenas[j] = g.arenas[j], g.arenas[i]
	return nil
}

// Remove drops every occurrence of arenaID and reports whether any was found.
func (g *Group) Remove(arenaID string) bool {
	kept := g.arenas[:0]
	for _, id := range g.arenas {
		if id != arenaID {
			kept = append(kept, id)
		}
	}
	removed := len(kept) != len(g.arenas)
	g.arenas = kept
	return removed
}

func (g *Group) Contains(arenaID string) bool {
	for _, id := range g.arenas {
		if id == arenaID {
			return true
		}
	}
	return false
}

// HasCompletedAll reports whether player cleared every live member under
// mode. Members missing from lookup are skipped.
func (g *Group) HasCompletedAll(lookup Lookup, mode GameMode, player uuid.UUID) bool {
	for _, id := range g.arenas {
		a, ok := lookup.Arena(id)
		if !ok {
			g.printf("WARN group %s references missing arena %s; skipping", g.Name, id)
			continue
		}
		if !a.HasCompleted(mode, player) {
			return false
		}
	}
	return true
}

// CanAttempt reports whether every member before target has been cleared by
// player under mode.
func (g *Group) CanAttempt(lookup Lookup, mode GameMode, player uuid.UUID, target string) (bool, error) {
	if !g.Contains(target) {
		return false, fmt.Errorf("arena %s in group %s: %w", target, g.Name, ErrNotMember)
	}
	for _, id := range g.arenas {
		if id == target {
			return true, nil
		}
		a, ok := lookup.Arena(id)
		if !ok {
			g.printf("WARN group %s references missing arena %s; skipping", g.Name, id)
			continue
		}
		if !a.HasCompleted(mode, player) {
			return false, nil
		}
	}
	return true, nil
}

func (g *Group) printf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
