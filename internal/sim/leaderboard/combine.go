package leaderboard

import (
	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

// CombineDeaths sums each player's deaths records over every live arena of g.
// Players missing a record on any live arena are left out.
func CombineDeaths(lookup arena.Lookup, g *arena.Group, mode arena.GameMode) []records.Record[records.Deaths] {
	return combine(liveArenas(lookup, g), func(a *arena.Arena) []records.Record[records.Deaths] {
		return a.Records(mode).DeathRecords()
	})
}

// CombineTime sums each player's time records over every live arena of g.
func CombineTime(lookup arena.Lookup, g *arena.Group, mode arena.GameMode) []records.Record[records.Millis] {
	return combine(liveArenas(lookup, g), func(a *arena.Arena) []records.Record[records.Millis] {
		return a.Records(mode).TimeRecords()
	})
}

func liveArenas(lookup arena.Lookup, g *arena.Group) []*arena.Arena {
	seen := map[string]bool{}
	var out []*arena.Arena
	for _, id := range g.Arenas() {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := lookup.Arena(id); ok {
			out = append(out, a)
		}
	}
	return out
}

func combine[V records.Number](arenas []*arena.Arena, board func(*arena.Arena) []records.Record[V]) []records.Record[V] {
	sums := map[uuid.UUID]records.Record[V]{}
	counted := map[uuid.UUID]int{}
	for _, a := range arenas {
		for _, rec := range board(a) {
			if acc, ok := sums[rec.Player]; ok {
				sums[rec.Player] = records.Sum(acc, rec.Value)
			} else {
				sums[rec.Player] = rec
			}
			counted[rec.Player]++
		}
	}
	out := make([]records.Record[V], 0, len(sums))
	for p, rec := range sums {
		if counted[p] < len(arenas) {
			continue
		}
		out = append(out, rec)
	}
	records.SortRecords(out)
	return out
}
