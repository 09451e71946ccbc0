package leaderboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

// Boards answers reporting queries for single arenas and combined groups.
// Group boards go through a per-kind Cache.
type Boards struct {
	lookup arena.Lookup
	deaths *Cache[records.Deaths]
	time   *Cache[records.Millis]
}

func NewBoards(lookup arena.Lookup, now func() time.Time) *Boards {
	return &Boards{
		lookup: lookup,
		deaths: NewCache[records.Deaths](TTL, now),
		time:   NewCache[records.Millis](TTL, now),
	}
}

func (b *Boards) GroupDeaths(g *arena.Group, mode arena.GameMode) []records.Record[records.Deaths] {
	return b.deaths.GetOrCompute(g.ID, mode, func() []records.Record[records.Deaths] {
		return CombineDeaths(b.lookup, g, mode)
	})
}

func (b *Boards) GroupTime(g *arena.Group, mode arena.GameMode) []records.Record[records.Millis] {
	return b.time.GetOrCompute(g.ID, mode, func() []records.Record[records.Millis] {
		return CombineTime(b.lookup, g, mode)
	})
}

// Invalidate forgets cached boards for a group whose membership changed.
func (b *Boards) Invalidate(groupID uuid.UUID) {
	b.deaths.Invalidate(groupID)
	b.time.Invalidate(groupID)
}

// Line is one ranked row of a board.
type Line struct {
	Placing int       `json:"placing"`
	Player  uuid.UUID `json:"player"`
	Value   int64     `json:"value"`
	Display string    `json:"display"`
}

// ArenaLines returns the ranked board for one arena.
func (b *Boards) ArenaLines(a *arena.Arena, mode arena.GameMode, kind records.Kind) ([]Line, error) {
	reg := a.Records(mode)
	switch kind {
	case records.KindDeaths:
		return deathLines(reg.DeathRecords()), nil
	case records.KindTime:
		return timeLines(reg.TimeRecords()), nil
	default:
		return nil, fmt.Errorf("arena board: unknown kind %v", kind)
	}
}

// GroupLines returns the ranked combined board for a group.
func (b *Boards) GroupLines(g *arena.Group, mode arena.GameMode, kind records.Kind) ([]Line, error) {
	switch kind {
	case records.KindDeaths:
		return deathLines(b.GroupDeaths(g, mode)), nil
	case records.KindTime:
		return timeLines(b.GroupTime(g, mode)), nil
	default:
		return nil, fmt.Errorf("group board: unknown kind %v", kind)
	}
}

// LineAt returns the 1-based placing, or false when out of range.
func LineAt(lines []Line, n int) (Line, bool) {
	if n < 1 || n > len(lines) {
		return Line{}, false
	}
	return lines[n-1], true
}

func deathLines(recs []records.Record[records.Deaths]) []Line {
	out := make([]Line, len(recs))
	for i, r := range recs {
		out[i] = Line{Placing: i + 1, Player: r.Player, Value: int64(r.Value), Display: strconv.Itoa(int(r.Value))}
	}
	return out
}

func timeLines(recs []records.Record[records.Millis]) []Line {
	out := make([]Line, len(recs))
	for i, r := range recs {
		out[i] = Line{Placing: i + 1, Player: r.Player, Value: int64(r.Value), Display: r.Value.String()}
	}
	return out
}
