package records

import (
	"cmp"
	"sort"

	"github.com/google/uuid"
)

type slot[V cmp.Ordered] struct {
	rec Record[V]
	seq uint64
}

// Set holds at most one record per player for a single record kind.
type Set[V cmp.Ordered] struct {
	slots   map[uuid.UUID]slot[V]
	nextSeq uint64
}

func NewSet[V cmp.Ordered]() *Set[V] {
	return &Set[V]{slots: map[uuid.UUID]slot[V]{}}
}

func (s *Set[V]) Len() int { return len(s.slots) }

func (s *Set[V]) Get(player uuid.UUID) (Record[V], bool) {
	sl, ok := s.slots[player]
	return sl.rec, ok
}

// Best returns the lowest stored value. Ties go to the record stored first.
func (s *Set[V]) Best() (Record[V], bool) {
	var (
		best  slot[V]
		found bool
	)
	for _, sl := range s.slots {
		if !found || less(sl, best) {
			best = sl
			found = true
		}
	}
	return best.rec, found
}

// Register classifies v against the current board and replaces the player's
// slot unless the result is ResultNone.
func (s *Set[V]) Register(player uuid.UUID, v V) Result {
	best, has := s.Best()
	if !has || v < best.Value {
		s.put(Record[V]{Player: player, Value: v})
		return ResultWorldRecord
	}
	own, ok := s.Get(player)
	if !ok || v < own.Value {
		s.put(Record[V]{Player: player, Value: v})
		return ResultPersonalBest
	}
	return ResultNone
}

// Restore stores rec as-is. Used when rebuilding a board from storage.
func (s *Set[V]) Restore(rec Record[V]) { s.put(rec) }

func (s *Set[V]) put(rec Record[V]) {
	s.nextSeq++
	s.slots[rec.Player] = slot[V]{rec: rec, seq: s.nextSeq}
}

// Sorted returns all records ordered best first.
func (s *Set[V]) Sorted() []Record[V] {
	slots := make([]slot[V], 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	sort.Slice(slots, func(i, j int) bool { return less(slots[i], slots[j]) })
	out := make([]Record[V], len(slots))
	for i, sl := range slots {
		out[i] = sl.rec
	}
	return out
}

// Placing returns the record at 1-based rank n.
func (s *Set[V]) Placing(n int) (Record[V], bool) {
	return PlacingOf(s.Sorted(), n)
}

// PlacingOf returns sorted[n-1] when n is in range.
func PlacingOf[V cmp.Ordered](sorted []Record[V], n int) (Record[V], bool) {
	if n < 1 || n > len(sorted) {
		var zero Record[V]
		return zero, false
	}
	return sorted[n-1], true
}

// SortRecords orders recs best first, breaking ties by player id.
func SortRecords[V cmp.Ordered](recs []Record[V]) {
	sort.Slice(recs, func(i, j int) bool {
		if c := recs[i].Compare(recs[j]); c != 0 {
			return c < 0
		}
		return recs[i].Player.String() < recs[j].Player.String()
	})
}

func less[V cmp.Ordered](a, b slot[V]) bool {
	if c := cmp.Compare(a.rec.Value, b.rec.Value); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}
