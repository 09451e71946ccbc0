package records

import (
	"cmp"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the slot a player occupies on a board. Two records with the same
// player are the same slot regardless of value.
type Record[V cmp.Ordered] struct {
	Player uuid.UUID `json:"player"`
	Value  V         `json:"value"`
}

func New[V cmp.Ordered](player uuid.UUID, v V) Record[V] {
	return Record[V]{Player: player, Value: v}
}

func (r Record[V]) Compare(o Record[V]) int { return cmp.Compare(r.Value, o.Value) }

// SameSlot reports whether both records belong to the same player.
func (r Record[V]) SameSlot(o Record[V]) bool { return r.Player == o.Player }

// Number is the value constraint for records that can be combined across arenas.
type Number interface {
	~int | ~int32 | ~int64
}

// Sum returns a new record for the same player holding r.Value+addend.
func Sum[V Number](r Record[V], addend V) Record[V] {
	return Record[V]{Player: r.Player, Value: r.Value + addend}
}

// Deaths counts failed attempts within a session.
type Deaths int

// Millis is an elapsed wall-clock time in milliseconds.
type Millis int64

func MillisOf(d time.Duration) Millis { return Millis(d.Milliseconds()) }

func (m Millis) Duration() time.Duration { return time.Duration(m) * time.Millisecond }

func (m Millis) String() string {
	d := m.Duration()
	return fmt.Sprintf("%d:%02d.%03d", int(d.Minutes()), int(d.Seconds())%60, int64(m)%1000)
}

type Kind int

const (
	KindDeaths Kind = iota + 1
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindDeaths:
		return "DEATHS"
	case KindTime:
		return "TIME"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, bool) {
	switch s {
	case "DEATHS", "deaths":
		return KindDeaths, true
	case "TIME", "time":
		return KindTime, true
	default:
		return 0, false
	}
}

// Result classifies a registration attempt.
type Result int

const (
	ResultNone Result = iota
	ResultPersonalBest
	ResultWorldRecord
)

func (r Result) String() string {
	switch r {
	case ResultPersonalBest:
		return "PERSONAL_BEST"
	case ResultWorldRecord:
		return "WORLD_RECORD"
	default:
		return "NONE"
	}
}
