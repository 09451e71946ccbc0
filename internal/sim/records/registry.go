package records

import "github.com/google/uuid"

// Registry holds the time and deaths boards of one arena under one game mode.
type Registry struct {
	time   *Set[Millis]
	deaths *Set[Deaths]
}

func NewRegistry() *Registry {
	return &Registry{
		time:   NewSet[Millis](),
		deaths: NewSet[Deaths](),
	}
}

func (r *Registry) RegisterTimeRecord(player uuid.UUID, elapsed Millis) Result {
	return r.time.Register(player, elapsed)
}

func (r *Registry) RegisterDeathsRecord(player uuid.UUID, deaths Deaths) Result {
	return r.deaths.Register(player, deaths)
}

// TimeRecords returns the time board ordered best first.
func (r *Registry) TimeRecords() []Record[Millis] { return r.time.Sorted() }

// DeathRecords returns the deaths board ordered best first.
func (r *Registry) DeathRecords() []Record[Deaths] { return r.deaths.Sorted() }

func (r *Registry) Time() *Set[Millis] { return r.time }

func (r *Registry) Deaths() *Set[Deaths] { return r.deaths }
