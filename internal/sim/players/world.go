package players

import (
	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/session"
)

// Scheduler defers work to the next game tick.
type Scheduler interface {
	Defer(fn func())
}

type Player struct {
	ID       uuid.UUID
	Name     string
	Online   bool
	Mounted  bool
	Location arena.Location

	Presentation    session.Presentation
	VerticalSpeed   float64
	HorizontalSpeed float64
	Messages        []string

	// epoch changes whenever the player moves or reconnects. Deferred
	// teleports compare it before acting.
	epoch uint64
}

// World is an in-memory host world implementing session.World.
type World struct {
	players  map[uuid.UUID]*Player
	sched    Scheduler
	OnNotify func(p *Player, msg string)
}

func NewWorld(sched Scheduler) *World {
	return &World{players: map[uuid.UUID]*Player{}, sched: sched}
}

// Join brings a player online at loc, creating them on first sight.
func (w *World) Join(id uuid.UUID, name string, loc arena.Location) *Player {
	p, ok := w.players[id]
	if !ok {
		p = &Player{
			ID:           id,
			Presentation: session.Presentation{SeeOthers: true, Collidable: true},
		}
		w.players[id] = p
	}
	p.Name = name
	p.Online = true
	p.Location = loc
	p.epoch++
	return p
}

func (w *World) Leave(id uuid.UUID) {
	if p, ok := w.players[id]; ok {
		p.Online = false
		p.epoch++
	}
}

func (w *World) Player(id uuid.UUID) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

func (w *World) Teleport(id uuid.UUID, to arena.Location, forceIfMounted, immediate bool) bool {
	p, ok := w.players[id]
	if !ok || !p.Online {
		return false
	}
	if p.Mounted && !forceIfMounted {
		return false
	}
	if immediate || w.sched == nil {
		w.move(p, to)
		return true
	}
	epoch := p.epoch
	w.sched.Defer(func() {
		cur, ok := w.players[id]
		if !ok || !cur.Online || cur.epoch != epoch {
			return
		}
		w.move(cur, to)
	})
	return true
}

func (w *World) move(p *Player, to arena.Location) {
	p.Mounted = false
	p.Location = to
	p.epoch++
}

func (w *World) SetMovementAssist(id uuid.UUID, vertical, horizontal float64) {
	if p, ok := w.players[id]; ok {
		p.VerticalSpeed = vertical
		p.HorizontalSpeed = horizontal
	}
}

func (w *World) Notify(id uuid.UUID, msg string) {
	p, ok := w.players[id]
	if !ok {
		return
	}
	p.Messages = append(p.Messages, msg)
	if w.OnNotify != nil {
		w.OnNotify(p, msg)
	}
}

func (w *World) Presentation(id uuid.UUID) session.Presentation {
	if p, ok := w.players[id]; ok {
		return p.Presentation
	}
	return session.Presentation{}
}

func (w *World) ApplyPresentation(id uuid.UUID, pr session.Presentation) {
	if p, ok := w.players[id]; ok {
		p.Presentation = pr
	}
}

func (w *World) Location(id uuid.UUID) arena.Location {
	if p, ok := w.players[id]; ok {
		return p.Location
	}
	return arena.Location{}
}
