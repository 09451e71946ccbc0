package session

import (
	"sort"

	"github.com/google/uuid"
)

// Active maps players to their live session. It is only touched from the game
// loop goroutine, so it carries no lock.
type Active struct {
	sessions map[uuid.UUID]*Session
}

func NewActive() *Active {
	return &Active{sessions: map[uuid.UUID]*Session{}}
}

// Register stores s for player, replacing any previous entry.
func (a *Active) Register(player uuid.UUID, s *Session) { a.sessions[player] = s }

func (a *Active) Get(player uuid.UUID) (*Session, bool) {
	s, ok := a.sessions[player]
	return s, ok
}

// Remove reports whether player had an entry.
func (a *Active) Remove(player uuid.UUID) bool {
	if _, ok := a.sessions[player]; !ok {
		return false
	}
	delete(a.sessions, player)
	return true
}

func (a *Active) Len() int { return len(a.sessions) }

// Sessions returns the live sessions ordered by player id.
func (a *Active) Sessions() []*Session {
	out := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player.String() < out[j].Player.String() })
	return out
}

// RemoveAllForArena quits every session in arenaID (non-immediate) and
// returns how many were ended.
func (a *Active) RemoveAllForArena(arenaID string) int {
	n := 0
	for _, s := range a.Sessions() {
		if s.Arena.ID != arenaID {
			continue
		}
		s.TriggerQuit(false)
		delete(a.sessions, s.Player)
		n++
	}
	return n
}
