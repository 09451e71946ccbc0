package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

type State int

const (
	StateActive State = iota
	StateWon
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWon:
		return "WON"
	case StateQuit:
		return "QUIT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one player's single attempt at one arena. Losses keep it alive;
// a win or quit ends it for good.
type Session struct {
	Arena  *arena.Arena
	Player uuid.UUID
	Mode   arena.GameMode

	m      *Manager
	deaths records.Deaths
	start  time.Time
	entry  *EntryState
	state  State
}

func (s *Session) Deaths() records.Deaths { return s.deaths }
func (s *Session) StartedAt() time.Time    { return s.start }
func (s *Session) State() State            { return s.state }
func (s *Session) EntryState() *EntryState { return s.entry }

// TriggerLoss counts a death and puts the player back on the spawn point.
func (s *Session) TriggerLoss() {
	if !s.live("loss") {
		return
	}
	s.deaths++
	w := s.m.world
	w.Teleport(s.Player, s.Arena.Spawn, true, true)
	s.applyMovementAssist()
}

// TriggerWin ends the session, registers records unless suppressed, marks the
// arena cleared and sends the player to the exit.
func (s *Session) TriggerWin() {
	if !s.live("win") {
		return
	}
	elapsed := records.MillisOf(s.m.now().Sub(s.start))
	s.terminate(StateWon)

	w := s.m.world
	out := Outcome{
		At:      s.m.now(),
		Player:  s.Player,
		ArenaID: s.Arena.ID,
		Mode:    s.Mode,
		Event:   "win",
		Deaths:  s.deaths,
		Millis:  elapsed,
	}
	if s.recordsSuppressed() {
		out.Suppressed = true
	} else {
		timeRes := s.Arena.RegisterTime(s.Mode, s.Player, elapsed)
		deathsRes := s.Arena.RegisterDeaths(s.Mode, s.Player, s.deaths)
		out.TimeResult, out.DeathsResult = timeRes.String(), deathsRes.String()
		if msg := resultMessage(timeRes, "time", elapsed.String()); msg != "" {
			w.Notify(s.Player, msg)
		}
		if msg := resultMessage(deathsRes, "least deaths", fmt.Sprint(s.deaths)); msg != "" {
			w.Notify(s.Player, msg)
		}
	}
	out.FirstClear = s.Arena.MarkCompleted(s.Mode, s.Player)
	w.Notify(s.Player, fmt.Sprintf("You won %s in %s with %d deaths!", s.Arena.Name, elapsed, s.deaths))
	w.Teleport(s.Player, s.Arena.ExitFor(s.entry.Location()), true, false)
	s.m.writeOutcome(out)
}

// TriggerQuit ends the session without a result. immediate=false lets the
// adapter defer the teleport when the caller is mid-event.
func (s *Session) TriggerQuit(immediate bool) {
	if !s.live("quit") {
		return
	}
	s.terminate(StateQuit)
	w := s.m.world
	w.Teleport(s.Player, s.Arena.ExitFor(s.entry.Location()), true, immediate)
	w.Notify(s.Player, fmt.Sprintf("You left %s.", s.Arena.Name))
	s.m.writeOutcome(Outcome{
		At:      s.m.now(),
		Player:  s.Player,
		ArenaID: s.Arena.ID,
		Mode:    s.Mode,
		Event:   "quit",
		Deaths:  s.deaths,
		Millis:  records.MillisOf(s.m.now().Sub(s.start)),
	})
}

func (s *Session) terminate(final State) {
	s.state = final
	if !s.m.active.Remove(s.Player) {
		s.m.printf("SEVERE session of %s in arena %s was not in the active directory", s.Player, s.Arena.ID)
	}
	s.entry.Restore(s.m.world)
}

func (s *Session) recordsSuppressed() bool {
	if !s.m.flags.SuppressRecordsUntilGroupCleared {
		return false
	}
	g, ok := s.m.dir.GroupContaining(s.Arena.ID)
	if !ok {
		return false
	}
	return !g.HasCompletedAll(s.m.dir, s.Mode, s.Player)
}

func (s *Session) applyMovementAssist() {
	if s.Arena.AssistsMovement() {
		s.m.world.SetMovementAssist(s.Player, s.Arena.VerticalSpeed, s.Arena.HorizontalSpeed)
	}
}

func (s *Session) live(action string) bool {
	if s.state == StateActive {
		return true
	}
	s.m.printf("SEVERE %s on %s session of %s in arena %s ignored", action, s.state, s.Player, s.Arena.ID)
	return false
}

func resultMessage(res records.Result, board, value string) string {
	switch res {
	case records.ResultWorldRecord:
		return fmt.Sprintf("New world record for %s: %s!", board, value)
	case records.ResultPersonalBest:
		return fmt.Sprintf("New personal best for %s: %s!", board, value)
	default:
		return ""
	}
}
