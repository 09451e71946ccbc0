package session

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
)

var (
	ErrAlreadyPlaying = errors.New("player already has a live session")
	ErrLocked         = errors.New("arena locked until previous group arenas are cleared")
	ErrTeleportFailed = errors.New("could not move player into the arena")
)

type Config struct {
	Directory *arena.Directory
	World     World
	Flags     Flags
	Outcomes  OutcomeSink
	Now       func() time.Time
	Logger    *log.Logger
}

// Manager starts sessions and holds the dependencies they share.
type Manager struct {
	dir      *arena.Directory
	world    World
	flags    Flags
	outcomes OutcomeSink
	now      func() time.Time
	logger   *log.Logger
	active   *Active
}

func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		dir:      cfg.Directory,
		world:    cfg.World,
		flags:    cfg.Flags,
		outcomes: cfg.Outcomes,
		now:      now,
		logger:   cfg.Logger,
		active:   NewActive(),
	}
}

func (m *Manager) Active() *Active { return m.active }

// SetFlags swaps the configuration switches, e.g. after a config reload.
func (m *Manager) SetFlags(f Flags) { m.flags = f }

func (m *Manager) Session(player uuid.UUID) (*Session, bool) { return m.active.Get(player) }

// Start puts player into arenaID under mode.
func (m *Manager) Start(player uuid.UUID, arenaID string, mode arena.GameMode) (*Session, error) {
	if _, ok := m.active.Get(player); ok {
		return nil, fmt.Errorf("start %s: %w", arenaID, ErrAlreadyPlaying)
	}
	a, ok := m.dir.Arena(arenaID)
	if !ok {
		return nil, fmt.Errorf("start %s: %w", arenaID, arena.ErrUnknownArena)
	}
	if m.flags.MustClearSequentially {
		if g, ok := m.dir.GroupContaining(a.ID); ok {
			allowed, err := g.CanAttempt(m.dir, mode, player, a.ID)
			if err != nil {
				return nil, fmt.Errorf("start %s: %w", arenaID, err)
			}
			if !allowed {
				m.world.Notify(player, fmt.Sprintf("You must clear the previous arenas of %s first.", g.Name))
				return nil, fmt.Errorf("start %s: %w", arenaID, ErrLocked)
			}
		}
	}

	entry := CaptureEntryState(m.world, player, a)
	if !m.world.Teleport(player, a.Spawn, true, true) {
		entry.Restore(m.world)
		return nil, fmt.Errorf("start %s: %w", arenaID, ErrTeleportFailed)
	}
	s := &Session{
		Arena:  a,
		Player: player,
		Mode:   mode,
		m:      m,
		start:  m.now(),
		entry:  entry,
		state:  StateActive,
	}
	s.applyMovementAssist()
	m.active.Register(player, s)
	m.world.Notify(player, fmt.Sprintf("Entered %s (%s).", a.Name, mode))
	return s, nil
}

// EndArena quits every live session in arenaID. Used before an arena is
// deleted or reloaded.
func (m *Manager) EndArena(arenaID string) int {
	n := m.active.RemoveAllForArena(arenaID)
	if n > 0 {
		m.printf("ended %d session(s) in arena %s", n, arenaID)
	}
	return n
}

func (m *Manager) writeOutcome(o Outcome) {
	if m.outcomes == nil {
		return
	}
	if err := m.outcomes.WriteOutcome(o); err != nil {
		m.printf("outcome log: %v", err)
	}
}

func (m *Manager) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
