package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/leaderboard"
	"arenaworks.dev/internal/sim/players"
	"arenaworks.dev/internal/sim/records"
	"arenaworks.dev/internal/sim/session"
	"arenaworks.dev/internal/sim/tuning"
)

// event is one line of the gameplay/admin JSONL stream on stdin.
type event struct {
	Op     string `json:"op"`
	Player string `json:"player,omitempty"`
	Name   string `json:"name,omitempty"`
	Arena  string `json:"arena,omitempty"`
	Group  string `json:"group,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Kind   string `json:"kind,omitempty"`
	At     string `json:"at,omitempty"`
	N      int    `json:"n,omitempty"`
	I      int    `json:"i,omitempty"`
	J      int    `json:"j,omitempty"`
	Prop   string `json:"prop,omitempty"`
	Value  string `json:"value,omitempty"`
	Mount  *bool  `json:"mounted,omitempty"`
}

type reply struct {
	Op      string             `json:"op"`
	OK      bool               `json:"ok"`
	Error   string             `json:"error,omitempty"`
	Player  string             `json:"player,omitempty"`
	Message string             `json:"message,omitempty"`
	Session *sessionView       `json:"session,omitempty"`
	Lines   []leaderboard.Line `json:"lines,omitempty"`
	Groups  []groupView        `json:"groups,omitempty"`
	Path    string             `json:"path,omitempty"`
	Ended   int                `json:"ended,omitempty"`
}

type sessionView struct {
	Arena  string `json:"arena"`
	Mode   string `json:"mode"`
	State  string `json:"state"`
	Deaths int    `json:"deaths"`
}

type groupView struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Arenas []string `json:"arenas"`
}

func decodeEvent(b []byte) (event, error) {
	var ev event
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("bad event: %w", err)
	}
	ev.Op = strings.ToLower(strings.TrimSpace(ev.Op))
	if ev.Op == "" {
		return ev, fmt.Errorf("bad event: missing op")
	}
	return ev, nil
}

type replyWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newReplyWriter(w io.Writer) *replyWriter {
	return &replyWriter{enc: json.NewEncoder(w)}
}

func (w *replyWriter) write(r reply) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.enc.Encode(r)
}

// handler applies events to the arena state. It only runs on the loop
// goroutine.
type handler struct {
	dir      *arena.Directory
	world    *players.World
	mgr      *session.Manager
	boards   *leaderboard.Boards
	logger   *log.Logger
	snapshot func() (string, error)
}

var (
	errNoSession = errors.New("player has no live session")
	errNoPlayer  = errors.New("missing player")
)

func (h *handler) handle(ev event) reply {
	r, err := h.dispatch(ev)
	r.Op = ev.Op
	if err != nil {
		r.OK = false
		r.Error = err.Error()
		return r
	}
	r.OK = true
	return r
}

func (h *handler) dispatch(ev event) (reply, error) {
	switch ev.Op {
	case "join":
		id, err := playerID(ev)
		if err != nil {
			return reply{}, err
		}
		loc, err := optionalLocation(ev.At)
		if err != nil {
			return reply{}, err
		}
		name := ev.Name
		if name == "" {
			name = id.String()
		}
		p := h.world.Join(id, name, loc)
		if ev.Mount != nil {
			p.Mounted = *ev.Mount
		}
		return reply{Player: id.String()}, nil

	case "leave":
		id, err := playerID(ev)
		if err != nil {
			return reply{}, err
		}
		// Disconnecting ends the attempt.
		if s, ok := h.mgr.Session(id); ok {
			s.TriggerQuit(true)
		}
		h.world.Leave(id)
		return reply{Player: id.String()}, nil

	case "start":
		id, err := playerID(ev)
		if err != nil {
			return reply{}, err
		}
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		mode, err := parseMode(ev.Mode)
		if err != nil {
			return reply{}, err
		}
		s, err := h.mgr.Start(id, a.ID, mode)
		if err != nil {
			return reply{Player: id.String()}, err
		}
		return reply{Player: id.String(), Session: viewSession(s)}, nil

	case "loss", "win", "quit":
		id, err := playerID(ev)
		if err != nil {
			return reply{}, err
		}
		s, ok := h.mgr.Session(id)
		if !ok {
			return reply{Player: id.String()}, errNoSession
		}
		switch ev.Op {
		case "loss":
			s.TriggerLoss()
		case "win":
			s.TriggerWin()
			h.invalidateFor(s.Arena.ID)
		case "quit":
			s.TriggerQuit(false)
		}
		return reply{Player: id.String(), Session: viewSession(s)}, nil

	case "top", "placing":
		lines, err := h.lines(ev)
		if err != nil {
			return reply{}, err
		}
		if ev.Op == "placing" {
			line, ok := leaderboard.LineAt(lines, ev.N)
			if !ok {
				return reply{Message: fmt.Sprintf("no record at placing %d", ev.N)}, nil
			}
			return reply{Lines: []leaderboard.Line{line}}, nil
		}
		if ev.N > 0 && ev.N < len(lines) {
			lines = lines[:ev.N]
		}
		return reply{Lines: lines}, nil

	case "groups":
		return reply{Groups: h.groupViews()}, nil

	case "group_create":
		if _, err := h.dir.CreateGroup(ev.Group); err != nil {
			return reply{}, err
		}
		return reply{Groups: h.groupViews()}, nil

	case "group_add":
		g, err := h.group(ev.Group)
		if err != nil {
			return reply{}, err
		}
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		if err := h.dir.AddToGroup(g.ID, a.ID); err != nil {
			return reply{}, err
		}
		h.boards.Invalidate(g.ID)
		return reply{Groups: h.groupViews()}, nil

	case "group_swap":
		g, err := h.group(ev.Group)
		if err != nil {
			return reply{}, err
		}
		if err := h.dir.SwapInGroup(g.ID, ev.I, ev.J); err != nil {
			return reply{}, err
		}
		return reply{Groups: h.groupViews()}, nil

	case "group_remove":
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		g, ok := h.dir.GroupContaining(a.ID)
		if !ok {
			return reply{}, fmt.Errorf("arena %s: %w", a.ID, arena.ErrNotMember)
		}
		h.dir.RemoveFromGroup(a.ID)
		h.boards.Invalidate(g.ID)
		return reply{Groups: h.groupViews()}, nil

	case "group_delete":
		g, err := h.group(ev.Group)
		if err != nil {
			return reply{}, err
		}
		h.dir.DeleteGroup(g.ID)
		h.boards.Invalidate(g.ID)
		return reply{Groups: h.groupViews()}, nil

	case "arena_edit":
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		prop, ok := arena.ParseProperty(ev.Prop)
		if !ok {
			return reply{}, fmt.Errorf("property %q: %w", ev.Prop, arena.ErrUnknownProperty)
		}
		if err := h.dir.Edit(a.ID, prop, ev.Value); err != nil {
			return reply{}, err
		}
		return reply{}, nil

	case "arena_reset":
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		if !h.dir.ResetEdits(a.ID) {
			return reply{Message: "no edits recorded for " + a.Name}, nil
		}
		return reply{Message: "edits for " + a.Name + " dropped; the configured values return on the next reload"}, nil

	case "arena_delete":
		a, err := h.arena(ev.Arena)
		if err != nil {
			return reply{}, err
		}
		g, grouped := h.dir.GroupContaining(a.ID)
		ended := h.mgr.EndArena(a.ID)
		h.dir.Remove(a.ID)
		if grouped {
			h.boards.Invalidate(g.ID)
		}
		return reply{Ended: ended}, nil

	case "snapshot":
		if h.snapshot == nil {
			return reply{}, fmt.Errorf("snapshots disabled")
		}
		path, err := h.snapshot()
		if err != nil {
			return reply{}, err
		}
		return reply{Path: path}, nil
	}
	return reply{}, fmt.Errorf("unknown op %q", ev.Op)
}

// reload applies a freshly loaded config.
func (h *handler) reload(next tuning.Tuning) {
	ch, err := next.Reload(h.dir, h.mgr.EndArena)
	h.mgr.SetFlags(next.Flags())
	for _, g := range h.dir.Groups() {
		h.boards.Invalidate(g.ID)
	}
	if err != nil {
		h.printf("WARN: config reload: %v", err)
	}
	if !ch.Empty() {
		h.printf("config reload: added=%v changed=%v removed=%v ended=%d", ch.Added, ch.Changed, ch.Removed, ch.Ended)
	}
}

func (h *handler) lines(ev event) ([]leaderboard.Line, error) {
	mode, err := parseMode(ev.Mode)
	if err != nil {
		return nil, err
	}
	kind := records.KindTime
	if ev.Kind != "" {
		k, ok := records.ParseKind(strings.ToLower(ev.Kind))
		if !ok {
			return nil, fmt.Errorf("unknown board kind %q", ev.Kind)
		}
		kind = k
	}
	if ev.Group != "" {
		g, err := h.group(ev.Group)
		if err != nil {
			return nil, err
		}
		return h.boards.GroupLines(g, mode, kind)
	}
	a, err := h.arena(ev.Arena)
	if err != nil {
		return nil, err
	}
	return h.boards.ArenaLines(a, mode, kind)
}

// invalidateFor drops the cached combined boards of the group holding arenaID.
func (h *handler) invalidateFor(arenaID string) {
	if g, ok := h.dir.GroupContaining(arenaID); ok {
		h.boards.Invalidate(g.ID)
	}
}

func (h *handler) arena(ref string) (*arena.Arena, error) {
	if a, ok := h.dir.Arena(ref); ok {
		return a, nil
	}
	if a, ok := h.dir.ArenaByName(ref); ok {
		return a, nil
	}
	return nil, fmt.Errorf("arena %q: %w", ref, arena.ErrUnknownArena)
}

func (h *handler) group(ref string) (*arena.Group, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if g, ok := h.dir.Group(id); ok {
			return g, nil
		}
	}
	if g, ok := h.dir.GroupByName(ref); ok {
		return g, nil
	}
	return nil, fmt.Errorf("group %q: %w", ref, arena.ErrUnknownGroup)
}

func (h *handler) groupViews() []groupView {
	groups := h.dir.Groups()
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupView{ID: g.ID.String(), Name: g.Name, Arenas: g.Arenas()})
	}
	return out
}

func (h *handler) printf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func viewSession(s *session.Session) *sessionView {
	return &sessionView{
		Arena:  s.Arena.ID,
		Mode:   string(s.Mode),
		State:  s.State().String(),
		Deaths: int(s.Deaths()),
	}
}

// playerID accepts a uuid, or derives a stable one from the player name.
func playerID(ev event) (uuid.UUID, error) {
	if id, err := uuid.Parse(ev.Player); err == nil {
		return id, nil
	}
	name := strings.ToLower(strings.TrimSpace(ev.Player))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(ev.Name))
	}
	if name == "" {
		return uuid.Nil, errNoPlayer
	}
	return uuid.NewMD5(uuid.NameSpaceURL, []byte("player:"+name)), nil
}

func parseMode(s string) (arena.GameMode, error) {
	m, ok := arena.ParseGameMode(s)
	if !ok {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

func optionalLocation(s string) (arena.Location, error) {
	if strings.TrimSpace(s) == "" {
		return arena.Location{World: "lobby"}, nil
	}
	return arena.ParseLocation(s)
}
