package tuning

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/session"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	SuppressRecordsUntilGroupCleared bool `yaml:"suppress_records_until_group_cleared"`
	MustClearSequentially            bool `yaml:"must_clear_sequentially"`

	Arenas []ArenaSpec `yaml:"arenas"`
	Groups []GroupSpec `yaml:"groups,omitempty"`
}

type ArenaSpec struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Kind            string          `yaml:"kind"`
	Spawn           arena.Location  `yaml:"spawn"`
	Exit            *arena.Location `yaml:"exit,omitempty"`
	VerticalSpeed   float64         `yaml:"vertical_speed"`
	HorizontalSpeed float64         `yaml:"horizontal_speed"`
}

type GroupSpec struct {
	ID     string   `yaml:"id,omitempty"`
	Name   string   `yaml:"name"`
	Arenas []string `yaml:"arenas"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := ValidateDocument(raw); err != nil {
		return t, fmt.Errorf("arenas.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("arenas.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("arenas.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:                       20,
		SuppressRecordsUntilGroupCleared: false,
		MustClearSequentially:            true,
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	for i := range t.Arenas {
		a := &t.Arenas[i]
		a.ID = strings.TrimSpace(a.ID)
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			a.Name = a.ID
		}
		if strings.TrimSpace(a.Kind) == "" {
			a.Kind = string(arena.KindDropper)
		}
		a.Kind = strings.ToUpper(strings.TrimSpace(a.Kind))
		// unset speeds mean full speed
		if a.VerticalSpeed == 0 {
			a.VerticalSpeed = 1
		}
		if a.HorizontalSpeed == 0 {
			a.HorizontalSpeed = 1
		}
	}
	for i := range t.Groups {
		t.Groups[i].Name = strings.TrimSpace(t.Groups[i].Name)
	}
}

func (t Tuning) Validate() error {
	t.Normalize()
	ids := map[string]bool{}
	names := map[string]bool{}
	for _, a := range t.Arenas {
		if a.ID == "" {
			return fmt.Errorf("arena id must not be empty")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate arena id: %s", a.ID)
		}
		ids[a.ID] = true
		lname := strings.ToLower(a.Name)
		if names[lname] {
			return fmt.Errorf("duplicate arena name: %s", a.Name)
		}
		names[lname] = true
		if _, ok := arena.ParseKind(a.Kind); !ok {
			return fmt.Errorf("arena %s kind %q must be DROPPER or PARKOUR", a.ID, a.Kind)
		}
		if strings.TrimSpace(a.Spawn.World) == "" {
			return fmt.Errorf("arena %s spawn world must not be empty", a.ID)
		}
		if a.VerticalSpeed < 0 || a.VerticalSpeed > 1 || a.HorizontalSpeed < 0 || a.HorizontalSpeed > 1 {
			return fmt.Errorf("arena %s speeds must be in [0,1]", a.ID)
		}
	}
	grouped := map[string]string{}
	groupNames := map[string]bool{}
	for _, g := range t.Groups {
		if g.Name == "" {
			return fmt.Errorf("group name must not be empty")
		}
		if groupNames[strings.ToLower(g.Name)] {
			return fmt.Errorf("duplicate group name: %s", g.Name)
		}
		groupNames[strings.ToLower(g.Name)] = true
		if g.ID != "" {
			if _, err := uuid.Parse(g.ID); err != nil {
				return fmt.Errorf("group %s id: %w", g.Name, err)
			}
		}
		for _, id := range g.Arenas {
			if !ids[id] {
				return fmt.Errorf("group %s arena %q not found in arenas", g.Name, id)
			}
			if other, ok := grouped[id]; ok {
				return fmt.Errorf("arena %s listed in groups %s and %s", id, other, g.Name)
			}
			grouped[id] = g.Name
		}
	}
	return nil
}

func (t Tuning) Flags() session.Flags {
	return session.Flags{
		SuppressRecordsUntilGroupCleared: t.SuppressRecordsUntilGroupCleared,
		MustClearSequentially:            t.MustClearSequentially,
	}
}

func (t Tuning) ArenaSpec(id string) (ArenaSpec, bool) {
	for _, a := range t.Arenas {
		if a.ID == id {
			return a, true
		}
	}
	return ArenaSpec{}, false
}

// Build turns the spec into a fresh arena with empty boards.
func (s ArenaSpec) Build() (*arena.Arena, error) {
	kind, ok := arena.ParseKind(s.Kind)
	if !ok {
		return nil, fmt.Errorf("arena %s: unknown kind %q", s.ID, s.Kind)
	}
	a := arena.New(s.ID, s.Name, kind, s.Spawn)
	if s.Exit != nil {
		exit := *s.Exit
		a.Exit = &exit
	}
	a.VerticalSpeed = s.VerticalSpeed
	a.HorizontalSpeed = s.HorizontalSpeed
	return a, nil
}

// GroupID returns the configured id, or one derived from the name so the
// same group keeps its id across restarts.
func (g GroupSpec) GroupID() uuid.UUID {
	if id, err := uuid.Parse(g.ID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("arena-group:"+strings.ToLower(g.Name)))
}
