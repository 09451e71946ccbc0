package arena

import (
	"fmt"
	"strconv"
	"strings"
)

// GameMode is a rule variant under which sessions and records are tracked
// independently.
type GameMode string

const (
	ModeDefault     GameMode = "DEFAULT"
	ModeInverted    GameMode = "INVERTED"
	ModeLeastDeaths GameMode = "LEAST_DEATHS"
	ModeLeastTime   GameMode = "LEAST_TIME"
)

var AllModes = []GameMode{ModeDefault, ModeInverted, ModeLeastDeaths, ModeLeastTime}

func ParseGameMode(s string) (GameMode, bool) {
	m := GameMode(strings.ToUpper(strings.TrimSpace(s)))
	if m == "" {
		return ModeDefault, true
	}
	for _, known := range AllModes {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Kind selects the movement rules applied while a player is inside the arena.
type Kind string

const (
	KindDropper Kind = "DROPPER"
	KindParkour Kind = "PARKOUR"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindDropper, KindParkour:
		return k, true
	case "":
		return KindDropper, true
	default:
		return "", false
	}
}

type Location struct {
	World string  `yaml:"world" json:"world"`
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Yaw   float32 `yaml:"yaw,omitempty" json:"yaw,omitempty"`
	Pitch float32 `yaml:"pitch,omitempty" json:"pitch,omitempty"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s,%s,%s,%s,%s,%s", l.World,
		strconv.FormatFloat(l.X, 'f', -1, 64),
		strconv.FormatFloat(l.Y, 'f', -1, 64),
		strconv.FormatFloat(l.Z, 'f', -1, 64),
		strconv.FormatFloat(float64(l.Yaw), 'f', -1, 32),
		strconv.FormatFloat(float64(l.Pitch), 'f', -1, 32))
}

// ParseLocation reads "world,x,y,z" with optional ",yaw,pitch".
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 && len(parts) != 6 {
		return Location{}, fmt.Errorf("location %q: want world,x,y,z[,yaw,pitch]", s)
	}
	loc := Location{World: strings.TrimSpace(parts[0])}
	if loc.World == "" {
		return Location{}, fmt.Errorf("location %q: empty world", s)
	}
	coords := []*float64{&loc.X, &loc.Y, &loc.Z}
	for i, dst := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return Location{}, fmt.Errorf("location %q: %w", s, err)
		}
		*dst = v
	}
	if len(parts) == 6 {
		yaw, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 32)
		if err != nil {
			return Location{}, fmt.Errorf("location %q: %w", s, err)
		}
		pitch, err := strconv.ParseFloat(strings.TrimSpace(parts[5]), 32)
		if err != nil {
			return Location{}, fmt.Errorf("location %q: %w", s, err)
		}
		loc.Yaw, loc.Pitch = float32(yaw), float32(pitch)
	}
	return loc, nil
}
