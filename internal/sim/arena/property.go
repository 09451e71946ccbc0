package arena

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownProperty = errors.New("unknown arena property")

// Property identifies an editable arena field.
type Property int

const (
	PropName Property = iota + 1
	PropSpawn
	PropExit
	PropVerticalSpeed
	PropHorizontalSpeed
)

var propertyNames = map[Property]string{
	PropName:            "name",
	PropSpawn:           "spawn",
	PropExit:            "exit",
	PropVerticalSpeed:   "vertical_speed",
	PropHorizontalSpeed: "horizontal_speed",
}

func (p Property) String() string {
	if s, ok := propertyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

func ParseProperty(s string) (Property, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range propertyNames {
		if name == s {
			return p, true
		}
	}
	return 0, false
}

// Accessor reads and writes one property as text.
type Accessor struct {
	Get func(a *Arena) string
	Set func(a *Arena, value string) error
}

func AccessorFor(p Property) (Accessor, bool) {
	switch p {
	case PropName:
		return Accessor{
			Get: func(a *Arena) string { return a.Name },
			Set: func(a *Arena, v string) error {
				v = strings.TrimSpace(v)
				if v == "" {
					return fmt.Errorf("name must not be empty")
				}
				a.Name = v
				return nil
			},
		}, true
	case PropSpawn:
		return Accessor{
			Get: func(a *Arena) string { return a.Spawn.String() },
			Set: func(a *Arena, v string) error {
				loc, err := ParseLocation(v)
				if err != nil {
					return err
				}
				a.Spawn = loc
				return nil
			},
		}, true
	case PropExit:
		return Accessor{
			Get: func(a *Arena) string {
				if a.Exit == nil {
					return ""
				}
				return a.Exit.String()
			},
			Set: func(a *Arena, v string) error {
				if strings.TrimSpace(v) == "" {
					a.Exit = nil
					return nil
				}
				loc, err := ParseLocation(v)
				if err != nil {
					return err
				}
				a.Exit = &loc
				return nil
			},
		}, true
	case PropVerticalSpeed:
		return speedAccessor(func(a *Arena) *float64 { return &a.VerticalSpeed }), true
	case PropHorizontalSpeed:
		return speedAccessor(func(a *Arena) *float64 { return &a.HorizontalSpeed }), true
	default:
		return Accessor{}, false
	}
}

func speedAccessor(field func(a *Arena) *float64) Accessor {
	return Accessor{
		Get: func(a *Arena) string { return strconv.FormatFloat(*field(a), 'f', -1, 64) },
		Set: func(a *Arena, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("speed %v must be in [0,1]", f)
			}
			*field(a) = f
			return nil
		},
	}
}
