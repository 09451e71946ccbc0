package arena

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownArena   = errors.New("unknown arena")
	ErrUnknownGroup   = errors.New("unknown group")
	ErrDuplicateArena = errors.New("duplicate arena")
	ErrDuplicateGroup = errors.New("duplicate group")
	ErrAlreadyGrouped = errors.New("arena already belongs to a group")
)

// Directory owns every loaded arena and group. It is only touched from the
// game loop goroutine.
type Directory struct {
	arenas map[string]*Arena
	groups map[uuid.UUID]*Group
	// edits holds admin property edits per arena. They are laid over the
	// configured definition whenever the arena is reloaded.
	edits  map[string]map[Property]string
	store  Store
	logger *log.Logger
}

func NewDirectory(logger *log.Logger) *Directory {
	return &Directory{
		arenas: map[string]*Arena{},
		groups: map[uuid.UUID]*Group{},
		edits:  map[string]map[Property]string{},
		logger: logger,
	}
}

// SetStore attaches s to the directory and every arena in it.
func (d *Directory) SetStore(s Store) {
	d.store = s
	for _, a := range d.arenas {
		a.SetStore(s)
	}
}

func (d *Directory) Logger() *log.Logger { return d.logger }

func (d *Directory) Add(a *Arena) error {
	if a == nil || strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("add arena: empty id")
	}
	if _, ok := d.arenas[a.ID]; ok {
		return fmt.Errorf("add arena %s: %w", a.ID, ErrDuplicateArena)
	}
	if other, ok := d.ArenaByName(a.Name); ok {
		return fmt.Errorf("add arena %s: name %q used by %s: %w", a.ID, a.Name, other.ID, ErrDuplicateArena)
	}
	a.SetStore(d.store)
	d.arenas[a.ID] = a
	return nil
}

func (d *Directory) Arena(id string) (*Arena, bool) {
	a, ok := d.arenas[id]
	return a, ok
}

// ArenaByName matches names case-insensitively.
func (d *Directory) ArenaByName(name string) (*Arena, bool) {
	name = strings.TrimSpace(name)
	for _, a := range d.arenas {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return nil, false
}

// Arenas returns all arenas sorted by id.
func (d *Directory) Arenas() []*Arena {
	out := make([]*Arena, 0, len(d.arenas))
	for _, a := range d.arenas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove deletes the arena and drops it from its group. Callers are expected
// to have ended any live sessions in it first.
func (d *Directory) Remove(id string) (*Arena, bool) {
	a, ok := d.arenas[id]
	if !ok {
		return nil, false
	}
	delete(d.arenas, id)
	delete(d.edits, id)
	if g, ok := d.GroupContaining(id); ok {
		g.Remove(id)
		d.persistGroup(g)
	}
	if d.store != nil {
		d.store.DeleteArena(id)
	}
	return a, true
}

// Replace swaps in a reloaded definition, keeping the boards and completion
// sets of the previous arena with the same id.
func (d *Directory) Replace(a *Arena) error {
	old, ok := d.arenas[a.ID]
	if !ok {
		return d.Add(a)
	}
	if other, ok := d.ArenaByName(a.Name); ok && other.ID != a.ID {
		return fmt.Errorf("replace arena %s: name %q used by %s: %w", a.ID, a.Name, other.ID, ErrDuplicateArena)
	}
	a.registries = old.registries
	a.completed = old.completed
	a.SetStore(d.store)
	d.arenas[a.ID] = a
	return nil
}

func (d *Directory) CreateGroup(name string) (*Group, error) {
	return d.AddGroup(uuid.New(), name, nil)
}

// AddGroup registers a group with the given members. Used by CreateGroup and
// when rebuilding from config or storage.
func (d *Directory) AddGroup(id uuid.UUID, name string, arenaIDs []string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("add group: empty name")
	}
	if _, ok := d.groups[id]; ok {
		return nil, fmt.Errorf("add group %s: %w", id, ErrDuplicateGroup)
	}
	if other, ok := d.GroupByName(name); ok {
		return nil, fmt.Errorf("add group %q: name used by %s: %w", name, other.ID, ErrDuplicateGroup)
	}
	g := NewGroup(id, name, d.logger)
	d.groups[id] = g
	for _, arenaID := range arenaIDs {
		if err := d.addToGroup(g, arenaID); err != nil {
			delete(d.groups, id)
			return nil, err
		}
	}
	d.persistGroup(g)
	return g, nil
}

func (d *Directory) Group(id uuid.UUID) (*Group, bool) {
	g, ok := d.groups[id]
	return g, ok
}

func (d *Directory) GroupByName(name string) (*Group, bool) {
	name = strings.TrimSpace(name)
	for _, g := range d.groups {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return nil, false
}

// Groups returns all groups sorted by name.
func (d *Directory) Groups() []*Group {
	out := make([]*Group, 0, len(d.groups))
	for _, g := range d.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GroupContaining returns the group arenaID belongs to. An arena belongs to
// at most one group.
func (d *Directory) GroupContaining(arenaID string) (*Group, bool) {
	for _, g := range d.groups {
		if g.Contains(arenaID) {
			return g, true
		}
	}
	return nil, false
}

func (d *Directory) AddToGroup(groupID uuid.UUID, arenaID string) error {
	g, ok := d.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrUnknownGroup)
	}
	if err := d.addToGroup(g, arenaID); err != nil {
		return err
	}
	d.persistGroup(g)
	return nil
}

func (d *Directory) addToGroup(g *Group, arenaID string) error {
	if _, ok := d.arenas[arenaID]; !ok {
		return fmt.Errorf("group %s: arena %s: %w", g.Name, arenaID, ErrUnknownArena)
	}
	if other, ok := d.GroupContaining(arenaID); ok {
		return fmt.Errorf("group %s: arena %s in %s: %w", g.Name, arenaID, other.Name, ErrAlreadyGrouped)
	}
	g.Append(arenaID)
	return nil
}

func (d *Directory) SwapInGroup(groupID uuid.UUID, i, j int) error {
	g, ok := d.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, ErrUnknownGroup)
	}
	if err := g.Swap(i, j); err != nil {
		return err
	}
	d.persistGroup(g)
	return nil
}

// RemoveFromGroup detaches arenaID from whatever group holds it.
func (d *Directory) RemoveFromGroup(arenaID string) bool {
	g, ok := d.GroupContaining(arenaID)
	if !ok {
		return false
	}
	g.Remove(arenaID)
	d.persistGroup(g)
	return true
}

func (d *Directory) DeleteGroup(id uuid.UUID) bool {
	if _, ok := d.groups[id]; !ok {
		return false
	}
	delete(d.groups, id)
	if d.store != nil {
		d.store.DeleteGroup(id)
	}
	return true
}

// Edit applies value to prop on the arena and remembers it, so a reload of
// the arena keeps the edit. Name changes keep names unique.
func (d *Directory) Edit(arenaID string, prop Property, value string) error {
	if err := d.edit(arenaID, prop, value); err != nil {
		return err
	}
	if d.store != nil {
		d.store.PutArenaEdit(arenaID, prop, value)
	}
	return nil
}

// RestoreEdit is Edit without writing back to the store.
func (d *Directory) RestoreEdit(arenaID string, prop Property, value string) error {
	return d.edit(arenaID, prop, value)
}

func (d *Directory) edit(arenaID string, prop Property, value string) error {
	a, ok := d.arenas[arenaID]
	if !ok {
		return fmt.Errorf("edit %s: %w", arenaID, ErrUnknownArena)
	}
	acc, ok := AccessorFor(prop)
	if !ok {
		return fmt.Errorf("edit %s: %w", arenaID, ErrUnknownProperty)
	}
	if prop == PropName {
		if other, ok := d.ArenaByName(value); ok && other.ID != arenaID {
			return fmt.Errorf("edit %s: name %q used by %s: %w", arenaID, value, other.ID, ErrDuplicateArena)
		}
	}
	if err := acc.Set(a, value); err != nil {
		return fmt.Errorf("edit %s %s: %w", arenaID, prop, err)
	}
	if d.edits[arenaID] == nil {
		d.edits[arenaID] = map[Property]string{}
	}
	d.edits[arenaID][prop] = value
	return nil
}

// Edits returns a copy of the edits recorded for the arena.
func (d *Directory) Edits(arenaID string) map[Property]string {
	out := make(map[Property]string, len(d.edits[arenaID]))
	for p, v := range d.edits[arenaID] {
		out[p] = v
	}
	return out
}

// ApplyEdits lays the recorded edits for a.ID over a, typically a freshly
// built definition that is about to replace the live arena.
func (d *Directory) ApplyEdits(a *Arena) error {
	var errs []error
	for _, p := range sortedProps(d.edits[a.ID]) {
		acc, _ := AccessorFor(p)
		if err := acc.Set(a, d.edits[a.ID][p]); err != nil {
			errs = append(errs, fmt.Errorf("arena %s %s: %w", a.ID, p, err))
		}
	}
	return errors.Join(errs...)
}

// ResetEdits forgets the edits of an arena. The live arena keeps its current
// values until the next reload.
func (d *Directory) ResetEdits(arenaID string) bool {
	if len(d.edits[arenaID]) == 0 {
		return false
	}
	delete(d.edits, arenaID)
	if d.store != nil {
		d.store.ClearArenaEdits(arenaID)
	}
	return true
}

func sortedProps(m map[Property]string) []Property {
	out := make([]Property, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Directory) persistGroup(g *Group) {
	if d.store != nil {
		d.store.PutGroup(g.ID, g.Name, g.Arenas())
	}
}
