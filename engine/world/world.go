// Package world holds the mutable entity graph: entities with traits,
// spatial containment, a key/value world state, capability records and
// room exits. It exposes query and mutation primitives only.
package world

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nathoo/fablecore/types"
)

var (
	// ErrEntityNotFound is returned when an entity ID is unknown.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidMove is returned when a move would put an entity inside itself.
	ErrInvalidMove = errors.New("invalid move")
	// ErrNotARoom is returned when an exit operation targets a non-room entity.
	ErrNotARoom = errors.New("not a room")
	// ErrDuplicateEntity is returned when an entity ID is added twice.
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// RoomTrait is the trait type that marks an entity as a room.
const RoomTrait = "room"

// Model is the world contract consumed by guards, effects, machines and
// actions.
type Model interface {
	HasEntity(id string) bool
	GetEntity(id string) (*Entity, bool)
	MoveEntity(id, destination string) error // empty destination detaches
	RemoveEntity(id string) error
	GetLocation(id string) string
	Contents(id string) []string
	UpdateEntity(id string, updates map[string]any) error

	GetStateValue(key string) (any, bool)
	SetStateValue(key string, value any)

	GetCapability(name string) (map[string]any, bool)
	UpdateCapability(name string, partial map[string]any)

	Exits(roomID string) map[string]string
	SetExit(roomID, direction, destination string) error
	RemoveExit(roomID, direction string) error
	BlockExit(roomID, direction, reason string) error
	UnblockExit(roomID, direction string) error
	BlockedExit(roomID, direction string) (string, bool)
}

// World is the in-memory Model implementation.
type World struct {
	entities     map[string]*Entity
	order        []string
	location     map[string]string
	state        map[string]any
	capabilities map[string]map[string]any
	exits        map[string]map[string]string
	blocked      map[string]map[string]string
}

var _ Model = (*World)(nil)

// New creates an empty world.
func New() *World {
	return &World{
		entities:     map[string]*Entity{},
		location:     map[string]string{},
		state:        map[string]any{},
		capabilities: map[string]map[string]any{},
		exits:        map[string]map[string]string{},
		blocked:      map[string]map[string]string{},
	}
}

// AddEntity inserts an entity at the given location ("" for nowhere).
func (w *World) AddEntity(e *Entity, location string) error {
	if _, ok := w.entities[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, e.ID)
	}
	if e.Attrs == nil {
		e.Attrs = map[string]any{}
	}
	w.entities[e.ID] = e
	w.order = append(w.order, e.ID)
	if location != "" {
		w.location[e.ID] = location
	}
	return nil
}

// HasEntity reports whether id names a live entity.
func (w *World) HasEntity(id string) bool {
	_, ok := w.entities[id]
	return ok
}

// GetEntity returns the entity with the given ID.
func (w *World) GetEntity(id string) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// EntityIDs returns every entity ID in insertion order.
func (w *World) EntityIDs() []string {
	return slices.Clone(w.order)
}

// MoveEntity places id inside destination. An empty destination detaches
// the entity from the graph without removing it.
func (w *World) MoveEntity(id, destination string) error {
	if !w.HasEntity(id) {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if destination == "" {
		delete(w.location, id)
		return nil
	}
	if !w.HasEntity(destination) {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, destination)
	}
	for at := destination; at != ""; at = w.location[at] {
		if at == id {
			return fmt.Errorf("%w: %s into %s", ErrInvalidMove, id, destination)
		}
	}
	w.location[id] = destination
	return nil
}

// RemoveEntity deletes an entity. Its contents are left detached.
func (w *World) RemoveEntity(id string) error {
	if !w.HasEntity(id) {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	for child, loc := range w.location {
		if loc == id {
			delete(w.location, child)
		}
	}
	delete(w.entities, id)
	delete(w.location, id)
	delete(w.exits, id)
	delete(w.blocked, id)
	w.order = slices.DeleteFunc(w.order, func(s string) bool { return s == id })
	return nil
}

// GetLocation returns the direct container of id, or "".
func (w *World) GetLocation(id string) string {
	return w.location[id]
}

// Contents returns the entities directly inside id, in insertion order.
func (w *World) Contents(id string) []string {
	var out []string
	for _, eid := range w.order {
		if w.location[eid] == id {
			out = append(out, eid)
		}
	}
	return out
}

// UpdateEntity writes attribute values onto an entity. The "name" key
// also renames it. A "trait.prop" key writes a property of a trait the
// entity carries.
func (w *World) UpdateEntity(id string, updates map[string]any) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	for k, v := range updates {
		if traitType, prop, ok := strings.Cut(k, "."); ok {
			if t := e.Get(traitType); t != nil {
				t.SetProp(prop, v)
				continue
			}
		}
		if k == "name" {
			if s, ok := v.(string); ok {
				e.Name = s
			}
		}
		e.Attrs[k] = v
	}
	return nil
}

// GetStateValue returns a world state value.
func (w *World) GetStateValue(key string) (any, bool) {
	v, ok := w.state[key]
	return v, ok
}

// SetStateValue writes a world state value.
func (w *World) SetStateValue(key string, value any) {
	w.state[key] = value
}

// GetCapability returns a copy of a capability record.
func (w *World) GetCapability(name string) (map[string]any, bool) {
	c, ok := w.capabilities[name]
	if !ok {
		return nil, false
	}
	return maps.Clone(c), true
}

// UpdateCapability merges partial into the named capability, creating it
// when absent.
func (w *World) UpdateCapability(name string, partial map[string]any) {
	c, ok := w.capabilities[name]
	if !ok {
		c = map[string]any{}
		w.capabilities[name] = c
	}
	maps.Copy(c, partial)
}

// Exits returns a copy of a room's exits.
func (w *World) Exits(roomID string) map[string]string {
	return maps.Clone(w.exits[roomID])
}

// SetExit adds or replaces a room exit.
func (w *World) SetExit(roomID, direction, destination string) error {
	if err := w.requireRoom(roomID); err != nil {
		return err
	}
	if w.exits[roomID] == nil {
		w.exits[roomID] = map[string]string{}
	}
	w.exits[roomID][direction] = destination
	return nil
}

// RemoveExit deletes a room exit.
func (w *World) RemoveExit(roomID, direction string) error {
	if err := w.requireRoom(roomID); err != nil {
		return err
	}
	delete(w.exits[roomID], direction)
	return nil
}

// BlockExit marks a room exit impassable with a reason message ID.
func (w *World) BlockExit(roomID, direction, reason string) error {
	if err := w.requireRoom(roomID); err != nil {
		return err
	}
	if w.blocked[roomID] == nil {
		w.blocked[roomID] = map[string]string{}
	}
	w.blocked[roomID][direction] = reason
	return nil
}

// UnblockExit clears a block on a room exit.
func (w *World) UnblockExit(roomID, direction string) error {
	if err := w.requireRoom(roomID); err != nil {
		return err
	}
	delete(w.blocked[roomID], direction)
	return nil
}

// BlockedExit returns the block reason for an exit, if blocked.
func (w *World) BlockedExit(roomID, direction string) (string, bool) {
	r, ok := w.blocked[roomID][direction]
	return r, ok
}

func (w *World) requireRoom(roomID string) error {
	e, ok := w.entities[roomID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, roomID)
	}
	if !e.Has(RoomTrait) {
		return fmt.Errorf("%w: %s", ErrNotARoom, roomID)
	}
	return nil
}

// IsRoom reports whether id is an entity carrying the room trait.
func IsRoom(m Model, id string) bool {
	e, ok := m.GetEntity(id)
	return ok && e.Has(RoomTrait)
}

// RoomOf walks up the containment chain from id to the first room.
func RoomOf(m Model, id string) string {
	seen := map[string]bool{}
	for at := m.GetLocation(id); at != "" && !seen[at]; at = m.GetLocation(at) {
		if IsRoom(m, at) {
			return at
		}
		seen[at] = true
	}
	return ""
}

// IsWithin reports whether id is inside ancestor, directly or nested.
func IsWithin(m Model, id, ancestor string) bool {
	seen := map[string]bool{}
	for at := m.GetLocation(id); at != "" && !seen[at]; at = m.GetLocation(at) {
		if at == ancestor {
			return true
		}
		seen[at] = true
	}
	return false
}

// FromDefs builds a world from loaded content.
func FromDefs(defs *Defs) (*World, error) {
	w := New()

	for _, id := range sortedKeys(defs.Rooms) {
		r := defs.Rooms[id]
		e := &Entity{
			ID:    r.ID,
			Name:  r.Name,
			Kind:  "room",
			Attrs: map[string]any{"description": r.Description},
		}
		e.Traits = append(e.Traits, &Trait{Type: RoomTrait, Props: map[string]any{}})
		for _, td := range r.Traits {
			e.Traits = append(e.Traits, traitFromDef(td))
		}
		if err := w.AddEntity(e, ""); err != nil {
			return nil, err
		}
		if len(r.Exits) > 0 {
			w.exits[r.ID] = maps.Clone(r.Exits)
		}
	}

	playerID := defs.PlayerID()
	if _, ok := defs.Entities[playerID]; !ok {
		p := &Entity{ID: playerID, Name: "yourself", Kind: "actor"}
		p.Traits = []*Trait{{Type: "actor", Props: map[string]any{"player": true}}}
		if err := w.AddEntity(p, defs.Game.Start); err != nil {
			return nil, err
		}
	}

	// Entities may be located inside other entities, so insert all first
	// and place them afterwards.
	ids := sortedKeys(defs.Entities)
	for _, id := range ids {
		d := defs.Entities[id]
		e := &Entity{ID: d.ID, Name: d.Name, Kind: d.Kind, Attrs: maps.Clone(d.Attrs)}
		for _, td := range d.Traits {
			e.Traits = append(e.Traits, traitFromDef(td))
		}
		if err := w.AddEntity(e, ""); err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		loc := defs.Entities[id].Location
		if id == playerID && loc == "" {
			loc = defs.Game.Start
		}
		if loc == "" {
			continue
		}
		if err := w.MoveEntity(id, loc); err != nil {
			return nil, fmt.Errorf("placing %s: %w", id, err)
		}
	}

	for name, c := range defs.Capabilities {
		w.UpdateCapability(name, c)
	}
	return w, nil
}

func traitFromDef(td types.TraitDef) *Trait {
	props := maps.Clone(td.Props)
	if props == nil {
		props = map[string]any{}
	}
	return &Trait{Type: td.Type, Props: props, Capabilities: slices.Clone(td.Capabilities)}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
