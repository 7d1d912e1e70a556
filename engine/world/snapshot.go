package world

import (
	"maps"
	"slices"
)

// EntitySnapshot is the serialized form of one entity.
type EntitySnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Location string         `json:"location,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Traits   []Trait        `json:"traits,omitempty"`
}

// Snapshot is a deep copy of the whole world.
type Snapshot struct {
	Entities     []EntitySnapshot             `json:"entities"`
	State        map[string]any               `json:"state"`
	Capabilities map[string]map[string]any    `json:"capabilities"`
	Exits        map[string]map[string]string `json:"exits"`
	Blocked      map[string]map[string]string `json:"blocked"`
}

// Snapshot captures the world for saving.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		State:        maps.Clone(w.state),
		Capabilities: map[string]map[string]any{},
		Exits:        map[string]map[string]string{},
		Blocked:      map[string]map[string]string{},
	}
	for _, id := range w.order {
		e := w.entities[id]
		es := EntitySnapshot{
			ID:       e.ID,
			Name:     e.Name,
			Kind:     e.Kind,
			Location: w.location[id],
			Attrs:    maps.Clone(e.Attrs),
		}
		for _, t := range e.Traits {
			es.Traits = append(es.Traits, Trait{
				Type:         t.Type,
				Props:        maps.Clone(t.Props),
				Capabilities: slices.Clone(t.Capabilities),
			})
		}
		s.Entities = append(s.Entities, es)
	}
	for k, v := range w.capabilities {
		s.Capabilities[k] = maps.Clone(v)
	}
	for k, v := range w.exits {
		s.Exits[k] = maps.Clone(v)
	}
	for k, v := range w.blocked {
		s.Blocked[k] = maps.Clone(v)
	}
	return s
}

// Restore replaces the world's contents with a snapshot.
func (w *World) Restore(s Snapshot) {
	*w = *New()
	for _, es := range s.Entities {
		e := &Entity{ID: es.ID, Name: es.Name, Kind: es.Kind, Attrs: maps.Clone(es.Attrs)}
		if e.Attrs == nil {
			e.Attrs = map[string]any{}
		}
		for _, t := range es.Traits {
			props := maps.Clone(t.Props)
			if props == nil {
				props = map[string]any{}
			}
			e.Traits = append(e.Traits, &Trait{Type: t.Type, Props: props, Capabilities: slices.Clone(t.Capabilities)})
		}
		w.entities[e.ID] = e
		w.order = append(w.order, e.ID)
		if es.Location != "" {
			w.location[e.ID] = es.Location
		}
	}
	if s.State != nil {
		w.state = maps.Clone(s.State)
	}
	for k, v := range s.Capabilities {
		w.capabilities[k] = maps.Clone(v)
	}
	for k, v := range s.Exits {
		w.exits[k] = maps.Clone(v)
	}
	for k, v := range s.Blocked {
		w.blocked[k] = maps.Clone(v)
	}
}
