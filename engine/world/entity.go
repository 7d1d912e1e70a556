package world

import "slices"

// Trait is typed data attached to an entity. A trait may claim
// capabilities: action IDs it, rather than the standard action, handles.
type Trait struct {
	Type         string         `json:"type"`
	Props        map[string]any `json:"props,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
}

// Prop returns a trait property.
func (t *Trait) Prop(name string) (any, bool) {
	v, ok := t.Props[name]
	return v, ok
}

// SetProp writes a trait property.
func (t *Trait) SetProp(name string, value any) {
	if t.Props == nil {
		t.Props = map[string]any{}
	}
	t.Props[name] = value
}

// Bool returns a boolean property, false when unset or not a bool.
func (t *Trait) Bool(name string) bool {
	b, _ := t.Props[name].(bool)
	return b
}

// String returns a string property, "" when unset or not a string.
func (t *Trait) String(name string) string {
	s, _ := t.Props[name].(string)
	return s
}

// Claims reports whether the trait claims actionID.
func (t *Trait) Claims(actionID string) bool {
	return slices.Contains(t.Capabilities, actionID)
}

// Entity is a node in the world graph.
type Entity struct {
	ID     string
	Name   string
	Kind   string
	Attrs  map[string]any
	Traits []*Trait
}

// Get returns the trait of the given type, or nil.
func (e *Entity) Get(traitType string) *Trait {
	for _, t := range e.Traits {
		if t.Type == traitType {
			return t
		}
	}
	return nil
}

// Has reports whether the entity carries a trait of the given type.
func (e *Entity) Has(traitType string) bool {
	return e.Get(traitType) != nil
}

// Add attaches a trait, replacing any trait of the same type.
func (e *Entity) Add(t *Trait) {
	for i, existing := range e.Traits {
		if existing.Type == t.Type {
			e.Traits[i] = t
			return
		}
	}
	e.Traits = append(e.Traits, t)
}

// Description returns the "description" attribute.
func (e *Entity) Description() string {
	s, _ := e.Attrs["description"].(string)
	return s
}

// DisplayName returns the entity's name, falling back to its ID.
func (e *Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}
