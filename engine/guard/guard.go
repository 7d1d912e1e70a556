// Package guard evaluates guard conditions: pure boolean predicates over
// the world, used to gate transitions, rules and daemons.
package guard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Sigil marks a symbolic entity reference.
const Sigil = "$"

// PlayerRef refers to the player unless a binding overrides it.
const PlayerRef = "$player"

var (
	// ErrUnresolvedBinding is returned when a symbolic reference has no binding.
	ErrUnresolvedBinding = errors.New("unresolved binding")
	// ErrUnknownGuard is returned for a guard kind the evaluator does not know.
	ErrUnknownGuard = errors.New("unknown guard kind")
	// ErrUnknownPredicate is returned when a custom guard names no registered predicate.
	ErrUnknownPredicate = errors.New("unknown custom predicate")
)

// Predicate is a custom guard. It must not mutate the world.
type Predicate func(w world.Model, b types.Bindings, playerID string) (bool, error)

// Evaluator evaluates guards. Custom predicates are registered per evaluator.
type Evaluator struct {
	custom map[string]Predicate
}

// NewEvaluator creates an evaluator with no custom predicates.
func NewEvaluator() *Evaluator {
	return &Evaluator{custom: map[string]Predicate{}}
}

// Register adds a named custom predicate.
func (e *Evaluator) Register(name string, p Predicate) {
	e.custom[name] = p
}

// Has reports whether a custom predicate is registered under name.
func (e *Evaluator) Has(name string) bool {
	_, ok := e.custom[name]
	return ok
}

// ResolveRef resolves a reference through bindings. Plain IDs pass through.
func ResolveRef(ref string, b types.Bindings) (string, error) {
	if !strings.HasPrefix(ref, Sigil) {
		return ref, nil
	}
	id, ok := b[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedBinding, ref)
	}
	return id, nil
}

// ResolveEntity is ResolveRef with $player and the empty string meaning
// the player unless bound.
func ResolveEntity(ref string, b types.Bindings, playerID string) (string, error) {
	if ref == "" {
		return playerID, nil
	}
	if ref == PlayerRef {
		if id, ok := b[ref]; ok {
			return id, nil
		}
		return playerID, nil
	}
	return ResolveRef(ref, b)
}

// Evaluate returns whether g holds. Errors are configuration errors and
// are never converted to false.
func (e *Evaluator) Evaluate(g types.Guard, w world.Model, b types.Bindings, playerID string) (bool, error) {
	switch g.Type {
	case types.GuardEntity:
		id, err := ResolveEntity(g.Entity, b, playerID)
		if err != nil {
			return false, err
		}
		ent, ok := w.GetEntity(id)
		if !ok {
			return false, nil
		}
		var got any
		if g.Trait == "" {
			got = ent.Attrs[g.Property]
		} else {
			t := ent.Get(g.Trait)
			if t == nil {
				return false, nil
			}
			got = t.Props[g.Property]
		}
		return Equal(got, g.Value), nil

	case types.GuardState:
		got, _ := w.GetStateValue(g.Key)
		return Equal(got, g.Value), nil

	case types.GuardLocation:
		actor, err := ResolveEntity(g.Actor, b, playerID)
		if err != nil {
			return false, err
		}
		room, err := ResolveRef(g.Room, b)
		if err != nil {
			return false, err
		}
		return w.GetLocation(actor) == room || world.RoomOf(w, actor) == room, nil

	case types.GuardInventory:
		actor, err := ResolveEntity(g.Actor, b, playerID)
		if err != nil {
			return false, err
		}
		item, err := ResolveRef(g.Entity, b)
		if err != nil {
			return false, err
		}
		return world.IsWithin(w, item, actor), nil

	case types.GuardAnd:
		return e.All(g.Conditions, w, b, playerID)

	case types.GuardOr:
		for _, c := range g.Conditions {
			ok, err := e.Evaluate(c, w, b, playerID)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case types.GuardNot:
		// not holds unless every sub-guard holds.
		all, err := e.All(g.Conditions, w, b, playerID)
		if err != nil {
			return false, err
		}
		return !all, nil

	case types.GuardCustom:
		p, ok := e.custom[g.Name]
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownPredicate, g.Name)
		}
		return p(w, b, playerID)

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownGuard, g.Type)
	}
}

// All returns true if every guard holds. An empty list holds.
func (e *Evaluator) All(gs []types.Guard, w world.Model, b types.Bindings, playerID string) (bool, error) {
	for _, g := range gs {
		ok, err := e.Evaluate(g, w, b, playerID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Equal compares authored values. Numbers compare by value regardless of
// their Go type, since content arrives from Lua, YAML and JSON.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
