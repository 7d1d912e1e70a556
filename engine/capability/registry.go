// Package capability lets a trait take over a standard action for the
// entities that carry it. A trait claims an action ID; a behavior bound
// to the (trait type, action ID) pair then receives the action's four
// lifecycle phases in place of the standard action.
package capability

import (
	"errors"
	"fmt"

	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Resolution decides how several claims on one action combine.
type Resolution string

const (
	// FirstWins lets the highest-priority claim decide alone.
	FirstWins Resolution = "first-wins"
	// HighestPriority is FirstWins under another name, kept for content
	// that states its intent.
	HighestPriority Resolution = "highest-priority"
	// AnyBlocks validates claims in priority order and stops at the first
	// failure.
	AnyBlocks Resolution = "any-blocks"
	// AllMustPass validates every claim and fails if any fails.
	AllMustPass Resolution = "all-must-pass"
)

// ErrDuplicateBinding is returned when a (trait, action) pair is bound twice.
var ErrDuplicateBinding = errors.New("duplicate capability binding")

// Effect is a narrative effect returned by report and blocked phases. It
// becomes an event of the same type.
type Effect struct {
	Type    string
	Payload map[string]any
}

// Behavior implements an action on behalf of a trait.
type Behavior interface {
	Validate(e *world.Entity, w world.Model, playerID string, shared *action.SharedData) action.ValidationResult
	Execute(e *world.Entity, w world.Model, playerID string, shared *action.SharedData) ([]types.Effect, error)
	Report(e *world.Entity, w world.Model, playerID string, shared *action.SharedData) []Effect
	Blocked(e *world.Entity, w world.Model, playerID string, reason string, shared *action.SharedData) []Effect
}

// Binding is a behavior registered for one trait type and action.
type Binding struct {
	Behavior   Behavior
	Priority   int
	Resolution Resolution // overrides the action's configured mode when set
}

// BindOption configures a Binding.
type BindOption func(*Binding)

// WithPriority orders this binding among claims on the same action.
func WithPriority(p int) BindOption {
	return func(b *Binding) { b.Priority = p }
}

// WithResolution overrides the resolution mode for dispatches this
// binding takes part in.
func WithResolution(r Resolution) BindOption {
	return func(b *Binding) { b.Resolution = r }
}

type bindingKey struct {
	trait  string
	action string
}

// Registry holds behavior bindings and per-action resolution modes.
type Registry struct {
	bindings map[bindingKey]Binding
	modes    map[string]Resolution
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: map[bindingKey]Binding{},
		modes:    map[string]Resolution{},
	}
}

// Bind registers a behavior for a trait type and action.
func (r *Registry) Bind(traitType, actionID string, b Behavior, opts ...BindOption) error {
	k := bindingKey{traitType, actionID}
	if _, ok := r.bindings[k]; ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateBinding, traitType, actionID)
	}
	binding := Binding{Behavior: b}
	for _, o := range opts {
		o(&binding)
	}
	r.bindings[k] = binding
	return nil
}

// Unbind removes a binding.
func (r *Registry) Unbind(traitType, actionID string) {
	delete(r.bindings, bindingKey{traitType, actionID})
}

// Lookup returns the binding for a trait type and action.
func (r *Registry) Lookup(traitType, actionID string) (Binding, bool) {
	b, ok := r.bindings[bindingKey{traitType, actionID}]
	return b, ok
}

// Configure sets the resolution mode for an action.
func (r *Registry) Configure(actionID string, mode Resolution) {
	r.modes[actionID] = mode
}

// Mode returns the configured resolution for an action, FirstWins by default.
func (r *Registry) Mode(actionID string) Resolution {
	if m, ok := r.modes[actionID]; ok {
		return m
	}
	return FirstWins
}
