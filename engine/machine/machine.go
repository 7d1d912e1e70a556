// Package machine runs declarative state machines. Each registered machine
// is evaluated once per turn after the player's action; at most one
// transition fires per machine per turn.
package machine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// TransitionEvent is the event type emitted for every executed transition.
const TransitionEvent = "sm.transition"

var (
	// ErrDuplicateMachine is returned when an ID is registered twice.
	ErrDuplicateMachine = errors.New("duplicate machine id")
	// ErrInitialState is returned when the initial state is not defined.
	ErrInitialState = errors.New("initial state not defined")
	// ErrUnknownTarget is returned when a transition targets an undefined state.
	ErrUnknownTarget = errors.New("transition target not defined")
	// ErrInvalidTrigger is returned for a malformed trigger.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrUnknownMachine is returned for an unregistered machine ID.
	ErrUnknownMachine = errors.New("unknown machine")
	// ErrUnknownState is returned when restored state names an undefined state.
	ErrUnknownState = errors.New("unknown state")
	// ErrMissingID is returned for a definition without an ID.
	ErrMissingID = errors.New("machine id required")
)

// TurnContext describes the turn just completed.
type TurnContext struct {
	ActionID string
	TargetID string
	Events   []types.Event
}

type instance struct {
	def      types.MachineDefinition
	bindings types.Bindings
	current  string
	history  []string
}

// Registry holds machines in registration order.
type Registry struct {
	machines []*instance
	guards   *guard.Evaluator
	exec     *effects.Executor
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(ev *guard.Evaluator, x *effects.Executor, opts ...Option) *Registry {
	r := &Registry{guards: ev, exec: x}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Register adds a machine in its initial state. The definition is checked:
// the initial state and every transition target must exist. Binding keys
// may be given with or without the $ sigil.
func (r *Registry) Register(def types.MachineDefinition, bindings types.Bindings) error {
	if err := Check(def); err != nil {
		return err
	}
	if r.find(def.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateMachine, def.ID)
	}
	b := types.Bindings{}
	for k, v := range bindings {
		if !strings.HasPrefix(k, guard.Sigil) {
			k = guard.Sigil + k
		}
		b[k] = v
	}
	r.machines = append(r.machines, &instance{
		def:      def,
		bindings: b,
		current:  def.InitialState,
		history:  []string{def.InitialState},
	})
	return nil
}

// Check validates a definition without registering it.
func Check(def types.MachineDefinition) error {
	if def.ID == "" {
		return ErrMissingID
	}
	if _, ok := def.States[def.InitialState]; !ok {
		return fmt.Errorf("%w: machine %s state %q", ErrInitialState, def.ID, def.InitialState)
	}
	for name, st := range def.States {
		for i, t := range st.Transitions {
			if _, ok := def.States[t.Target]; !ok {
				return fmt.Errorf("%w: machine %s state %s transition %d -> %q", ErrUnknownTarget, def.ID, name, i, t.Target)
			}
			if err := checkTrigger(t.Trigger); err != nil {
				return fmt.Errorf("machine %s state %s transition %d: %w", def.ID, name, i, err)
			}
		}
	}
	return nil
}

func checkTrigger(tr types.Trigger) error {
	switch tr.Type {
	case types.TriggerAction:
		if tr.Action == "" {
			return fmt.Errorf("%w: action trigger needs an action", ErrInvalidTrigger)
		}
	case types.TriggerEvent:
		if tr.Event == "" {
			return fmt.Errorf("%w: event trigger needs an event type", ErrInvalidTrigger)
		}
	case types.TriggerCondition:
		if tr.Condition == nil {
			return fmt.Errorf("%w: condition trigger needs a condition", ErrInvalidTrigger)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidTrigger, tr.Type)
	}
	return nil
}

// Unregister removes a machine.
func (r *Registry) Unregister(id string) error {
	i := slices.IndexFunc(r.machines, func(m *instance) bool { return m.def.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, id)
	}
	r.machines = slices.Delete(r.machines, i, i+1)
	return nil
}

// IDs returns machine IDs in evaluation order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.machines))
	for i, m := range r.machines {
		ids[i] = m.def.ID
	}
	return ids
}

// Current returns a machine's current state.
func (r *Registry) Current(id string) (string, bool) {
	m := r.find(id)
	if m == nil {
		return "", false
	}
	return m.current, true
}

// History returns a copy of a machine's visited states.
func (r *Registry) History(id string) []string {
	m := r.find(id)
	if m == nil {
		return nil
	}
	return slices.Clone(m.history)
}

// Evaluate runs one evaluation pass over every machine in registration
// order and returns the events produced. Each machine matches against the
// turn's events only, never against events another machine produced in
// the same pass.
func (r *Registry) Evaluate(w world.Model, playerID string, tc TurnContext) ([]types.Event, error) {
	var out []types.Event
	for _, m := range r.machines {
		evts, err := r.evaluate(m, w, playerID, tc)
		if err != nil {
			return out, err
		}
		out = append(out, evts...)
	}
	return out, nil
}

func (r *Registry) evaluate(m *instance, w world.Model, playerID string, tc TurnContext) ([]types.Event, error) {
	st := m.def.States[m.current]
	if st.Terminal || len(st.Transitions) == 0 {
		return nil, nil
	}

	ordered := slices.Clone(st.Transitions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, t := range ordered {
		ok, err := r.triggerMatches(t.Trigger, m, w, playerID, tc)
		if err != nil {
			return nil, fmt.Errorf("machine %s: %w", m.def.ID, err)
		}
		if !ok {
			continue
		}
		if t.Guard != nil {
			ok, err := r.guards.Evaluate(*t.Guard, w, m.bindings, playerID)
			if err != nil {
				return nil, fmt.Errorf("machine %s guard: %w", m.def.ID, err)
			}
			if !ok {
				continue
			}
		}
		return r.fire(m, t, w, playerID)
	}
	return nil, nil
}

// fire runs exit effects, transition effects, the state change, then
// entry effects, in that order.
func (r *Registry) fire(m *instance, t types.Transition, w world.Model, playerID string) ([]types.Event, error) {
	from := m.current
	var out []types.Event

	evts, err := r.exec.ExecuteEffects(m.def.States[from].OnExit, w, m.bindings, playerID, m.def.ID)
	out = append(out, evts...)
	if err != nil {
		return out, err
	}
	evts, err = r.exec.ExecuteEffects(t.Effects, w, m.bindings, playerID, m.def.ID)
	out = append(out, evts...)
	if err != nil {
		return out, err
	}

	m.current = t.Target
	m.history = append(m.history, t.Target)

	evts, err = r.exec.ExecuteEffects(m.def.States[t.Target].OnEnter, w, m.bindings, playerID, m.def.ID)
	out = append(out, evts...)
	if err != nil {
		return out, err
	}

	r.logger.Debug("state transition", "machine", m.def.ID, "from", from, "to", t.Target)
	out = append(out, events.New(TransitionEvent, nil, map[string]any{
		"machineId": m.def.ID,
		"from":      from,
		"to":        t.Target,
	}))
	return out, nil
}

func (r *Registry) triggerMatches(tr types.Trigger, m *instance, w world.Model, playerID string, tc TurnContext) (bool, error) {
	switch tr.Type {
	case types.TriggerAction:
		if tr.Action != tc.ActionID {
			return false, nil
		}
		if tr.Target == "" {
			return true, nil
		}
		target, err := guard.ResolveEntity(tr.Target, m.bindings, playerID)
		if err != nil {
			return false, err
		}
		return target == tc.TargetID, nil

	case types.TriggerEvent:
		for _, e := range tc.Events {
			if e.Type != tr.Event {
				continue
			}
			ok, err := filterMatches(e, tr.Filter, m.bindings, playerID)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case types.TriggerCondition:
		if tr.Condition == nil {
			return false, fmt.Errorf("%w: condition trigger needs a condition", ErrInvalidTrigger)
		}
		return r.guards.Evaluate(*tr.Condition, w, m.bindings, playerID)

	default:
		return false, fmt.Errorf("%w: kind %q", ErrInvalidTrigger, tr.Type)
	}
}

// filterMatches compares each filter field against the event's data, then
// its entities. Symbolic filter values are resolved first.
func filterMatches(e types.Event, filter map[string]any, b types.Bindings, playerID string) (bool, error) {
	for key, want := range filter {
		if s, ok := want.(string); ok && strings.HasPrefix(s, guard.Sigil) {
			id, err := guard.ResolveEntity(s, b, playerID)
			if err != nil {
				return false, err
			}
			want = id
		}
		got, ok := e.Data[key]
		if !ok {
			if ent, ok := e.Entities[key]; ok {
				got = ent
			}
		}
		if !guard.Equal(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// GetState returns every machine's state in registration order.
func (r *Registry) GetState() []types.MachineState {
	out := make([]types.MachineState, len(r.machines))
	for i, m := range r.machines {
		out[i] = types.MachineState{
			ID:           m.def.ID,
			CurrentState: m.current,
			History:      slices.Clone(m.history),
		}
	}
	return out
}

// SetState restores machine states by direct assignment; no entry or exit
// effects run. Every entry is checked before any is applied.
func (r *Registry) SetState(states []types.MachineState) error {
	for _, s := range states {
		m := r.find(s.ID)
		if m == nil {
			return fmt.Errorf("%w: %s", ErrUnknownMachine, s.ID)
		}
		if _, ok := m.def.States[s.CurrentState]; !ok {
			return fmt.Errorf("%w: machine %s state %q", ErrUnknownState, s.ID, s.CurrentState)
		}
	}
	for _, s := range states {
		m := r.find(s.ID)
		m.current = s.CurrentState
		m.history = slices.Clone(s.History)
		if len(m.history) == 0 {
			m.history = []string{s.CurrentState}
		}
	}
	return nil
}

func (r *Registry) find(id string) *instance {
	for _, m := range r.machines {
		if m.def.ID == id {
			return m
		}
	}
	return nil
}
