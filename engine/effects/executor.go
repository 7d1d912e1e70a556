package effects

import (
	"errors"
	"fmt"

	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

var (
	// ErrUnknownHandler is returned for a custom effect with no registered handler.
	ErrUnknownHandler = errors.New("unknown custom effect handler")
	// ErrUnknownMachineEffect is returned for an unrecognized machine effect kind.
	ErrUnknownMachineEffect = errors.New("unknown machine effect kind")
	// ErrMissingTrait is returned when set_trait targets an absent trait.
	ErrMissingTrait = errors.New("entity lacks trait")
)

// MessageRef is a message ID with parameters.
type MessageRef struct {
	ID     string
	Params map[string]any
}

// CustomResult is what a custom effect handler produces.
type CustomResult struct {
	Events   []types.Event
	Messages []MessageRef
}

// CustomContext is passed to custom effect handlers.
type CustomContext struct {
	World     world.Model
	Bindings  types.Bindings
	PlayerID  string
	MachineID string
	Params    map[string]any
}

// CustomHandler implements a custom machine effect.
type CustomHandler func(ctx CustomContext) (CustomResult, error)

// Executor applies machine-local effects one at a time.
type Executor struct {
	custom map[string]CustomHandler
}

// NewExecutor creates an executor with no custom handlers.
func NewExecutor() *Executor {
	return &Executor{custom: map[string]CustomHandler{}}
}

// RegisterCustom adds a named custom effect handler.
func (x *Executor) RegisterCustom(name string, h CustomHandler) {
	x.custom[name] = h
}

// HasCustom reports whether a custom handler is registered under name.
func (x *Executor) HasCustom(name string) bool {
	_, ok := x.custom[name]
	return ok
}

// ExecuteEffects applies effects in order and returns the events they
// produce. The first error stops execution.
func (x *Executor) ExecuteEffects(effs []types.MachineEffect, w world.Model, b types.Bindings, playerID, machineID string) ([]types.Event, error) {
	var out []types.Event
	for i, eff := range effs {
		evts, err := x.execute(eff, w, b, playerID, machineID)
		if err != nil {
			return out, fmt.Errorf("machine %s effect %d (%s): %w", machineID, i, eff.Type, err)
		}
		out = append(out, evts...)
	}
	return out, nil
}

func (x *Executor) execute(eff types.MachineEffect, w world.Model, b types.Bindings, playerID, machineID string) ([]types.Event, error) {
	switch eff.Type {
	case types.MachineMove:
		id, err := guard.ResolveEntity(eff.Entity, b, playerID)
		if err != nil {
			return nil, err
		}
		dest := ""
		if eff.Destination != "" {
			if dest, err = guard.ResolveEntity(eff.Destination, b, playerID); err != nil {
				return nil, err
			}
		}
		return nil, w.MoveEntity(id, dest)

	case types.MachineRemove:
		id, err := guard.ResolveRef(eff.Entity, b)
		if err != nil {
			return nil, err
		}
		return nil, w.RemoveEntity(id)

	case types.MachineSetTrait:
		id, err := guard.ResolveEntity(eff.Entity, b, playerID)
		if err != nil {
			return nil, err
		}
		ent, ok := w.GetEntity(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", world.ErrEntityNotFound, id)
		}
		t := ent.Get(eff.Trait)
		if t == nil {
			return nil, fmt.Errorf("%w: %s has no %s", ErrMissingTrait, id, eff.Trait)
		}
		t.SetProp(eff.Property, eff.Value)
		return nil, nil

	case types.MachineSetState:
		w.SetStateValue(eff.Key, eff.Value)
		return nil, nil

	case types.MachineMessage:
		params := map[string]any{"machineId": machineID}
		for k, v := range eff.Params {
			params[k] = v
		}
		return []types.Event{events.Message(eff.Message, params)}, nil

	case types.MachineEmitEvent:
		data := map[string]any{"machineId": machineID}
		for k, v := range eff.Data {
			data[k] = v
		}
		return []types.Event{events.New(eff.Event, nil, data)}, nil

	case types.MachineCustom:
		h, ok := x.custom[eff.Handler]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, eff.Handler)
		}
		res, err := h(CustomContext{World: w, Bindings: b, PlayerID: playerID, MachineID: machineID, Params: eff.Params})
		if err != nil {
			return nil, err
		}
		var out []types.Event
		for _, e := range res.Events {
			out = append(out, events.Stamp(e))
		}
		for _, m := range res.Messages {
			out = append(out, events.Message(m.ID, m.Params))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMachineEffect, eff.Type)
	}
}
