// Package action defines the four-phase action lifecycle (validate,
// execute, report, blocked) and the context threaded through it.
package action

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

const (
	// BlockedEventType is the default event for a failed validation.
	BlockedEventType = "action.blocked"
	// SuccessEventType carries the message for a completed action.
	SuccessEventType = "action.success"
)

// ErrDuplicateAction is returned when an action ID is registered twice.
var ErrDuplicateAction = errors.New("duplicate action")

// Payload is data a validate phase hands forward to the later phases.
// Each action family defines its own payload type.
type Payload interface {
	PayloadKind() string
}

// ValidationResult is the outcome of a validate phase.
type ValidationResult struct {
	Valid  bool
	Error  string // message ID when invalid
	Params map[string]any
	Data   Payload
}

// Valid returns a passing result carrying data.
func Valid(data Payload) ValidationResult {
	return ValidationResult{Valid: true, Data: data}
}

// Invalid returns a failing result.
func Invalid(messageID string, params map[string]any) ValidationResult {
	return ValidationResult{Valid: false, Error: messageID, Params: params}
}

// DataAs recovers a typed payload from a result.
func DataAs[T Payload](r *ValidationResult) (T, bool) {
	var zero T
	if r == nil || r.Data == nil {
		return zero, false
	}
	v, ok := r.Data.(T)
	return v, ok
}

// Command is a resolved player command.
type Command struct {
	ActionID       string
	Verb           string
	DirectObject   string // entity ID
	IndirectObject string // entity ID
	Direction      string
	Raw            string
}

// Context is shared by the phases of one action invocation.
type Context struct {
	World    world.Model
	PlayerID string
	Command  Command
	Turn     int

	// Validation holds the validate phase's result once it has run.
	Validation *ValidationResult
	// Shared is per-dispatch scratch data for capability behaviors.
	Shared *SharedData
}

// Location returns the room the player is in.
func (c *Context) Location() string {
	return world.RoomOf(c.World, c.PlayerID)
}

// Event builds an event with the actor and command entities filled in.
func (c *Context) Event(typ string, data map[string]any) types.Event {
	ents := map[string]string{"actor": c.PlayerID}
	if c.Command.DirectObject != "" {
		ents["target"] = c.Command.DirectObject
	}
	if c.Command.IndirectObject != "" {
		ents["instrument"] = c.Command.IndirectObject
	}
	if loc := c.Location(); loc != "" {
		ents["location"] = loc
	}
	return events.New(typ, ents, data)
}

// Action is one verb's implementation. Execute describes its mutations as
// an effect batch; it must not write to the world directly.
type Action interface {
	ID() string
	Validate(ctx *Context) ValidationResult
	Execute(ctx *Context) ([]types.Effect, error)
	Report(ctx *Context) []types.Event
	Blocked(ctx *Context, result ValidationResult) []types.Event
}

// BlockedEvent is the default blocked-phase event.
func BlockedEvent(ctx *Context, actionID string, result ValidationResult) types.Event {
	msg := result.Error
	if msg == "" {
		msg = "action_blocked"
	}
	return ctx.Event(BlockedEventType, map[string]any{
		"actionId":  actionID,
		"messageId": msg,
		"params":    result.Params,
	})
}

// SuccessEvent is the event a report phase emits to narrate success.
func SuccessEvent(ctx *Context, actionID, messageID string, params map[string]any) types.Event {
	return ctx.Event(SuccessEventType, map[string]any{
		"actionId":  actionID,
		"messageId": messageID,
		"params":    params,
	})
}

// Registry maps action IDs to actions.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: map[string]Action{}}
}

// Register adds an action.
func (r *Registry) Register(a Action) error {
	if _, ok := r.actions[a.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, a.ID())
	}
	r.actions[a.ID()] = a
	return nil
}

// Replace adds or overwrites an action.
func (r *Registry) Replace(a Action) {
	r.actions[a.ID()] = a
}

// Get returns the action registered under id.
func (r *Registry) Get(id string) (Action, bool) {
	a, ok := r.actions[id]
	return a, ok
}

// IDs returns the registered action IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.actions))
	for id := range r.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
