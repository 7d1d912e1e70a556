// Package events builds semantic events and implements single-pass event
// handler dispatch. Event handlers produce additional effects but do not
// recurse.
package events

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

var seq = atomic.NewUint64(0)

var now = time.Now

// NewID returns a process-unique event ID.
func NewID() string {
	return fmt.Sprintf("evt-%d-%d", now().UnixMilli(), seq.Inc())
}

// New creates an event with a fresh ID and timestamp.
func New(typ string, entities map[string]string, data map[string]any) types.Event {
	if entities == nil {
		entities = map[string]string{}
	}
	return types.Event{
		ID:        NewID(),
		Type:      typ,
		Timestamp: now().UnixMilli(),
		Entities:  entities,
		Data:      data,
	}
}

// Stamp fills in ID, timestamp and entities on an authored event.
func Stamp(e types.Event) types.Event {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = now().UnixMilli()
	}
	if e.Entities == nil {
		e.Entities = map[string]string{}
	}
	return e
}

// Message creates a game.message event for a message ID.
func Message(id string, params map[string]any) types.Event {
	data := map[string]any{"messageId": id}
	for k, v := range params {
		data[k] = v
	}
	return New("game.message", nil, data)
}

// OfType returns the events whose type equals typ.
func OfType(evts []types.Event, typ string) []types.Event {
	var out []types.Event
	for _, e := range evts {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Dispatch runs event handlers against the emitted events in a single
// pass and returns the effects of the handlers that match.
func Dispatch(evts []types.Event, handlers []types.EventHandler, ev *guard.Evaluator, w world.Model, playerID string) ([]types.Effect, error) {
	var result []types.Effect

	for _, event := range evts {
		for _, handler := range handlers {
			if handler.EventType != event.Type {
				continue
			}
			ok, err := ev.All(handler.Guards, w, nil, playerID)
			if err != nil {
				return nil, fmt.Errorf("handler for %s: %w", event.Type, err)
			}
			if !ok {
				continue
			}
			result = append(result, handler.Effects...)
		}
	}

	return result, nil
}
