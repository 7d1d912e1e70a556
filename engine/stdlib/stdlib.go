// Package stdlib provides the standard verbs. Every action returns its
// mutations as an effect batch; none writes to the world directly.
package stdlib

import (
	"sort"

	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/world"
)

// Action IDs.
const (
	Taking    = "if.action.taking"
	Dropping  = "if.action.dropping"
	Going     = "if.action.going"
	Looking   = "if.action.looking"
	Examining = "if.action.examining"
	Inventory = "if.action.inventory"
	Waiting   = "if.action.waiting"
	Opening   = "if.action.opening"
	Closing   = "if.action.closing"
	Unlocking = "if.action.unlocking"
)

// Conventional trait types.
const (
	TraitScenery   = "scenery"
	TraitOpenable  = "openable"
	TraitLockable  = "lockable"
	TraitContainer = "container"
	TraitActor     = "actor"
)

// RoomDescribed is emitted whenever a room should be described.
const RoomDescribed = "if.event.room.description"

// Actions returns every standard action.
func Actions() []action.Action {
	return []action.Action{
		taking{}, dropping{}, going{}, looking{}, examining{},
		inventory{}, waiting{}, opening{}, closing{}, unlocking{},
	}
}

// Register adds the standard actions to r.
func Register(r *action.Registry) error {
	for _, a := range Actions() {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// messageID namespaces a message key under an action.
func messageID(actionID, key string) string {
	return actionID + "." + key
}

// Reachable reports whether the player can touch id: it shares the
// player's room and no closed container stands between.
func Reachable(w world.Model, playerID, id string) bool {
	room := world.RoomOf(w, playerID)
	if room == "" || world.RoomOf(w, id) != room {
		return false
	}
	for loc := w.GetLocation(id); loc != "" && loc != room && loc != playerID; loc = w.GetLocation(loc) {
		if closed(w, loc) {
			return false
		}
	}
	return true
}

func closed(w world.Model, id string) bool {
	e, ok := w.GetEntity(id)
	if !ok {
		return false
	}
	t := e.Get(TraitOpenable)
	return t != nil && !t.Bool("open")
}

func name(w world.Model, id string) string {
	if e, ok := w.GetEntity(id); ok {
		return e.DisplayName()
	}
	return id
}

// visibleContents lists the names of what can be seen inside id, skipping
// the player and the contents of closed containers.
func visibleContents(w world.Model, playerID, id string) []string {
	if closed(w, id) {
		return nil
	}
	var names []string
	for _, c := range w.Contents(id) {
		if c == playerID {
			continue
		}
		names = append(names, name(w, c))
	}
	return names
}

// describeRoom builds the room description event.
func describeRoom(ctx *action.Context, roomID string) map[string]any {
	w := ctx.World
	var desc string
	if e, ok := w.GetEntity(roomID); ok {
		desc = e.Description()
	}
	exits := w.Exits(roomID)
	dirs := make([]string, 0, len(exits))
	for d := range exits {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return map[string]any{
		"messageId": "room_description",
		"params": map[string]any{
			"roomId":      roomID,
			"name":        name(w, roomID),
			"description": desc,
			"contents":    visibleContents(w, ctx.PlayerID, roomID),
			"exits":       dirs,
		},
	}
}
