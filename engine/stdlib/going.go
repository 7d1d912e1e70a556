package stdlib

import (
	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/types"
)

// GoingData is the payload of going.
type GoingData struct {
	Direction string
	From      string
	To        string
}

// PayloadKind implements action.Payload.
func (GoingData) PayloadKind() string { return "going" }

type going struct{}

func (going) ID() string { return Going }

func (going) Validate(ctx *action.Context) action.ValidationResult {
	w := ctx.World
	dir := ctx.Command.Direction
	if dir == "" {
		dir = ctx.Command.DirectObject
	}
	if dir == "" {
		return action.Invalid("no_direction", nil)
	}
	room := ctx.Location()
	if room == "" || w.GetLocation(ctx.PlayerID) != room {
		return action.Invalid("not_in_room", nil)
	}
	exits := w.Exits(room)
	if len(exits) == 0 {
		return action.Invalid("no_exits", nil)
	}
	params := map[string]any{"direction": dir}
	dest, ok := exits[dir]
	if !ok {
		return action.Invalid("no_exit_that_way", params)
	}
	if reason, blocked := w.BlockedExit(room, dir); blocked {
		return action.Invalid(reason, params)
	}
	if !w.HasEntity(dest) {
		return action.Invalid("destination_not_found", params)
	}
	return action.Valid(GoingData{Direction: dir, From: room, To: dest})
}

func (going) Execute(ctx *action.Context) ([]types.Effect, error) {
	d, ok := action.DataAs[GoingData](ctx.Validation)
	if !ok {
		return nil, nil
	}
	return []types.Effect{effects.MoveEntity(ctx.PlayerID, d.To)}, nil
}

func (going) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[GoingData](ctx.Validation)
	if !ok {
		return nil
	}
	moved := map[string]any{"direction": d.Direction, "from": d.From, "to": d.To}
	return []types.Event{
		ctx.Event("if.event.actor_moved", moved),
		ctx.Event(RoomDescribed, describeRoom(ctx, d.To)),
	}
}

func (going) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Going, r)}
}
