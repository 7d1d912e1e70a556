package stdlib

import (
	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// ItemData is the payload of taking and dropping.
type ItemData struct {
	ItemID string
	From   string
	To     string
}

// PayloadKind implements action.Payload.
func (ItemData) PayloadKind() string { return "item" }

type taking struct{}

func (taking) ID() string { return Taking }

func (taking) Validate(ctx *action.Context) action.ValidationResult {
	w := ctx.World
	id := ctx.Command.DirectObject
	if id == "" {
		return action.Invalid("no_target", nil)
	}
	e, ok := w.GetEntity(id)
	if !ok || !Reachable(w, ctx.PlayerID, id) {
		return action.Invalid("not_visible", nil)
	}
	params := map[string]any{"item": e.DisplayName()}
	switch {
	case id == ctx.PlayerID:
		return action.Invalid("cant_take_self", nil)
	case w.GetLocation(id) == ctx.PlayerID:
		return action.Invalid("already_have", params)
	case world.IsRoom(w, id):
		return action.Invalid("cant_take_room", params)
	case e.Has(TraitScenery), e.Has(TraitActor), e.Attrs["takeable"] == false:
		if t := e.Get(TraitScenery); t != nil && t.String("cantTake") != "" {
			return action.Invalid(t.String("cantTake"), params)
		}
		return action.Invalid("fixed_in_place", params)
	}
	return action.Valid(ItemData{ItemID: id, From: w.GetLocation(id), To: ctx.PlayerID})
}

func (taking) Execute(ctx *action.Context) ([]types.Effect, error) {
	d, ok := action.DataAs[ItemData](ctx.Validation)
	if !ok {
		return nil, nil
	}
	return []types.Effect{effects.MoveEntity(d.ItemID, d.To)}, nil
}

func (taking) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[ItemData](ctx.Validation)
	if !ok {
		return nil
	}
	key := "taken"
	if d.From != ctx.Location() {
		key = "taken_from"
	}
	params := map[string]any{
		"item":      name(ctx.World, d.ItemID),
		"itemId":    d.ItemID,
		"container": name(ctx.World, d.From),
	}
	return []types.Event{ctx.Event("if.event.taken", map[string]any{
		"messageId":        messageID(Taking, key),
		"params":           params,
		"previousLocation": d.From,
	})}
}

func (taking) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Taking, r)}
}

type dropping struct{}

func (dropping) ID() string { return Dropping }

func (dropping) Validate(ctx *action.Context) action.ValidationResult {
	w := ctx.World
	id := ctx.Command.DirectObject
	if id == "" {
		return action.Invalid("no_target", nil)
	}
	if w.GetLocation(id) != ctx.PlayerID {
		return action.Invalid("not_held", map[string]any{"item": name(w, id)})
	}
	dest := ctx.Location()
	if dest == "" {
		return action.Invalid("cant_drop_here", nil)
	}
	return action.Valid(ItemData{ItemID: id, From: ctx.PlayerID, To: dest})
}

func (dropping) Execute(ctx *action.Context) ([]types.Effect, error) {
	d, ok := action.DataAs[ItemData](ctx.Validation)
	if !ok {
		return nil, nil
	}
	return []types.Effect{effects.MoveEntity(d.ItemID, d.To)}, nil
}

func (dropping) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[ItemData](ctx.Validation)
	if !ok {
		return nil
	}
	return []types.Event{ctx.Event("if.event.dropped", map[string]any{
		"messageId": messageID(Dropping, "dropped"),
		"params":    map[string]any{"item": name(ctx.World, d.ItemID), "itemId": d.ItemID},
	})}
}

func (dropping) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Dropping, r)}
}
