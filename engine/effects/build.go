package effects

import (
	"strings"

	"github.com/nathoo/fablecore/types"
)

// Score awards points through the scoring capability.
func Score(points int) types.Effect {
	return types.Effect{Type: types.EffectScore, Params: map[string]any{"points": points}}
}

// Flag sets world state flag.<name>.
func Flag(name string, value bool) types.Effect {
	return types.Effect{Type: types.EffectFlag, Params: map[string]any{"name": name, "value": value}}
}

// Message narrates a message ID.
func Message(id string, data map[string]any) types.Effect {
	p := map[string]any{"id": id}
	if data != nil {
		p["data"] = data
	}
	return types.Effect{Type: types.EffectMessage, Params: p}
}

// Emit re-emits a semantic event.
func Emit(e types.Event) types.Effect {
	return types.Effect{Type: types.EffectEmit, Params: map[string]any{"event": e}}
}

// MoveEntity moves an entity; an empty destination detaches it.
func MoveEntity(id, destination string) types.Effect {
	var dest any
	if destination != "" {
		dest = destination
	}
	return types.Effect{Type: types.EffectMoveEntity, Params: map[string]any{"entityId": id, "destination": dest}}
}

// UpdateEntity writes entity attributes.
func UpdateEntity(id string, updates map[string]any) types.Effect {
	return types.Effect{Type: types.EffectUpdateEntity, Params: map[string]any{"entityId": id, "updates": updates}}
}

// SetState writes a world state value.
func SetState(key string, value any) types.Effect {
	return types.Effect{Type: types.EffectSetState, Params: map[string]any{"key": key, "value": value}}
}

// UpdateExits adds exits; nil values remove them.
func UpdateExits(roomID string, exits map[string]any) types.Effect {
	return types.Effect{Type: types.EffectUpdateExits, Params: map[string]any{"roomId": roomID, "exits": exits}}
}

// Block makes an exit impassable, narrated with the given message ID.
func Block(roomID, exit, message string) types.Effect {
	return types.Effect{Type: types.EffectBlock, Params: map[string]any{"room": roomID, "exit": exit, "message": message}}
}

// Unblock clears a block.
func Unblock(roomID, exit string) types.Effect {
	return types.Effect{Type: types.EffectUnblock, Params: map[string]any{"room": roomID, "exit": exit}}
}

// Schedule arms a fuse or starts a daemon after the given number of turns.
func Schedule(id string, turns int) types.Effect {
	return types.Effect{Type: types.EffectSchedule, Params: map[string]any{"daemon": id, "turns": turns}}
}

// Context carries the command roles substituted into authored effects.
type Context struct {
	ObjectID string
	TargetID string
	PlayerID string
	RoomID   string
}

// Interpolate returns a copy of effs with {object}, {target}, {player}
// and {room} replaced in string parameters, including one level of
// nested tables.
func Interpolate(effs []types.Effect, ctx Context) []types.Effect {
	r := strings.NewReplacer(
		"{object}", ctx.ObjectID,
		"{target}", ctx.TargetID,
		"{player}", ctx.PlayerID,
		"{room}", ctx.RoomID,
	)
	out := make([]types.Effect, len(effs))
	for i, eff := range effs {
		params := make(map[string]any, len(eff.Params))
		for k, v := range eff.Params {
			switch tv := v.(type) {
			case string:
				params[k] = r.Replace(tv)
			case map[string]any:
				nested := make(map[string]any, len(tv))
				for nk, nv := range tv {
					if s, ok := nv.(string); ok {
						nv = r.Replace(s)
					}
					nested[nk] = nv
				}
				params[k] = nested
			default:
				params[k] = v
			}
		}
		out[i] = types.Effect{Type: eff.Type, Params: params}
	}
	return out
}
