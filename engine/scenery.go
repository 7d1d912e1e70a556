package engine

import (
	"strings"

	"github.com/nathoo/fablecore/engine/resolve"
	"github.com/nathoo/fablecore/types"
)

// sceneryFallback answers commands about nouns that only appear in the
// prose the player can see: the room description and the descriptions of
// everything in scope. It returns "" when the noun appears nowhere.
func (e *Engine) sceneryFallback(intent types.Intent) string {
	if intent.Object == "" {
		return ""
	}
	noun := strings.ToLower(intent.Object)

	for _, id := range resolve.InScope(e.World, e.PlayerID()) {
		ent, ok := e.World.GetEntity(id)
		if !ok {
			continue
		}
		if mentions(strings.ToLower(ent.Description()), noun) {
			return e.sceneryMessage(intent.Verb, intent.Object)
		}
	}
	return ""
}

// mentions matches the whole phrase, or any word of it four letters or
// longer.
func mentions(desc, noun string) bool {
	if desc == "" {
		return false
	}
	if strings.Contains(desc, noun) {
		return true
	}
	for _, word := range strings.Fields(noun) {
		if len(word) >= 4 && strings.Contains(desc, word) {
			return true
		}
	}
	return false
}

func (e *Engine) sceneryMessage(verb, object string) string {
	key := "scenery"
	switch verb {
	case "examine", "look":
		key = "scenery_examine"
	case "take":
		key = "scenery_take"
	}
	return e.narrator.Text(key, map[string]any{"object": object})
}

