// Package narrate turns the events of a turn into player-facing text.
// An event is narrated when it carries a messageId; the ID is looked up
// in the game's message table, then in the built-in defaults, and an ID
// found in neither is printed as-is so authored text can travel as its
// own ID.
package narrate

import (
	"fmt"
	"strings"

	"github.com/nathoo/fablecore/engine/stdlib"
	"github.com/nathoo/fablecore/types"
)

// Narrator renders events using a message table.
type Narrator struct {
	messages map[string]string
}

// New creates a narrator over the game's message table. messages may be nil.
func New(messages map[string]string) *Narrator {
	return &Narrator{messages: messages}
}

// Lines renders evts in order.
func (n *Narrator) Lines(evts []types.Event) []string {
	var out []string
	for _, e := range evts {
		out = append(out, n.Event(e)...)
	}
	return out
}

// Event renders one event. Events without a messageId, and messages whose
// text is empty, produce nothing.
func (n *Narrator) Event(e types.Event) []string {
	id, _ := e.Data["messageId"].(string)
	if id == "" {
		return nil
	}
	params, ok := e.Data["params"].(map[string]any)
	if !ok {
		params = e.Data
	}
	if e.Type == stdlib.RoomDescribed {
		return n.room(params)
	}
	actionID, _ := e.Data["actionId"].(string)
	text := Format(n.lookup(actionID, id), params)
	if text == "" {
		return nil
	}
	return []string{text}
}

// Text renders a message ID outside of any event.
func (n *Narrator) Text(id string, params map[string]any) string {
	return Format(n.lookup("", id), params)
}

func (n *Narrator) lookup(actionID, id string) string {
	keys := []string{id}
	if actionID != "" && !strings.HasPrefix(id, actionID+".") {
		keys = []string{actionID + "." + id, id}
	}
	for _, table := range []map[string]string{n.messages, defaults} {
		for _, k := range keys {
			if s, ok := table[k]; ok {
				return s
			}
		}
	}
	return id
}

func (n *Narrator) room(params map[string]any) []string {
	var out []string
	if s, ok := n.messages["room_description"]; ok {
		return []string{Format(s, params)}
	}
	desc, _ := params["description"].(string)
	if desc == "" {
		desc, _ = params["name"].(string)
	}
	if desc != "" {
		out = append(out, desc)
	}
	if items := toStrings(params["contents"]); len(items) > 0 {
		out = append(out, "You see: "+strings.Join(items, ", ")+".")
	}
	if dirs := toStrings(params["exits"]); len(dirs) > 0 {
		out = append(out, "Exits: "+strings.Join(dirs, ", ")+".")
	}
	return out
}

// Format replaces each {name} in text with params[name]. Lists are joined
// with commas; placeholders without a value are left in place.
func Format(text string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(text, "{") {
		return text
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			break
		}
		end += open
		b.WriteString(text[:open])
		if v, ok := params[text[open+1:end]]; ok {
			b.WriteString(value(v))
		} else {
			b.WriteString(text[open : end+1])
		}
		text = text[end+1:]
	}
	b.WriteString(text)
	return b.String()
}

func value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string, []any:
		return strings.Join(toStrings(x), ", ")
	default:
		return fmt.Sprint(x)
	}
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}
