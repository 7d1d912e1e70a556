// Package resolve maps the names in a parsed intent to entity IDs among
// the things the player can currently reach.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/fablecore/engine/stdlib"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Result holds the resolved entity IDs for an intent.
type Result struct {
	ObjectID string
	TargetID string
}

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("which %s? (%s)", e.Name, strings.Join(e.Candidates, ", "))
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you don't see %q here", e.Name)
}

// Resolve maps the object and target names of intent to entity IDs.
// Movement intents carry a direction, not an entity, and are left alone.
func Resolve(w world.Model, playerID string, intent types.Intent) (Result, error) {
	var res Result
	if intent.Direction != "" {
		return res, nil
	}

	var err error
	if intent.Object != "" {
		if res.ObjectID, err = resolveName(w, playerID, intent.Object); err != nil {
			return res, err
		}
	}
	if intent.Target != "" {
		if res.TargetID, err = resolveName(w, playerID, intent.Target); err != nil {
			return res, err
		}
	}
	return res, nil
}

// InScope lists the IDs of entities the player can refer to: everything
// reachable in the current room, the room itself and whatever the player
// carries. The result is sorted.
func InScope(w world.Model, playerID string) []string {
	room := world.RoomOf(w, playerID)
	seen := map[string]bool{}
	var ids []string
	var walk func(id string)
	walk = func(id string) {
		for _, c := range w.Contents(id) {
			if c == playerID || seen[c] {
				continue
			}
			if stdlib.Reachable(w, playerID, c) {
				seen[c] = true
				ids = append(ids, c)
			}
			walk(c)
		}
	}
	if room != "" {
		seen[room] = true
		ids = append(ids, room)
		walk(room)
	}
	walk(playerID)
	sort.Strings(ids)
	return ids
}

func resolveName(w world.Model, playerID, name string) (string, error) {
	query := strings.ToLower(name)
	scope := InScope(w, playerID)

	// An exact ID wins outright.
	for _, id := range scope {
		if strings.ToLower(id) == query {
			return id, nil
		}
	}

	var matches []string
	for _, id := range scope {
		if e, ok := w.GetEntity(id); ok && nameMatches(e, query) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

// nameMatches compares query against the entity's name, any single word of
// the name, and the ID with underscores read as spaces.
func nameMatches(e *world.Entity, query string) bool {
	n := strings.ToLower(e.Name)
	if n == query {
		return true
	}
	for _, word := range strings.Fields(n) {
		if word == query {
			return true
		}
	}
	return strings.ReplaceAll(query, " ", "_") == strings.ToLower(e.ID)
}
