package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/fablecore/engine/world"
)

// status is what the status bar shows, read between turns.
type status struct {
	room      string
	exits     []string
	inventory []string
	score     any // nil without a scoring capability
	turn      int
}

func (m Model) readStatus() status {
	var s status
	e := m.engine
	e.Locked(func() {
		player := e.PlayerID()
		s.turn = e.Turn

		roomID := world.RoomOf(e.World, player)
		s.room = roomDisplayName(roomID)
		if room, ok := e.World.GetEntity(roomID); ok && room.Name != "" {
			s.room = room.Name
		}
		s.exits = slices.Sorted(maps.Keys(e.World.Exits(roomID)))

		for _, id := range e.World.Contents(player) {
			if ent, ok := e.World.GetEntity(id); ok {
				s.inventory = append(s.inventory, ent.DisplayName())
			}
		}
		if scoring, ok := e.World.GetCapability("scoring"); ok {
			s.score = scoring["score"]
		}
	})
	return s
}

// roomDisplayName turns "great_hall" into "Great Hall".
func roomDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// layout fits the status onto one line of the given width. Inventory
// names collapse to a count when they do not fit.
func (s status) layout(width int) string {
	left := fmt.Sprintf(" %s | Exits: %s", s.room, strings.Join(s.exits, ","))

	tail := fmt.Sprintf("T:%d ", s.turn)
	if s.score != nil {
		tail = fmt.Sprintf("Score: %v | %s", s.score, tail)
	}

	right := tail
	if len(s.inventory) > 0 {
		right = fmt.Sprintf("Inv: %s | %s", strings.Join(s.inventory, ", "), tail)
		if lipgloss.Width(left)+lipgloss.Width(right)+2 >= width {
			right = fmt.Sprintf("Inv: %d | %s", len(s.inventory), tail)
		}
	}

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) statusBar() string {
	return styleStatusBar.Width(m.width).Render(m.readStatus().layout(m.width))
}
