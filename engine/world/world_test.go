package world

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nathoo/fablecore/types"
)

func testDefs() *Defs {
	return &Defs{
		Game: types.GameDef{
			Title:   "Test Game",
			Author:  "Test",
			Version: "0.1.0",
			Start:   "entrance",
		},
		Rooms: map[string]types.RoomDef{
			"entrance": {
				ID:          "entrance",
				Name:        "Entrance",
				Description: "The entrance.",
				Exits:       map[string]string{"north": "hall"},
			},
			"hall": {
				ID:          "hall",
				Name:        "Hall",
				Description: "A grand hall.",
				Exits:       map[string]string{"south": "entrance"},
			},
		},
		Entities: map[string]types.EntityDef{
			"rusty_key": {
				ID:       "rusty_key",
				Name:     "Rusty Key",
				Kind:     "item",
				Location: "hall",
				Attrs:    map[string]any{"description": "An old iron key."},
			},
			"chest": {
				ID:       "chest",
				Name:     "Chest",
				Kind:     "item",
				Location: "entrance",
				Traits: []types.TraitDef{
					{Type: "container"},
					{Type: "openable", Props: map[string]any{"open": false}},
				},
			},
			"coin": {
				ID:       "coin",
				Name:     "Coin",
				Kind:     "item",
				Location: "chest",
			},
		},
		Capabilities: map[string]map[string]any{
			"scoring": {"score": 0},
		},
	}
}

func testWorld(t *testing.T) *World {
	t.Helper()
	w, err := FromDefs(testDefs())
	if err != nil {
		t.Fatalf("FromDefs() error: %v", err)
	}
	return w
}

func TestFromDefs(t *testing.T) {
	w := testWorld(t)

	if !w.HasEntity("player") {
		t.Fatal("player entity not created")
	}
	if got := w.GetLocation("player"); got != "entrance" {
		t.Errorf("player location = %q, want %q", got, "entrance")
	}
	if got := w.GetLocation("coin"); got != "chest" {
		t.Errorf("coin location = %q, want %q", got, "chest")
	}
	if !IsRoom(w, "hall") {
		t.Error("hall should be a room")
	}
	if IsRoom(w, "chest") {
		t.Error("chest should not be a room")
	}
	if got := w.Exits("entrance")["north"]; got != "hall" {
		t.Errorf("entrance north = %q, want %q", got, "hall")
	}
	c, ok := w.GetCapability("scoring")
	if !ok || c["score"] != 0 {
		t.Errorf("scoring = %v, want score 0", c)
	}
}

func TestMoveEntity(t *testing.T) {
	w := testWorld(t)

	if err := w.MoveEntity("rusty_key", "player"); err != nil {
		t.Fatalf("MoveEntity() error: %v", err)
	}
	if got := w.GetLocation("rusty_key"); got != "player" {
		t.Errorf("location = %q, want player", got)
	}

	if err := w.MoveEntity("rusty_key", ""); err != nil {
		t.Fatalf("MoveEntity(nowhere) error: %v", err)
	}
	if got := w.GetLocation("rusty_key"); got != "" {
		t.Errorf("location = %q, want empty", got)
	}

	if err := w.MoveEntity("ghost", "hall"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("MoveEntity(ghost) error = %v, want ErrEntityNotFound", err)
	}
	if err := w.MoveEntity("coin", "nowhere"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("MoveEntity(bad dest) error = %v, want ErrEntityNotFound", err)
	}
	if err := w.MoveEntity("chest", "coin"); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("MoveEntity(cycle) error = %v, want ErrInvalidMove", err)
	}
}

func TestRemoveEntity(t *testing.T) {
	w := testWorld(t)

	if err := w.RemoveEntity("chest"); err != nil {
		t.Fatalf("RemoveEntity() error: %v", err)
	}
	if w.HasEntity("chest") {
		t.Error("chest still present")
	}
	if got := w.GetLocation("coin"); got != "" {
		t.Errorf("coin location = %q, want detached", got)
	}
	if err := w.RemoveEntity("chest"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("second RemoveEntity() error = %v, want ErrEntityNotFound", err)
	}
}

func TestContainment(t *testing.T) {
	w := testWorld(t)

	if got := RoomOf(w, "coin"); got != "entrance" {
		t.Errorf("RoomOf(coin) = %q, want entrance", got)
	}
	if !IsWithin(w, "coin", "entrance") {
		t.Error("coin should be within entrance")
	}
	if IsWithin(w, "coin", "hall") {
		t.Error("coin should not be within hall")
	}
	got := w.Contents("entrance")
	want := []string{"player", "chest"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Contents(entrance) = %v, want %v", got, want)
	}
}

func TestExitsAndBlocks(t *testing.T) {
	w := testWorld(t)

	if err := w.SetExit("hall", "up", "entrance"); err != nil {
		t.Fatalf("SetExit() error: %v", err)
	}
	if err := w.RemoveExit("hall", "south"); err != nil {
		t.Fatalf("RemoveExit() error: %v", err)
	}
	want := map[string]string{"up": "entrance"}
	if got := w.Exits("hall"); !reflect.DeepEqual(got, want) {
		t.Errorf("Exits(hall) = %v, want %v", got, want)
	}

	if err := w.BlockExit("entrance", "north", "door_shut"); err != nil {
		t.Fatalf("BlockExit() error: %v", err)
	}
	if r, ok := w.BlockedExit("entrance", "north"); !ok || r != "door_shut" {
		t.Errorf("BlockedExit() = %q, %v", r, ok)
	}
	if err := w.UnblockExit("entrance", "north"); err != nil {
		t.Fatalf("UnblockExit() error: %v", err)
	}
	if _, ok := w.BlockedExit("entrance", "north"); ok {
		t.Error("exit still blocked")
	}

	if err := w.SetExit("chest", "in", "hall"); !errors.Is(err, ErrNotARoom) {
		t.Errorf("SetExit(chest) error = %v, want ErrNotARoom", err)
	}
}

func TestCapabilityMerge(t *testing.T) {
	w := testWorld(t)

	w.UpdateCapability("scoring", map[string]any{"score": 5, "max": 10})
	c, _ := w.GetCapability("scoring")
	if c["score"] != 5 || c["max"] != 10 {
		t.Errorf("scoring = %v", c)
	}

	// Returned records are copies.
	c["score"] = 99
	c2, _ := w.GetCapability("scoring")
	if c2["score"] != 5 {
		t.Errorf("capability mutated through copy: %v", c2)
	}
}

func TestSnapshotRestore(t *testing.T) {
	w := testWorld(t)
	w.SetStateValue("flag.lit", true)
	_ = w.MoveEntity("rusty_key", "player")
	_ = w.BlockExit("hall", "south", "rubble")
	w.entities["chest"].Get("openable").SetProp("open", true)

	snap := w.Snapshot()

	// Mutate after snapshot.
	_ = w.MoveEntity("rusty_key", "hall")
	w.SetStateValue("flag.lit", false)
	w.entities["chest"].Get("openable").SetProp("open", false)

	w.Restore(snap)

	if got := w.GetLocation("rusty_key"); got != "player" {
		t.Errorf("rusty_key location = %q, want player", got)
	}
	if v, _ := w.GetStateValue("flag.lit"); v != true {
		t.Errorf("flag.lit = %v, want true", v)
	}
	chest, _ := w.GetEntity("chest")
	if !chest.Get("openable").Bool("open") {
		t.Error("chest should be open after restore")
	}
	if _, ok := w.BlockedExit("hall", "south"); !ok {
		t.Error("block lost on restore")
	}
}

func TestUpdateEntity(t *testing.T) {
	w := testWorld(t)

	if err := w.UpdateEntity("coin", map[string]any{"name": "Gold Coin", "shiny": true}); err != nil {
		t.Fatalf("UpdateEntity() error: %v", err)
	}
	e, _ := w.GetEntity("coin")
	if e.Name != "Gold Coin" {
		t.Errorf("name = %q", e.Name)
	}
	if e.Attrs["shiny"] != true {
		t.Errorf("shiny = %v", e.Attrs["shiny"])
	}
}

func TestUpdateEntityTraitProp(t *testing.T) {
	w := testWorld(t)

	if err := w.UpdateEntity("chest", map[string]any{"openable.open": true, "missing.x": 1}); err != nil {
		t.Fatalf("UpdateEntity() error: %v", err)
	}
	e, _ := w.GetEntity("chest")
	if !e.Get("openable").Bool("open") {
		t.Error("openable.open not set")
	}
	if e.Attrs["missing.x"] != 1 {
		t.Errorf("unknown trait path should land in attrs, got %v", e.Attrs["missing.x"])
	}
}
