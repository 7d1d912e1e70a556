// Package types defines the shared data structures for the fablecore engine.
// This package contains only type definitions.
package types

// Intent is the parsed representation of a player command.
type Intent struct {
	Verb      string
	Action    string // action ID the verb maps to
	Object    string // optional
	Target    string // optional
	Direction string // set for movement
}

// EffectKind names a pipeline effect variant.
type EffectKind = string

// Pipeline effect kinds handled by the effect processor.
const (
	EffectScore        EffectKind = "score"
	EffectFlag         EffectKind = "flag"
	EffectMessage      EffectKind = "message"
	EffectEmit         EffectKind = "emit"
	EffectMoveEntity   EffectKind = "move_entity"
	EffectUpdateEntity EffectKind = "update_entity"
	EffectSetState     EffectKind = "set_state"
	EffectUpdateExits  EffectKind = "update_exits"
	EffectSchedule     EffectKind = "schedule"
	EffectBlock        EffectKind = "block"
	EffectUnblock      EffectKind = "unblock"
)

// Effect is a description of one intended world mutation.
// Params are loosely typed because effects are authored as data.
type Effect struct {
	Type   EffectKind     `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Machine-local effect kinds handled by the effect executor.
const (
	MachineMove      = "move"
	MachineRemove    = "remove"
	MachineSetTrait  = "set_trait"
	MachineSetState  = "set_state"
	MachineMessage   = "message"
	MachineEmitEvent = "emit_event"
	MachineCustom    = "custom"
)

// MachineEffect is an effect run by the state-machine runtime.
// Entity references may be symbolic ($role) and are resolved through bindings.
type MachineEffect struct {
	Type        string         `json:"type" yaml:"type"`
	Entity      string         `json:"entity,omitempty" yaml:"entity,omitempty"`
	Destination string         `json:"destination,omitempty" yaml:"destination,omitempty"`
	Trait       string         `json:"trait,omitempty" yaml:"trait,omitempty"`
	Property    string         `json:"property,omitempty" yaml:"property,omitempty"`
	Value       any            `json:"value,omitempty" yaml:"value,omitempty"`
	Key         string         `json:"key,omitempty" yaml:"key,omitempty"`
	Message     string         `json:"message,omitempty" yaml:"message,omitempty"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Event       string         `json:"event,omitempty" yaml:"event,omitempty"`
	Data        map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Handler     string         `json:"handler,omitempty" yaml:"handler,omitempty"`
}

// Guard kinds.
const (
	GuardEntity    = "entity"
	GuardState     = "state"
	GuardLocation  = "location"
	GuardInventory = "inventory"
	GuardAnd       = "and"
	GuardOr        = "or"
	GuardNot       = "not"
	GuardCustom    = "custom"
)

// Guard is a pure predicate over the world.
type Guard struct {
	Type       string  `json:"type" yaml:"type"`
	Entity     string  `json:"entity,omitempty" yaml:"entity,omitempty"`
	Actor      string  `json:"actor,omitempty" yaml:"actor,omitempty"` // empty means the player
	Trait      string  `json:"trait,omitempty" yaml:"trait,omitempty"`
	Property   string  `json:"property,omitempty" yaml:"property,omitempty"`
	Value      any     `json:"value,omitempty" yaml:"value,omitempty"`
	Key        string  `json:"key,omitempty" yaml:"key,omitempty"`
	Room       string  `json:"room,omitempty" yaml:"room,omitempty"`
	Conditions []Guard `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"` // custom predicate name
}

// Bindings maps symbolic role names ($door) to entity IDs for one machine.
type Bindings map[string]string

// Event is a semantic event produced during a turn.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Entities  map[string]string `json:"entities"`
	Data      map[string]any    `json:"data,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
}

// Trigger kinds.
const (
	TriggerAction    = "action"
	TriggerEvent     = "event"
	TriggerCondition = "condition"
)

// Trigger makes a transition eligible.
type Trigger struct {
	Type      string         `json:"type" yaml:"type"`
	Action    string         `json:"action,omitempty" yaml:"action,omitempty"`
	Target    string         `json:"target,omitempty" yaml:"target,omitempty"`
	Event     string         `json:"event,omitempty" yaml:"event,omitempty"`
	Filter    map[string]any `json:"filter,omitempty" yaml:"filter,omitempty"`
	Condition *Guard         `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Transition moves a machine from its current state to Target.
type Transition struct {
	Target   string          `json:"target" yaml:"target"`
	Trigger  Trigger         `json:"trigger" yaml:"trigger"`
	Guard    *Guard          `json:"guard,omitempty" yaml:"guard,omitempty"`
	Effects  []MachineEffect `json:"effects,omitempty" yaml:"effects,omitempty"`
	Priority int             `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// StateDef is one named state of a machine.
type StateDef struct {
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	OnEnter     []MachineEffect `json:"onEnter,omitempty" yaml:"onEnter,omitempty"`
	OnExit      []MachineEffect `json:"onExit,omitempty" yaml:"onExit,omitempty"`
	Transitions []Transition    `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Terminal    bool            `json:"terminal,omitempty" yaml:"terminal,omitempty"`
}

// MachineDefinition is a declarative state machine.
type MachineDefinition struct {
	ID           string              `json:"id" yaml:"id"`
	Description  string              `json:"description,omitempty" yaml:"description,omitempty"`
	InitialState string              `json:"initialState" yaml:"initialState"`
	States       map[string]StateDef `json:"states" yaml:"states"`
}

// MachineDef pairs a definition with the bindings it is registered with.
type MachineDef struct {
	MachineDefinition `yaml:",inline"`
	Bindings          Bindings `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// MachineState is the serializable runtime state of one machine.
type MachineState struct {
	ID           string   `json:"id"`
	CurrentState string   `json:"currentState"`
	History      []string `json:"history"`
}

// Result is the output of a single game step.
type Result struct {
	Effects []Effect
	Events  []Event
	Output  []string
}

// MatchCriteria defines what command a rule matches against.
type MatchCriteria struct {
	Action      string
	Object      string // specific entity ID
	Target      string // specific entity ID
	ObjectTrait string // object must carry this trait
}

// RuleDef is a content rule that replaces a standard action with effects.
type RuleDef struct {
	ID          string
	Scope       string // "room:<id>", "entity:<id>", "global"
	When        MatchCriteria
	Guards      []Guard
	Effects     []Effect
	Priority    int
	SourceOrder int
}

// TraitDef is an authored trait: a type tag, its properties and the
// actions it claims.
type TraitDef struct {
	Type         string
	Props        map[string]any
	Capabilities []string
}

// EntityDef is the base definition of a world entity.
type EntityDef struct {
	ID       string
	Name     string
	Kind     string // "item", "actor", "entity"
	Location string
	Attrs    map[string]any
	Traits   []TraitDef
	Rules    []RuleDef
}

// RoomDef is the base definition of a room.
type RoomDef struct {
	ID          string
	Name        string
	Description string
	Exits       map[string]string // direction → room_id
	Traits      []TraitDef
	Rules       []RuleDef
	Fallbacks   map[string]string // action ID or "default" → message
}

// GameDef holds game metadata.
type GameDef struct {
	Title   string
	Author  string
	Version string
	Start   string // starting room ID
	Intro   string
	Player  string // player entity ID, "player" when empty
	Seed    int64
}

// DaemonDef is a recurring background process.
type DaemonDef struct {
	ID       string
	Every    int // turns between runs, 1 when zero
	Chance   int // percent, 100 when zero
	Active   bool
	Priority int
	Guards   []Guard
	Effects  []Effect
}

// FuseDef is a one-shot countdown armed by a schedule effect.
type FuseDef struct {
	ID       string
	Priority int
	Guards   []Guard
	Effects  []Effect
}

// EventHandler is a rule triggered by an event rather than a player command.
type EventHandler struct {
	EventType string
	Guards    []Guard
	Effects   []Effect
}
