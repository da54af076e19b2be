package yafsm

import (
	"reflect"
	"slices"
	"strings"
)

// State is anything that names an FSM state.
type State interface {
	StateName() string
}

// StateName is a plain string state.
type StateName string

func (s StateName) StateName() string {
	return string(s)
}

// AnyState matches every state including the empty one when used in filters.
const AnyState StateName = "*"

// BaseState names a state after its Go type.
//
// Example:
//
//	type AskName struct{ yafsm.BaseState[AskName] }
//
//	_ = fsm.SetState(ctx, AskName{}) // "AskName"
type BaseState[T State] struct{}

func (BaseState[T]) StateName() string {
	var zero T

	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}

// StateOf converts a State into the stored representation. A nil State means
// "no active state".
func StateOf(state State) *string {
	if state == nil {
		return nil
	}

	if value := reflect.ValueOf(state); value.Kind() == reflect.Pointer && value.IsNil() {
		return nil
	}

	name := state.StateName()

	return &name
}

// StatesGroup is a named set of states. State names are "Group:state".
//
// Example:
//
//	form := yafsm.NewStatesGroup("Form", "name", "age")
//	form.State("name") // "Form:name"
type StatesGroup struct {
	name   string
	states []StateName
}

// NewStatesGroup declares a group and its states in order.
func NewStatesGroup(name string, states ...string) *StatesGroup {
	group := &StatesGroup{
		name:   name,
		states: make([]StateName, 0, len(states)),
	}

	for _, state := range states {
		group.states = append(group.states, StateName(name+":"+state))
	}

	return group
}

func (g *StatesGroup) Name() string {
	return g.name
}

// State returns the full name of one state of the group. Unknown names are
// still qualified so typos surface as never matching states.
func (g *StatesGroup) State(name string) StateName {
	return StateName(g.name + ":" + name)
}

// States returns the declared states in order.
func (g *StatesGroup) States() []StateName {
	return slices.Clone(g.states)
}

// Contains reports whether state belongs to the group.
func (g *StatesGroup) Contains(state string) bool {
	if !strings.HasPrefix(state, g.name+":") {
		return false
	}

	return slices.Contains(g.states, StateName(state))
}
