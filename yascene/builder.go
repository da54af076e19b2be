// Package yascene builds multi-step conversations on top of yafsm and yabot.
//
// A scene is one FSM state with its own handlers and lifecycle callbacks:
//
//   - enter: the conversation switched into the scene
//   - leave: the conversation switched to another scene
//   - exit: the conversation returned to the default scene
//   - back: the conversation rolled back through the history
//
// Scenes are collected by a [Registry] which injects a [Manager] under
// yabot.KeyScenes into every update. Scene handlers additionally receive a
// [Wizard] under yabot.KeyScene.
//
// Example usage:
//
//	form := yafsm.NewStatesGroup("Form", "name", "age")
//
//	askName := yascene.New(form.State("name")).
//	    OnEnter(yabot.KindMessage, promptName).
//	    On(yabot.KindMessage, saveName).
//	    Build()
//
//	registry := yascene.NewRegistry(dp.Router)
//	if err := registry.Register(askName); err != nil {
//	    log.Fatalf("failed to register scenes: %v", err)
//	}
package yascene

import (
	"maps"
	"slices"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionEnter Action = "enter"
	ActionLeave Action = "leave"
	ActionExit  Action = "exit"
	ActionBack  Action = "back"
)

// Route is one scene handler.
type Route struct {
	Kind    yabot.EventKind
	Handler yabot.HandlerFunc
	Filters []yabot.Filter
}

// Config is the immutable description of a scene.
type Config struct {
	State                     *string
	Handlers                  []Route
	Actions                   map[Action]map[yabot.EventKind]yabot.HandlerFunc
	ResetDataOnEnter          bool
	ResetHistoryOnEnter       bool
	CallbackQueryWithoutState bool
}

func (c Config) clone() Config {
	actions := make(map[Action]map[yabot.EventKind]yabot.HandlerFunc, len(c.Actions))

	for action, callbacks := range c.Actions {
		actions[action] = maps.Clone(callbacks)
	}

	c.Handlers = slices.Clone(c.Handlers)
	c.Actions = actions

	if c.State != nil {
		state := *c.State
		c.State = &state
	}

	return c
}

// Builder collects the parts of a scene. It is not safe for concurrent use.
type Builder struct {
	name     string
	state    *string
	parent   *Scene
	handlers []Route
	actions  map[Action]map[yabot.EventKind]yabot.HandlerFunc

	resetDataOnEnter          *bool
	resetHistoryOnEnter       *bool
	callbackQueryWithoutState *bool
}

// New starts a scene bound to state.
func New(state yafsm.State) *Builder {
	builder := &Builder{
		state:   yafsm.StateOf(state),
		actions: make(map[Action]map[yabot.EventKind]yabot.HandlerFunc),
	}

	if builder.state != nil {
		builder.name = *builder.state
	}

	return builder
}

// Default starts the scene of conversations without a state.
func Default() *Builder {
	builder := New(nil)
	builder.name = "default"

	return builder
}

// Name overrides the router name of the scene.
func (b *Builder) Name(name string) *Builder {
	b.name = name

	return b
}

// Extend inherits handlers, callbacks and flags of parent. Own registrations
// override inherited callbacks of the same action and kind and run after
// inherited handlers.
//
// Example:
//
//	base := yascene.New(nil).OnBack(yabot.KindMessage, onBack).Build()
//	step := yascene.New(form.State("age")).Extend(base).Build()
func (b *Builder) Extend(parent *Scene) *Builder {
	b.parent = parent

	return b
}

// On registers a handler active while the conversation is in the scene.
func (b *Builder) On(kind yabot.EventKind, handler yabot.HandlerFunc, filters ...yabot.Filter) *Builder {
	b.handlers = append(b.handlers, Route{
		Kind:    kind,
		Handler: handler,
		Filters: slices.Clone(filters),
	})

	return b
}

func (b *Builder) OnEnter(kind yabot.EventKind, handler yabot.HandlerFunc) *Builder {
	return b.on(ActionEnter, kind, handler)
}

func (b *Builder) OnLeave(kind yabot.EventKind, handler yabot.HandlerFunc) *Builder {
	return b.on(ActionLeave, kind, handler)
}

func (b *Builder) OnExit(kind yabot.EventKind, handler yabot.HandlerFunc) *Builder {
	return b.on(ActionExit, kind, handler)
}

func (b *Builder) OnBack(kind yabot.EventKind, handler yabot.HandlerFunc) *Builder {
	return b.on(ActionBack, kind, handler)
}

func (b *Builder) on(action Action, kind yabot.EventKind, handler yabot.HandlerFunc) *Builder {
	if b.actions[action] == nil {
		b.actions[action] = make(map[yabot.EventKind]yabot.HandlerFunc)
	}

	b.actions[action][kind] = handler

	return b
}

// ResetDataOnEnter clears the FSM data when the scene is entered.
func (b *Builder) ResetDataOnEnter(reset bool) *Builder {
	b.resetDataOnEnter = &reset

	return b
}

// ResetHistoryOnEnter clears the history when the scene is entered.
func (b *Builder) ResetHistoryOnEnter(reset bool) *Builder {
	b.resetHistoryOnEnter = &reset

	return b
}

// CallbackQueryWithoutState lets callback query handlers of the scene run
// regardless of the stored state.
func (b *Builder) CallbackQueryWithoutState(enabled bool) *Builder {
	b.callbackQueryWithoutState = &enabled

	return b
}

// Build freezes the builder into a Scene.
func (b *Builder) Build() *Scene {
	var config Config

	if b.parent != nil {
		config = b.parent.config.clone()
	} else {
		config.Actions = make(map[Action]map[yabot.EventKind]yabot.HandlerFunc)
	}

	config.State = b.state
	config.Handlers = append(config.Handlers, b.handlers...)

	for action, callbacks := range b.actions {
		if config.Actions[action] == nil {
			config.Actions[action] = make(map[yabot.EventKind]yabot.HandlerFunc)
		}

		maps.Copy(config.Actions[action], callbacks)
	}

	if b.resetDataOnEnter != nil {
		config.ResetDataOnEnter = *b.resetDataOnEnter
	}

	if b.resetHistoryOnEnter != nil {
		config.ResetHistoryOnEnter = *b.resetHistoryOnEnter
	}

	if b.callbackQueryWithoutState != nil {
		config.CallbackQueryWithoutState = *b.callbackQueryWithoutState
	}

	name := b.name
	if name == "" {
		name = "scene"
	}

	return &Scene{
		name:   name,
		config: config.clone(),
	}
}
