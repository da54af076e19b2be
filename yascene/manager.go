package yascene

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// EnterOption tunes one scene transition.
type EnterOption func(*enterOptions)

type enterOptions struct {
	values map[string]any
}

// WithValues exposes values to the lifecycle callbacks of the transition.
func WithValues(values map[string]any) EnterOption {
	return func(o *enterOptions) {
		if o.values == nil {
			o.values = make(map[string]any, len(values))
		}

		for key, value := range values {
			o.values[key] = value
		}
	}
}

func collectOptions(opts []EnterOption) enterOptions {
	var options enterOptions

	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Manager drives scene transitions of one conversation during one update.
// It is available to handlers under yabot.KeyScenes.
type Manager struct {
	registry *Registry
	fsm      *yafsm.FSMContext
	history  *History
	kind     yabot.EventKind
	event    any
	data     *yabot.Context
}

func newManager(
	registry *Registry,
	fsm *yafsm.FSMContext,
	kind yabot.EventKind,
	event any,
	data *yabot.Context,
) *Manager {
	return &Manager{
		registry: registry,
		fsm:      fsm,
		history:  NewHistory(fsm, registry.historySize),
		kind:     kind,
		event:    event,
		data:     data,
	}
}

// bind returns a copy of the manager using data for lifecycle callbacks.
func (m *Manager) bind(data *yabot.Context) *Manager {
	bound := *m
	bound.data = data

	return &bound
}

func (m *Manager) wizard(scene *Scene) *Wizard {
	return &Wizard{
		scene:   scene,
		manager: m,
	}
}

// FSM returns the conversation context the manager works on.
func (m *Manager) FSM() *yafsm.FSMContext {
	return m.fsm
}

func (m *Manager) History() *History {
	return m.history
}

// Enter switches the conversation into the scene of target, exiting the
// active scene first. A nil target enters the default scene, or clears the
// state when no default scene is registered.
//
// Example:
//
//	scenes, _ := yabot.Value[*yascene.Manager](data, yabot.KeyScenes)
//	if err := scenes.Enter(ctx, form.State("name")); err != nil {
//	    return nil, err
//	}
func (m *Manager) Enter(ctx context.Context, target yafsm.State, opts ...EnterOption) yaerrors.Error {
	return m.enter(ctx, yafsm.StateOf(target), true, collectOptions(opts))
}

func (m *Manager) enter(ctx context.Context, target *string, checkActive bool, options enterOptions) yaerrors.Error {
	if checkActive {
		active, err := m.Active(ctx)
		if err != nil {
			return err
		}

		if active != nil {
			if err := m.wizard(active).exit(ctx, options); err != nil {
				return err
			}
		}
	}

	scene, err := m.registry.lookup(target)
	if err != nil {
		if target != nil {
			return err
		}

		if err := m.fsm.SetRawState(ctx, nil); err != nil {
			return err.Wrap("[SCENE] failed to reset state")
		}

		return nil
	}

	return m.wizard(scene).enter(ctx, options)
}

// Close exits the active scene, if any.
func (m *Manager) Close(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	active, err := m.Active(ctx)
	if err != nil {
		return err
	}

	if active == nil {
		return nil
	}

	return m.wizard(active).exit(ctx, collectOptions(opts))
}

// Active returns the scene of the stored state, nil when the state belongs
// to no registered scene.
func (m *Manager) Active(ctx context.Context) (*Scene, yaerrors.Error) {
	state, err := m.fsm.GetState(ctx)
	if err != nil {
		return nil, err.Wrap("[SCENE] failed to read active scene")
	}

	scene, lookupErr := m.registry.lookup(state)
	if lookupErr != nil {
		return nil, nil
	}

	return scene, nil
}
