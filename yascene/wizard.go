package yascene

import (
	"context"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// Wizard performs transitions on behalf of one scene. Scene handlers find it
// under yabot.KeyScene.
//
// Example:
//
//	func saveName(ctx context.Context, event any, data *yabot.Context) (any, error) {
//	    wizard, _ := yabot.Value[*yascene.Wizard](data, yabot.KeyScene)
//	    if _, err := wizard.UpdateData(ctx, map[string]any{"name": event.(*yabot.Message).Text}); err != nil {
//	        return nil, err
//	    }
//	    return nil, wizard.Goto(ctx, form.State("age"))
//	}
type Wizard struct {
	scene   *Scene
	manager *Manager
}

func (w *Wizard) Scene() *Scene {
	return w.scene
}

func (w *Wizard) Manager() *Manager {
	return w.manager
}

// Enter resets data and history when configured, stores the scene state and
// runs the enter callback.
func (w *Wizard) Enter(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	return w.enter(ctx, collectOptions(opts))
}

func (w *Wizard) enter(ctx context.Context, options enterOptions) yaerrors.Error {
	if w.scene.config.ResetDataOnEnter {
		if err := w.manager.fsm.SetData(ctx, map[string]any{}); err != nil {
			return err.Wrap(fmt.Sprintf("[SCENE] failed to reset data of %s", w.scene))
		}
	}

	if w.scene.config.ResetHistoryOnEnter {
		if err := w.manager.history.Clear(ctx); err != nil {
			return err
		}
	}

	if err := w.manager.fsm.SetRawState(ctx, w.scene.config.State); err != nil {
		return err.Wrap(fmt.Sprintf("[SCENE] failed to enter %s", w.scene))
	}

	return w.run(ctx, ActionEnter, options)
}

// Leave snapshots the conversation into the history and runs the leave
// callback.
func (w *Wizard) Leave(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	return w.leave(ctx, true, collectOptions(opts))
}

func (w *Wizard) leave(ctx context.Context, withHistory bool, options enterOptions) yaerrors.Error {
	if withHistory {
		if err := w.manager.history.Snapshot(ctx); err != nil {
			return err
		}
	}

	return w.run(ctx, ActionLeave, options)
}

// Exit clears the history, runs the exit callback and enters the default
// scene.
func (w *Wizard) Exit(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	return w.exit(ctx, collectOptions(opts))
}

func (w *Wizard) exit(ctx context.Context, options enterOptions) yaerrors.Error {
	if err := w.manager.history.Clear(ctx); err != nil {
		return err
	}

	if err := w.run(ctx, ActionExit, options); err != nil {
		return err
	}

	return w.manager.enter(ctx, nil, false, options)
}

// Back leaves without a snapshot and restores the newest history entry. An
// empty history returns the conversation to the default scene with no data.
func (w *Wizard) Back(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	options := collectOptions(opts)

	if err := w.leave(ctx, false, options); err != nil {
		return err
	}

	if err := w.run(ctx, ActionBack, options); err != nil {
		return err
	}

	state, err := w.manager.history.Rollback(ctx)
	if err != nil {
		return err
	}

	return w.manager.enter(ctx, state, false, options)
}

// Retake enters the own scene again through Goto.
func (w *Wizard) Retake(ctx context.Context, opts ...EnterOption) yaerrors.Error {
	if w.scene.isDefault() {
		return yaerrors.FromError(
			http.StatusBadRequest,
			ErrDefaultSceneRetake,
			fmt.Sprintf("[SCENE] failed to retake %s", w.scene),
		)
	}

	return w.Goto(ctx, yafsm.StateName(*w.scene.config.State), opts...)
}

// Goto leaves the scene and enters target.
func (w *Wizard) Goto(ctx context.Context, target yafsm.State, opts ...EnterOption) yaerrors.Error {
	options := collectOptions(opts)

	if err := w.leave(ctx, true, options); err != nil {
		return err
	}

	return w.manager.enter(ctx, yafsm.StateOf(target), false, options)
}

func (w *Wizard) SetData(ctx context.Context, data map[string]any) yaerrors.Error {
	return w.manager.fsm.SetData(ctx, data)
}

func (w *Wizard) UpdateData(ctx context.Context, data map[string]any) (map[string]any, yaerrors.Error) {
	return w.manager.fsm.UpdateData(ctx, data)
}

func (w *Wizard) GetData(ctx context.Context) (map[string]any, yaerrors.Error) {
	return w.manager.fsm.GetData(ctx)
}

func (w *Wizard) GetValue(ctx context.Context, key string) (any, bool, yaerrors.Error) {
	return w.manager.fsm.GetValue(ctx, key)
}

func (w *Wizard) ClearData(ctx context.Context) yaerrors.Error {
	return w.manager.fsm.SetData(ctx, map[string]any{})
}

// run invokes the callback of action for the current event kind. A missing
// callback is a no-op.
func (w *Wizard) run(ctx context.Context, action Action, options enterOptions) yaerrors.Error {
	callback, ok := w.scene.action(action, w.manager.kind)
	if !ok {
		return nil
	}

	data := w.manager.data.Clone()
	data.Merge(options.values)
	data.Set(yabot.KeyScenes, w.manager)
	data.Set(yabot.KeyScene, w)

	if _, err := callback(ctx, w.manager.event, data); err != nil {
		if coded, ok := yaerrors.As(err); ok {
			return coded.Wrap(fmt.Sprintf("[SCENE] %s callback of %s failed", action, w.scene))
		}

		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			fmt.Sprintf("[SCENE] %s callback of %s failed", action, w.scene),
		)
	}

	return nil
}
