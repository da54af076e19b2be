package yascene

import (
	"context"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/threadsafemap"
	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// DefaultHistorySize is the number of snapshots kept per conversation.
const DefaultHistorySize = 10

// Option configures a Registry.
type Option func(*Registry)

// WithHistorySize bounds the history stack. Non positive sizes are ignored.
func WithHistorySize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.historySize = size
		}
	}
}

// Registry maps states to scenes and injects a Manager into every update
// passing through its router.
type Registry struct {
	router      *yabot.Router
	scenes      *threadsafemap.ThreadSafeMap[string, *Scene]
	historySize int
}

// NewRegistry installs the registry on router. The router is usually the
// dispatcher itself.
//
// Example usage:
//
//	registry := yascene.NewRegistry(dp.Router, yascene.WithHistorySize(20))
//	_ = registry.Register(menu, askName, askAge)
func NewRegistry(router *yabot.Router, opts ...Option) *Registry {
	registry := &Registry{
		router:      router,
		scenes:      threadsafemap.NewThreadSafeMap[string, *Scene](),
		historySize: DefaultHistorySize,
	}

	for _, opt := range opts {
		opt(registry)
	}

	router.Update.OuterMiddleware(registry.injectManager)

	kinds := append(yabot.EventKinds(), yabot.KindUpdate, yabot.KindError)
	for _, kind := range kinds {
		router.Observer(kind).Middleware(registry.bindManager)
	}

	return registry
}

func (r *Registry) Router() *yabot.Router {
	return r.router
}

func (r *Registry) HistorySize() int {
	return r.historySize
}

// Add registers scenes without routing their handlers. It fails on the first
// state that is already taken.
func (r *Registry) Add(scenes ...*Scene) yaerrors.Error {
	for _, scene := range scenes {
		if !r.scenes.SetIfAbsent(sceneKey(scene.config.State), scene) {
			return yaerrors.FromError(
				http.StatusConflict,
				ErrSceneAlreadyRegistered,
				fmt.Sprintf("[SCENE] failed to add %s", scene),
			)
		}
	}

	return nil
}

// Register adds scenes and includes their routers into the registry router.
func (r *Registry) Register(scenes ...*Scene) yaerrors.Error {
	for _, scene := range scenes {
		if err := r.Add(scene); err != nil {
			return err
		}

		if _, err := r.router.IncludeRouter(scene.AsRouter()); err != nil {
			r.scenes.Delete(sceneKey(scene.config.State))

			return err.Wrap(fmt.Sprintf("[SCENE] failed to route %s", scene))
		}
	}

	return nil
}

// Get resolves the scene of state. A nil state resolves the default scene.
func (r *Registry) Get(state yafsm.State) (*Scene, yaerrors.Error) {
	return r.lookup(yafsm.StateOf(state))
}

func (r *Registry) lookup(state *string) (*Scene, yaerrors.Error) {
	scene, ok := r.scenes.Get(sceneKey(state))
	if !ok {
		name := "default"
		if state != nil {
			name = *state
		}

		return nil, yaerrors.FromError(
			http.StatusNotFound,
			ErrSceneNotRegistered,
			fmt.Sprintf("[SCENE] no scene for `%s`", name),
		)
	}

	return scene, nil
}

// Scenes returns the registered scenes.
func (r *Registry) Scenes() []*Scene {
	return r.scenes.Values()
}

// injectManager is the update level outer middleware.
func (r *Registry) injectManager(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
	fsm, ok := yabot.Value[*yafsm.FSMContext](data, yabot.KeyState)
	if !ok || fsm == nil {
		return next(ctx, event, data)
	}

	update, _ := yabot.Value[*yabot.Update](data, yabot.KeyEventUpdate)
	kind, subEvent := update.Event()

	data.Set(yabot.KeyScenes, newManager(r, fsm, kind, subEvent, data))

	return next(ctx, event, data)
}

// bindManager rebinds the manager to the context accumulated up to the
// handler so lifecycle callbacks see everything the handler sees.
func (r *Registry) bindManager(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
	if manager, ok := yabot.Value[*Manager](data, yabot.KeyScenes); ok && manager != nil {
		data.Set(yabot.KeyScenes, manager.bind(data))
	}

	return next(ctx, event, data)
}

func sceneKey(state *string) string {
	if state == nil {
		return ""
	}

	return "state:" + *state
}
