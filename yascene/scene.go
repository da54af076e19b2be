package yascene

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// Scene is a built, immutable scene.
type Scene struct {
	name   string
	config Config

	routerOnce sync.Once
	router     *yabot.Router
}

func (s *Scene) String() string {
	return fmt.Sprintf("Scene(%s)", s.name)
}

func (s *Scene) Name() string {
	return s.name
}

// State returns the state of the scene, nil for the default scene.
func (s *Scene) State() *string {
	if s.config.State == nil {
		return nil
	}

	state := *s.config.State

	return &state
}

// Config returns a copy of the scene description.
func (s *Scene) Config() Config {
	return s.config.clone()
}

func (s *Scene) isDefault() bool {
	return s.config.State == nil
}

func (s *Scene) action(action Action, kind yabot.EventKind) (yabot.HandlerFunc, bool) {
	callback, ok := s.config.Actions[action][kind]

	return callback, ok && callback != nil
}

// AsRouter returns the router serving the scene handlers. Every handler is
// guarded by the scene state, except callback queries of a scene configured
// with CallbackQueryWithoutState. The router is built once.
func (s *Scene) AsRouter() *yabot.Router {
	s.routerOnce.Do(func() {
		s.router = s.buildRouter()
	})

	return s.router
}

func (s *Scene) buildRouter() *yabot.Router {
	router := yabot.NewRouter(s.name)

	var state yafsm.State
	if s.config.State != nil {
		state = yafsm.StateName(*s.config.State)
	}

	guard := yabot.And(yabot.HasKey(yabot.KeyState), yabot.StateIs(state))
	wired := make(map[yabot.EventKind]bool)

	for _, route := range s.config.Handlers {
		observer := router.Observer(route.Kind)
		if observer == nil {
			continue
		}

		filters := route.Filters
		if !(s.config.CallbackQueryWithoutState && route.Kind == yabot.KindCallbackQuery) {
			filters = append([]yabot.Filter{guard}, filters...)
		}

		observer.Register(route.Handler, filters...)

		if !wired[route.Kind] {
			observer.Middleware(s.injectWizard)

			wired[route.Kind] = true
		}
	}

	return router
}

// injectWizard binds the manager of the update to the handler context and
// exposes the scene wizard under yabot.KeyScene.
func (s *Scene) injectWizard(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
	manager, ok := yabot.Value[*Manager](data, yabot.KeyScenes)
	if !ok || manager == nil {
		if _, hasState := data.Get(yabot.KeyState); !hasState {
			return nil, yaerrors.FromError(
				http.StatusInternalServerError,
				ErrNoFSMContext,
				fmt.Sprintf("[SCENE] %s needs an fsm context", s),
			)
		}

		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrSceneNotRegistered,
			fmt.Sprintf("[SCENE] %s is served outside of a registry", s),
		)
	}

	bound := manager.bind(data)

	data.Set(yabot.KeyScenes, bound)
	data.Set(yabot.KeyScene, bound.wizard(s))

	return next(ctx, event, data)
}
