package yascene_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
	"github.com/YaCodeDev/GoYaBotKit/yascene"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct{}

func (fakeBot) ID() int64 {
	return 1
}

func (fakeBot) Call(context.Context, yabot.Method) (any, error) {
	return true, nil
}

var conversation = yafsm.NewStorageKey(1, -42, 7)

func send(t *testing.T, dp *yabot.Dispatcher, text string) (any, error) {
	t.Helper()

	return dp.FeedUpdate(context.Background(), fakeBot{}, &yabot.Update{
		UpdateID: 1,
		Message: &yabot.Message{
			MessageID: 1,
			From:      &yabot.User{ID: 7},
			Chat:      yabot.Chat{ID: -42, Type: yabot.ChatTypeGroup},
			Text:      text,
		},
	}, nil)
}

func press(t *testing.T, dp *yabot.Dispatcher, data string) (any, error) {
	t.Helper()

	return dp.FeedUpdate(context.Background(), fakeBot{}, &yabot.Update{
		UpdateID: 2,
		CallbackQuery: &yabot.CallbackQuery{
			ID:      "q",
			From:    yabot.User{ID: 7},
			Message: &yabot.Message{Chat: yabot.Chat{ID: -42, Type: yabot.ChatTypeGroup}},
			Data:    data,
		},
	}, nil)
}

func wizardOf(data *yabot.Context) *yascene.Wizard {
	wizard, _ := yabot.Value[*yascene.Wizard](data, yabot.KeyScene)

	return wizard
}

func managerOf(data *yabot.Context) *yascene.Manager {
	manager, _ := yabot.Value[*yascene.Manager](data, yabot.KeyScenes)

	return manager
}

func storedState(t *testing.T, dp *yabot.Dispatcher) *string {
	t.Helper()

	state, err := dp.Storage().GetState(context.Background(), conversation)
	require.Nil(t, err)

	return state
}

func storedData(t *testing.T, dp *yabot.Dispatcher) map[string]any {
	t.Helper()

	data, err := dp.Storage().GetData(context.Background(), conversation)
	require.Nil(t, err)

	return data
}

func TestScene_RoundTripRestoresSnapshot(t *testing.T) {
	var trace []string

	record := func(name string) yabot.HandlerFunc {
		return func(context.Context, any, *yabot.Context) (any, error) {
			trace = append(trace, name)

			return nil, nil
		}
	}

	sceneA := yascene.New(yafsm.StateName("A")).
		OnEnter(yabot.KindMessage, record("enter:A")).
		OnLeave(yabot.KindMessage, record("leave:A")).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			wizard := wizardOf(data)

			if err := wizard.SetData(ctx, map[string]any{"name": "x"}); err != nil {
				return nil, err
			}

			return "to B", wizard.Goto(ctx, yafsm.StateName("B"))
		}, yabot.TextEq("next")).
		Build()

	sceneB := yascene.New(yafsm.StateName("B")).
		OnEnter(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			trace = append(trace, "enter:B")

			_, err := wizardOf(data).UpdateData(ctx, map[string]any{"age": 5})

			return nil, err
		}).
		OnLeave(yabot.KindMessage, record("leave:B")).
		OnBack(yabot.KindMessage, record("back:B")).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return "back", wizardOf(data).Back(ctx)
		}, yabot.TextEq("back")).
		Build()

	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)
	require.Nil(t, registry.Register(sceneA, sceneB))

	dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
		return "started", managerOf(data).Enter(ctx, yafsm.StateName("A"))
	}, yabot.Command("start"))

	_, err := send(t, dp, "/start")
	require.NoError(t, err)
	assert.Equal(t, "A", *storedState(t, dp))

	_, err = send(t, dp, "next")
	require.NoError(t, err)
	assert.Equal(t, "B", *storedState(t, dp))
	assert.Equal(t, map[string]any{"name": "x", "age": 5}, storedData(t, dp))

	result, err := send(t, dp, "back")
	require.NoError(t, err)
	assert.Equal(t, "back", result)

	assert.Equal(t, "A", *storedState(t, dp))
	assert.Equal(t, map[string]any{"name": "x"}, storedData(t, dp))
	assert.Equal(t, []string{"enter:A", "leave:A", "enter:B", "leave:B", "back:B", "enter:A"}, trace)
}

func TestScene_ExitAndEmptyBack(t *testing.T) {
	var trace []string

	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)

	lobby := yascene.Default().
		OnEnter(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			trace = append(trace, "enter:default")

			return nil, nil
		}).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return "entered", managerOf(data).Enter(ctx, yafsm.StateName("form"))
		}, yabot.TextEq("form")).
		Build()

	form := yascene.New(yafsm.StateName("form")).
		OnExit(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			trace = append(trace, "exit:form")

			return nil, nil
		}).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return "exited", wizardOf(data).Exit(ctx)
		}, yabot.TextEq("exit")).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return "back", wizardOf(data).Back(ctx)
		}, yabot.TextEq("back")).
		Build()

	require.Nil(t, registry.Register(lobby, form))

	_, err := send(t, dp, "form")
	require.NoError(t, err)
	assert.Equal(t, "form", *storedState(t, dp))

	fallback, err := registry.Get(nil)
	require.Nil(t, err)
	assert.Same(t, lobby, fallback)

	result, err := send(t, dp, "exit")
	require.NoError(t, err)
	assert.Equal(t, "exited", result)
	assert.Nil(t, storedState(t, dp))
	assert.Equal(t, []string{"enter:default", "exit:form", "enter:default"}, trace)

	t.Run("[Back] empty history resets the conversation", func(t *testing.T) {
		_, err := send(t, dp, "form")
		require.NoError(t, err)

		require.Nil(t, dp.Storage().SetData(context.Background(), conversation, map[string]any{"draft": true}))

		_, err = send(t, dp, "back")
		require.NoError(t, err)

		assert.Nil(t, storedState(t, dp))
		assert.Empty(t, storedData(t, dp))
	})
}

func TestScene_LifecycleSeesAccumulatedContext(t *testing.T) {
	var (
		locale any
		scene  *yascene.Wizard
		event  any
	)

	target := yascene.New(yafsm.StateName("target")).
		OnEnter(yabot.KindMessage, func(_ context.Context, received any, data *yabot.Context) (any, error) {
			locale, _ = data.Get("locale")
			scene = wizardOf(data)
			event = received

			return nil, nil
		}).
		Build()

	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)
	require.Nil(t, registry.Register(target))

	dp.Update.OuterMiddleware(func(ctx context.Context, update any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
		data.Set("locale", "uk")

		return next(ctx, update, data)
	})

	dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
		return nil, managerOf(data).Enter(ctx, yafsm.StateName("target"))
	}, yabot.MagicData(func(data *yabot.Context) bool {
		return data.Has("locale")
	}))

	_, err := send(t, dp, "go")
	require.NoError(t, err)

	assert.Equal(t, "uk", locale)
	require.NotNil(t, scene)
	assert.Same(t, target, scene.Scene())

	message, ok := event.(*yabot.Message)
	require.True(t, ok)
	assert.Equal(t, "go", message.Text)
}

func TestScene_ConfigurationErrors(t *testing.T) {
	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)

	first := yascene.New(yafsm.StateName("same")).Build()
	second := yascene.New(yafsm.StateName("same")).Build()

	require.Nil(t, registry.Add(first))

	err := registry.Add(second)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, yascene.ErrSceneAlreadyRegistered)
	assert.Equal(t, 409, yaerrors.CodeOf(err))

	_, err = registry.Get(yafsm.StateName("missing"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, yascene.ErrSceneNotRegistered)
	assert.Equal(t, 404, yaerrors.CodeOf(err))

	t.Run("[Enter] unknown scene fails the update", func(t *testing.T) {
		dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return nil, managerOf(data).Enter(ctx, yafsm.StateName("missing"))
		})

		_, err := send(t, dp, "anything")
		assert.ErrorIs(t, err, yascene.ErrSceneNotRegistered)
	})

	t.Run("[Retake] the default scene can not be retaken", func(t *testing.T) {
		other := yabot.NewDispatcher(yabot.Options{})
		scenes := yascene.NewRegistry(other.Router)

		require.Nil(t, scenes.Register(yascene.Default().
			On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
				return nil, wizardOf(data).Retake(ctx)
			}).
			Build()))

		_, err := send(t, other, "again")
		assert.ErrorIs(t, err, yascene.ErrDefaultSceneRetake)
	})
}

func TestScene_MissingActionIsNoop(t *testing.T) {
	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)

	quiet := yascene.New(yafsm.StateName("quiet")).
		OnEnter(yabot.KindCallbackQuery, func(context.Context, any, *yabot.Context) (any, error) {
			return nil, fmt.Errorf("callback only")
		}).
		On(yabot.KindMessage, func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			return "retaken", wizardOf(data).Retake(ctx)
		}).
		Build()

	require.Nil(t, registry.Register(quiet))

	dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
		return "entered", managerOf(data).Enter(ctx, yafsm.StateName("quiet"))
	}, yabot.StateIs(nil))

	result, err := send(t, dp, "enter")
	require.NoError(t, err)
	assert.Equal(t, "entered", result)

	result, err = send(t, dp, "retake")
	require.NoError(t, err)
	assert.Equal(t, "retaken", result)
	assert.Equal(t, "quiet", *storedState(t, dp))
}

func TestScene_CallbackQueryWithoutState(t *testing.T) {
	build := func(withoutState bool) *yabot.Dispatcher {
		dp := yabot.NewDispatcher(yabot.Options{})
		registry := yascene.NewRegistry(dp.Router)

		menu := yascene.New(yafsm.StateName("menu")).
			CallbackQueryWithoutState(withoutState).
			On(yabot.KindCallbackQuery, func(context.Context, any, *yabot.Context) (any, error) {
				return "pressed", nil
			}, yabot.CallbackEq("open")).
			On(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
				return "message", nil
			}).
			Build()

		require.Nil(t, registry.Register(menu))

		return dp
	}

	result, err := press(t, build(true), "open")
	require.NoError(t, err)
	assert.Equal(t, "pressed", result)

	result, err = press(t, build(false), "open")
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = send(t, build(true), "hello")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestScene_WithoutFSM(t *testing.T) {
	dp := yabot.NewDispatcher(yabot.Options{DisableFSM: true})
	registry := yascene.NewRegistry(dp.Router)

	menu := yascene.New(yafsm.StateName("menu")).
		CallbackQueryWithoutState(true).
		On(yabot.KindCallbackQuery, func(context.Context, any, *yabot.Context) (any, error) {
			return "pressed", nil
		}).
		Build()

	require.Nil(t, registry.Register(menu))

	_, err := press(t, dp, "open")
	assert.ErrorIs(t, err, yascene.ErrNoFSMContext)
}

func TestBuilder_Extend(t *testing.T) {
	var trace []string

	base := yascene.New(nil).
		ResetDataOnEnter(true).
		OnEnter(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			trace = append(trace, "base enter")

			return nil, nil
		}).
		OnBack(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			return nil, nil
		}).
		On(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			return "base", nil
		}, yabot.TextEq("help")).
		Build()

	child := yascene.New(yafsm.StateName("child")).
		Extend(base).
		ResetHistoryOnEnter(true).
		OnEnter(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			trace = append(trace, "child enter")

			return nil, nil
		}).
		On(yabot.KindMessage, func(context.Context, any, *yabot.Context) (any, error) {
			return "child", nil
		}).
		Build()

	config := child.Config()

	assert.Equal(t, "child", *config.State)
	assert.Len(t, config.Handlers, 2)
	assert.True(t, config.ResetDataOnEnter)
	assert.True(t, config.ResetHistoryOnEnter)
	assert.Len(t, config.Actions[yascene.ActionBack], 1)
	assert.False(t, base.Config().ResetHistoryOnEnter)

	dp := yabot.NewDispatcher(yabot.Options{})
	registry := yascene.NewRegistry(dp.Router)
	require.Nil(t, registry.Register(child))

	require.Nil(t, dp.Storage().SetData(context.Background(), conversation, map[string]any{"stale": true}))

	dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
		return nil, managerOf(data).Enter(ctx, yafsm.StateName("child"))
	}, yabot.StateIs(nil))

	_, err := send(t, dp, "enter")
	require.NoError(t, err)

	assert.Equal(t, []string{"child enter"}, trace)
	assert.Empty(t, storedData(t, dp))

	result, err := send(t, dp, "help")
	require.NoError(t, err)
	assert.Equal(t, "base", result)
}

func TestHistory_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	fsm := yafsm.NewFSMContext(yafsm.NewMemoryStorage(), conversation)
	history := yascene.NewHistory(fsm, yascene.DefaultHistorySize)

	var expected []yascene.Snapshot

	for i := range 15 {
		state := fmt.Sprintf("step-%d", i)
		data := map[string]any{"step": i}

		require.Nil(t, history.Push(ctx, &state, data))

		if i >= 5 {
			expected = append(expected, yascene.Snapshot{State: &state, Data: data})
		}
	}

	all, err := history.All(ctx)
	require.Nil(t, err)

	if diff := cmp.Diff(expected, all); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	newest, err := history.Pop(ctx)
	require.Nil(t, err)
	assert.Equal(t, "step-14", *newest.State)

	peek, err := history.Get(ctx)
	require.Nil(t, err)
	assert.Equal(t, "step-13", *peek.State)

	require.Nil(t, history.Clear(ctx))

	empty, err := history.Pop(ctx)
	require.Nil(t, err)
	assert.Nil(t, empty)
}

func TestHistory_SnapshotAndRollback(t *testing.T) {
	ctx := context.Background()
	fsm := yafsm.NewFSMContext(yafsm.NewMemoryStorage(), conversation)
	history := yascene.NewHistory(fsm, 3)

	require.Nil(t, fsm.SetState(ctx, yafsm.StateName("first")))
	require.Nil(t, fsm.SetData(ctx, map[string]any{"a": 1}))
	require.Nil(t, history.Snapshot(ctx))

	require.Nil(t, fsm.SetState(ctx, nil))
	require.Nil(t, history.Snapshot(ctx))

	require.Nil(t, fsm.SetState(ctx, yafsm.StateName("third")))
	require.Nil(t, fsm.SetData(ctx, map[string]any{"a": 3}))

	state, err := history.Rollback(ctx)
	require.Nil(t, err)
	assert.Nil(t, state)

	state, err = history.Rollback(ctx)
	require.Nil(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "first", *state)

	data, err := fsm.GetData(ctx)
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"a": 1}, data)

	state, err = history.Rollback(ctx)
	require.Nil(t, err)
	assert.Nil(t, state)

	data, err = fsm.GetData(ctx)
	require.Nil(t, err)
	assert.Empty(t, data)
}
