package yabot_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMessage = `{
	"update_id": 10,
	"message": {
		"message_id": 3,
		"from": {"id": 7, "is_bot": false, "first_name": "Ya", "language_code": "uk"},
		"chat": {"id": -42, "type": "supergroup", "title": "Ya Code"},
		"date": 1726860000,
		"text": "/start"
	}
}`

func TestDispatcher_FeedRawUpdate(t *testing.T) {
	ctx := context.Background()
	bot := fakeBot{id: 1}

	t.Run("[Context] identity and fsm are injected", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})

		var got *yabot.Context

		dp.Message.Register(func(_ context.Context, _ any, data *yabot.Context) (any, error) {
			got = data

			return "started", nil
		}, yabot.Command("start"))

		result, err := dp.FeedRawUpdate(ctx, bot, []byte(rawMessage), map[string]any{"extra": 5})
		require.NoError(t, err)
		assert.Equal(t, "started", result)

		user, _ := yabot.Value[*yabot.User](got, yabot.KeyEventFromUser)
		chat, _ := yabot.Value[*yabot.Chat](got, yabot.KeyEventChat)
		state, _ := yabot.Value[*yafsm.FSMContext](got, yabot.KeyState)
		extra, _ := yabot.Value[int](got, "extra")

		require.NotNil(t, user)
		require.NotNil(t, chat)
		require.NotNil(t, state)

		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, int64(-42), chat.ID)
		assert.Equal(t, yafsm.NewStorageKey(1, -42, 7), state.Key())
		assert.Equal(t, 5, extra)
		assert.True(t, got.Has(yabot.KeyRequestID))
		assert.True(t, got.Has(yabot.KeyLogger))
		assert.True(t, got.Has(yabot.KeyFSMStorage))
		assert.True(t, got.Has(yabot.KeyRawState))
		assert.Same(t, dp, got.Map()[yabot.KeyDispatcher])
	})

	t.Run("[Empty] envelope without an event is tolerated", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		dp.Update.Register(reply("never"))

		result, err := dp.FeedRawUpdate(ctx, bot, []byte(`{"update_id": 5}`), nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("[Invalid] payload is rejected", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})

		_, err := dp.FeedRawUpdate(ctx, bot, []byte(`[1, 2]`), nil)
		assert.ErrorIs(t, err, yabot.ErrInvalidUpdate)

		_, err = dp.FeedUpdate(ctx, bot, nil, nil)
		assert.ErrorIs(t, err, yabot.ErrInvalidUpdate)
	})

	t.Run("[Unhandled] returns nil", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		dp.Message.Register(reply("never"), yabot.TextEq("nope"))

		result, err := dp.FeedRawUpdate(ctx, bot, []byte(rawMessage), nil)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestDispatcher_StateFlow(t *testing.T) {
	ctx := context.Background()
	bot := fakeBot{id: 1}

	form := yafsm.NewStatesGroup("Form", "name")

	dp := yabot.NewDispatcher(yabot.Options{Strategy: yafsm.StrategyChat})

	dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
		state, _ := yabot.Value[*yafsm.FSMContext](data, yabot.KeyState)

		return "asked", state.SetState(ctx, form.State("name"))
	}, yabot.Command("form"))

	dp.Message.Register(func(ctx context.Context, event any, data *yabot.Context) (any, error) {
		state, _ := yabot.Value[*yafsm.FSMContext](data, yabot.KeyState)

		if _, err := state.UpdateData(ctx, map[string]any{"name": event.(*yabot.Message).Text}); err != nil {
			return nil, err
		}

		return "saved", state.SetState(ctx, nil)
	}, yabot.StateIs(form.State("name")))

	result, err := dp.FeedUpdate(ctx, bot, messageUpdate(-42, 7, "/form"), nil)
	require.NoError(t, err)
	assert.Equal(t, "asked", result)

	// Another member of the same chat shares the state under StrategyChat.
	result, err = dp.FeedUpdate(ctx, bot, messageUpdate(-42, 8, "Ya Code"), nil)
	require.NoError(t, err)
	assert.Equal(t, "saved", result)

	key := yafsm.NewStorageKey(1, -42, -42)

	state, stateErr := dp.Storage().GetState(ctx, key)
	require.Nil(t, stateErr)
	assert.Nil(t, state)

	data, dataErr := dp.Storage().GetData(ctx, key)
	require.Nil(t, dataErr)
	assert.Equal(t, map[string]any{"name": "Ya Code"}, data)
}

func TestDispatcher_IdentityFallbacks(t *testing.T) {
	ctx := context.Background()

	var key yafsm.StorageKey

	capture := func(_ context.Context, _ any, data *yabot.Context) (any, error) {
		if state, ok := yabot.Value[*yafsm.FSMContext](data, yabot.KeyState); ok {
			key = state.Key()
		}

		return nil, nil
	}

	dp := yabot.NewDispatcher(yabot.Options{})
	dp.CallbackQuery.Register(capture)
	dp.Poll.Register(func(_ context.Context, _ any, data *yabot.Context) (any, error) {
		return data.Has(yabot.KeyState), nil
	})

	_, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, &yabot.Update{
		UpdateID:      1,
		CallbackQuery: &yabot.CallbackQuery{ID: "q", From: yabot.User{ID: 7}, Data: "x"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, yafsm.NewStorageKey(1, 7, 7), key)

	result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, &yabot.Update{
		UpdateID: 2,
		Poll:     &yabot.Poll{ID: "p", Question: "?"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestDispatcher_DisableFSM(t *testing.T) {
	dp := yabot.NewDispatcher(yabot.Options{DisableFSM: true})
	dp.Message.Register(func(_ context.Context, _ any, data *yabot.Context) (any, error) {
		return data.Has(yabot.KeyState), nil
	})

	result, err := dp.FeedUpdate(context.Background(), fakeBot{id: 1}, messageUpdate(1, 1, "x"), nil)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestDispatcher_UpdateLevel(t *testing.T) {
	ctx := context.Background()

	t.Run("[OuterMiddleware] every router runs once, root first", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		first := yabot.NewRouter("first")
		second := yabot.NewRouter("second")
		require.Nil(t, dp.IncludeRouters(first, second))

		var trace []string

		for _, router := range []*yabot.Router{dp.Router, first, second} {
			name := router.Name

			router.Update.OuterMiddleware(func(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
				trace = append(trace, name)
				data.Set("from_"+name, true)

				return next(ctx, event, data)
			})
		}

		var got *yabot.Context

		second.Message.Register(func(_ context.Context, _ any, data *yabot.Context) (any, error) {
			got = data

			return "second", nil
		})

		result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "x"), nil)
		require.NoError(t, err)

		assert.Equal(t, "second", result)
		assert.Equal(t, []string{"dispatcher", "first", "second"}, trace)
		assert.True(t, got.Has("from_dispatcher"))
		assert.True(t, got.Has("from_second"))
	})

	t.Run("[Fallback] update handlers catch unhandled events", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		dp.Message.Register(reply("message"), yabot.TextEq("hello"))
		dp.Update.Register(yabot.HandlerFor(func(_ context.Context, update *yabot.Update, _ *yabot.Context) (any, error) {
			return update.UpdateID, nil
		}))

		result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "hello"), nil)
		require.NoError(t, err)
		assert.Equal(t, "message", result)

		result, err = dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "other"), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result)
	})

	t.Run("[Workflow] dispatcher data reaches handlers", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		dp.Set("config", "value")

		dp.Message.Register(func(_ context.Context, _ any, data *yabot.Context) (any, error) {
			value, _ := yabot.Value[string](data, "config")

			return value, nil
		})

		value, ok := dp.Get("config")
		require.True(t, ok)
		assert.Equal(t, "value", value)

		result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "x"), nil)
		require.NoError(t, err)
		assert.Equal(t, "value", result)
	})
}

func TestDispatcher_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	failing := func(context.Context, any, *yabot.Context) (any, error) {
		return nil, boom
	}

	t.Run("[ErrorEvent] error handlers recover", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		child := yabot.NewRouter("child")
		require.Nil(t, dp.IncludeRouters(child))

		child.Message.Register(failing)
		child.Error.Register(yabot.HandlerFor(func(_ context.Context, event *yabot.ErrorEvent, _ *yabot.Context) (any, error) {
			return "recovered from " + event.Err.Error(), nil
		}), yabot.ErrorIs(boom))

		result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "x"), nil)
		require.NoError(t, err)
		assert.Equal(t, "recovered from boom", result)
	})

	t.Run("[Unhandled] the original error is returned", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{})
		dp.Message.Register(failing)
		dp.Error.Register(reply("never"), yabot.ErrorContains("other"))

		_, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "x"), nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("[Panic] becomes an error and releases the lock", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{Isolation: yafsm.NewMemoryEventIsolation()})
		dp.Message.Register(func(context.Context, any, *yabot.Context) (any, error) {
			panic("unexpected")
		}, yabot.TextEq("panic"))
		dp.Message.Register(reply("ok"))

		_, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(1, 1, "panic"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, yabot.ErrHandlerPanic)

		timeout, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		result, err := dp.FeedUpdate(timeout, fakeBot{id: 1}, messageUpdate(1, 1, "again"), nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})
}

func TestDispatcher_Isolation(t *testing.T) {
	ctx := context.Background()

	t.Run("[SameKey] updates are serialised", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{Isolation: yafsm.NewMemoryEventIsolation()})

		var active, peak atomic.Int32

		dp.Message.Register(func(context.Context, any, *yabot.Context) (any, error) {
			current := active.Add(1)
			defer active.Add(-1)

			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}

			time.Sleep(2 * time.Millisecond)

			return nil, nil
		})

		var wg sync.WaitGroup

		for range 10 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(-42, 7, "x"), nil)
				assert.NoError(t, err)
			}()
		}

		wg.Wait()

		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("[SameKey] updates run in arrival order", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{Isolation: yafsm.NewMemoryEventIsolation()})

		var (
			mu    sync.Mutex
			trace []string
		)

		record := func(step string) {
			mu.Lock()
			defer mu.Unlock()

			trace = append(trace, step)
		}

		firstStarted := make(chan struct{})
		releaseFirst := make(chan struct{})

		dp.Message.Register(func(_ context.Context, event any, _ *yabot.Context) (any, error) {
			text := event.(*yabot.Message).Text

			record(text + ":start")

			if text == "E1" {
				close(firstStarted)
				<-releaseFirst
			}

			record(text + ":end")

			return text, nil
		})

		results := make(chan any, 2)

		go func() {
			result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(-42, 7, "E1"), nil)
			assert.NoError(t, err)
			results <- result
		}()

		<-firstStarted

		go func() {
			result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(-42, 7, "E2"), nil)
			assert.NoError(t, err)
			results <- result
		}()

		// E2 is waiting on the same key while E1 holds it.
		time.Sleep(10 * time.Millisecond)
		close(releaseFirst)

		assert.Equal(t, "E1", <-results)
		assert.Equal(t, "E2", <-results)

		mu.Lock()
		defer mu.Unlock()

		assert.Equal(t, []string{"E1:start", "E1:end", "E2:start", "E2:end"}, trace)
	})

	t.Run("[DifferentKeys] updates interleave", func(t *testing.T) {
		dp := yabot.NewDispatcher(yabot.Options{Isolation: yafsm.NewMemoryEventIsolation()})

		secondStarted := make(chan struct{})

		dp.Message.Register(func(ctx context.Context, _ any, data *yabot.Context) (any, error) {
			user, _ := yabot.Value[*yabot.User](data, yabot.KeyEventFromUser)

			if user.ID == 2 {
				close(secondStarted)

				return "second", nil
			}

			select {
			case <-secondStarted:
				return "first", nil
			case <-time.After(time.Second):
				return nil, errors.New("second update was blocked")
			}
		})

		done := make(chan error, 1)

		go func() {
			_, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(-42, 1, "x"), nil)
			done <- err
		}()

		result, err := dp.FeedUpdate(ctx, fakeBot{id: 1}, messageUpdate(-42, 2, "x"), nil)
		require.NoError(t, err)
		assert.Equal(t, "second", result)

		require.NoError(t, <-done)
	})
}

func TestDispatcher_Lifecycle(t *testing.T) {
	ctx := context.Background()

	dp := yabot.NewDispatcher(yabot.Options{})
	child := yabot.NewRouter("child")
	require.Nil(t, dp.IncludeRouters(child))

	var trace []string

	hook := func(name string) yabot.LifecycleFunc {
		return func(_ context.Context, data *yabot.Context) error {
			router, _ := yabot.Value[*yabot.Router](data, yabot.KeyEventRouter)
			trace = append(trace, name+"@"+router.Name)

			return nil
		}
	}

	dp.Startup(hook("startup"))
	child.Startup(hook("startup"))
	dp.Shutdown(hook("shutdown"))
	child.Shutdown(hook("shutdown"))

	require.Nil(t, dp.EmitStartup(ctx))
	require.Nil(t, dp.EmitShutdown(ctx))

	assert.Equal(t, []string{
		"startup@dispatcher",
		"startup@child",
		"shutdown@dispatcher",
		"shutdown@child",
	}, trace)

	t.Run("[Failure] hook errors are reported", func(t *testing.T) {
		broken := yabot.NewDispatcher(yabot.Options{})
		broken.Startup(func(context.Context, *yabot.Context) error {
			return errors.New("no database")
		})

		err := broken.EmitStartup(ctx)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "no database")
	})
}
