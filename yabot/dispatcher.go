package yabot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/threadsafemap"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yafsm"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/google/uuid"
)

// ErrorEvent is dispatched as KindError when processing of an update fails.
type ErrorEvent struct {
	Update *Update
	Err    error
}

// Options configures a Dispatcher. Zero values select memory storage,
// disabled isolation, the user-in-chat strategy and the default logger.
type Options struct {
	Name       string
	Storage    yafsm.StateStorage
	Isolation  yafsm.EventIsolation
	Strategy   yafsm.Strategy
	Logger     yalogger.Logger
	DisableFSM bool
}

// Dispatcher is the root router. It turns updates into events, binds them to
// an FSM key and resolves them through the router tree.
type Dispatcher struct {
	*Router

	storage    yafsm.StateStorage
	isolation  yafsm.EventIsolation
	strategy   yafsm.Strategy
	log        yalogger.Logger
	disableFSM bool
	workflow   *threadsafemap.ThreadSafeMap[string, any]
}

// NewDispatcher creates a root router with the given options.
//
// Example usage:
//
//	dp := yabot.NewDispatcher(yabot.Options{
//	    Isolation: yafsm.NewMemoryEventIsolation(),
//	    Strategy:  yafsm.StrategyChat,
//	})
//	dp.Message.Register(onStart, yabot.Command("start"))
//
//	result, err := dp.FeedRawUpdate(ctx, bot, payload, nil)
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Name == "" {
		opts.Name = "dispatcher"
	}

	if opts.Storage == nil {
		opts.Storage = yafsm.NewMemoryStorage()
	}

	if opts.Isolation == nil {
		opts.Isolation = yafsm.DisabledEventIsolation{}
	}

	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}

	return &Dispatcher{
		Router:     NewRouter(opts.Name),
		storage:    opts.Storage,
		isolation:  opts.Isolation,
		strategy:   opts.Strategy,
		log:        opts.Logger,
		disableFSM: opts.DisableFSM,
		workflow:   threadsafemap.NewThreadSafeMap[string, any](),
	}
}

func (d *Dispatcher) Storage() yafsm.StateStorage {
	return d.storage
}

func (d *Dispatcher) Isolation() yafsm.EventIsolation {
	return d.isolation
}

func (d *Dispatcher) Strategy() yafsm.Strategy {
	return d.strategy
}

// Set stores workflow data injected into the context of every update.
func (d *Dispatcher) Set(key string, value any) {
	d.workflow.Set(key, value)
}

func (d *Dispatcher) Get(key string) (any, bool) {
	return d.workflow.Get(key)
}

// FeedRawUpdate parses raw and feeds the result.
func (d *Dispatcher) FeedRawUpdate(ctx context.Context, bot Bot, raw []byte, extra map[string]any) (any, error) {
	update, err := ParseUpdate(raw)
	if err != nil {
		return nil, err.WrapWithLog("[DISPATCHER] failed to parse raw update", d.log)
	}

	return d.FeedUpdate(ctx, bot, update, extra)
}

// FeedUpdate processes one update and returns the handler result, or nil
// when nothing handled it. It is safe for concurrent use.
func (d *Dispatcher) FeedUpdate(ctx context.Context, bot Bot, update *Update, extra map[string]any) (any, error) {
	if update == nil {
		return nil, yaerrors.FromError(
			http.StatusBadRequest,
			ErrInvalidUpdate,
			"[DISPATCHER] update is nil",
		)
	}

	kind, event := update.Event()
	if event == nil {
		d.log.Debugf("[DISPATCHER] update %d carries no known event", update.UpdateID)

		return nil, nil
	}

	requestID := uuid.New()
	log := d.log.WithRequestUUID(requestID)

	data := NewContext(d.workflow.Copy())
	data.Merge(extra)
	data.Set(KeyBot, bot)
	data.Set(KeyDispatcher, d)
	data.Set(KeyEventUpdate, update)
	data.Set(KeyRequestID, requestID)

	eventContext := ResolveEventContext(kind, event)
	data.Set(KeyEventContext, eventContext)

	if eventContext.User != nil {
		data.Set(KeyEventFromUser, eventContext.User)

		log = log.WithUserID(eventContext.User.ID)
	}

	if eventContext.Chat != nil {
		data.Set(KeyEventChat, eventContext.Chat)
	}

	data.Set(KeyLogger, log)

	if !d.disableFSM && eventContext.HasIdentity() {
		var botID int64
		if bot != nil {
			botID = bot.ID()
		}

		chatID, userID := d.strategy.Apply(eventContext.ChatID(), eventContext.UserID())
		key := yafsm.NewStorageKey(botID, chatID, userID)

		unlock, err := d.isolation.Lock(ctx, key)
		if err != nil {
			return nil, err.WrapWithLog(fmt.Sprintf("[DISPATCHER] failed to isolate `%s`", key), log)
		}

		defer unlock()

		fsm := yafsm.NewFSMContext(d.storage, key)

		state, err := fsm.GetState(ctx)
		if err != nil {
			return nil, err.WrapWithLog(fmt.Sprintf("[DISPATCHER] failed to read state of `%s`", key), log)
		}

		data.Set(KeyState, fsm)
		data.Set(KeyRawState, state)
		data.Set(KeyFSMStorage, d.storage)
	}

	log.Debugf("[DISPATCHER] feeding update %d as `%s`", update.UpdateID, kind)

	result, err := d.guard(ctx, update, data, func(ctx context.Context, data *Context) (any, error) {
		return d.runUpdateChain(ctx, kind, event, update, data)
	})
	if err != nil {
		return d.dispatchError(ctx, update, err, data)
	}

	if IsUnhandled(result) {
		log.Debugf("[DISPATCHER] update %d is not handled", update.UpdateID)

		return nil, nil
	}

	return result, nil
}

// runUpdateChain runs the update level outer middlewares of every router once,
// root first, and then resolves the event. Update observer handlers serve as
// the fallback for events nobody handled.
func (d *Dispatcher) runUpdateChain(
	ctx context.Context,
	kind EventKind,
	event any,
	update *Update,
	data *Context,
) (any, error) {
	var outer []Middleware

	for _, router := range d.ChainTail() {
		outer = append(outer, router.Update.outerMiddlewares...)
	}

	resolve := func(ctx context.Context, _ any, data *Context) (any, error) {
		result, err := d.PropagateEvent(ctx, kind, event, data)
		if err != nil || !IsUnhandled(result) {
			return result, err
		}

		return d.PropagateEvent(ctx, KindUpdate, update, data)
	}

	return chainMiddleware(resolve, outer...)(ctx, update, data)
}

// guard converts a panic into ErrHandlerPanic so deferred unlocks still run.
func (d *Dispatcher) guard(
	ctx context.Context,
	update *Update,
	data *Context,
	run func(ctx context.Context, data *Context) (any, error),
) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = yaerrors.FromErrorWithLog(
				http.StatusInternalServerError,
				fmt.Errorf("%w: %v", ErrHandlerPanic, recovered),
				fmt.Sprintf("[DISPATCHER] panic while processing update %d", update.UpdateID),
				loggerFrom(data),
			)
		}
	}()

	return run(ctx, data)
}

func (d *Dispatcher) dispatchError(ctx context.Context, update *Update, cause error, data *Context) (any, error) {
	log := loggerFrom(data)

	errorData := data.Clone()
	errorEvent := &ErrorEvent{Update: update, Err: cause}

	result, err := d.guard(ctx, update, errorData, func(ctx context.Context, data *Context) (any, error) {
		return d.PropagateEvent(ctx, KindError, errorEvent, data)
	})
	if err != nil {
		log.Errorf("[DISPATCHER] error handler failed: %v", err)

		return nil, err
	}

	if IsUnhandled(result) {
		log.Errorf("[DISPATCHER] update %d failed: %v", update.UpdateID, cause)

		return nil, cause
	}

	return result, nil
}

// EmitStartup runs startup hooks of every router, root first.
func (d *Dispatcher) EmitStartup(ctx context.Context) yaerrors.Error {
	if err := d.emitLifecycle(ctx, d.lifecycleContext(), true); err != nil {
		return err.WrapWithLog("[DISPATCHER] startup failed", d.log)
	}

	return nil
}

// EmitShutdown runs shutdown hooks and closes isolation and storage. All
// steps run even when one fails.
func (d *Dispatcher) EmitShutdown(ctx context.Context) yaerrors.Error {
	var errs []error

	if err := d.emitLifecycle(ctx, d.lifecycleContext(), false); err != nil {
		errs = append(errs, err)
	}

	if err := d.isolation.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := d.storage.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}

	return yaerrors.FromErrorWithLog(
		http.StatusInternalServerError,
		errors.Join(errs...),
		"[DISPATCHER] shutdown failed",
		d.log,
	)
}

func (d *Dispatcher) lifecycleContext() *Context {
	data := NewContext(d.workflow.Copy())
	data.Set(KeyDispatcher, d)
	data.Set(KeyLogger, d.log)
	data.Set(KeyFSMStorage, d.storage)

	return data
}
