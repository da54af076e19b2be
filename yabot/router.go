package yabot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yathreadsafeset"
)

// LifecycleFunc runs on dispatcher startup or shutdown.
type LifecycleFunc func(ctx context.Context, data *Context) error

// Router is a node of the routing tree. It owns one Observer per event kind
// and an ordered list of child routers. Topology must be final before the
// first update is fed.
type Router struct {
	Name string

	Message            *Observer
	EditedMessage      *Observer
	ChannelPost        *Observer
	EditedChannelPost  *Observer
	CallbackQuery      *Observer
	InlineQuery        *Observer
	ChosenInlineResult *Observer
	ShippingQuery      *Observer
	PreCheckoutQuery   *Observer
	Poll               *Observer
	PollAnswer         *Observer
	MyChatMember       *Observer
	ChatMember         *Observer
	ChatJoinRequest    *Observer
	MessageReaction    *Observer
	Update             *Observer
	Error              *Observer

	parent     *Router
	subRouters []*Router
	observers  map[EventKind]*Observer
	startup    []LifecycleFunc
	shutdown   []LifecycleFunc
}

// NewRouter creates a detached router.
//
// Example usage:
//
//	router := yabot.NewRouter("profile")
//	router.Message.Register(onProfile, yabot.Command("profile"))
//	_ = dispatcher.IncludeRouter(router)
func NewRouter(name string) *Router {
	router := &Router{
		Name:      name,
		observers: make(map[EventKind]*Observer),
	}

	slots := map[EventKind]**Observer{
		KindMessage:            &router.Message,
		KindEditedMessage:      &router.EditedMessage,
		KindChannelPost:        &router.ChannelPost,
		KindEditedChannelPost:  &router.EditedChannelPost,
		KindCallbackQuery:      &router.CallbackQuery,
		KindInlineQuery:        &router.InlineQuery,
		KindChosenInlineResult: &router.ChosenInlineResult,
		KindShippingQuery:      &router.ShippingQuery,
		KindPreCheckoutQuery:   &router.PreCheckoutQuery,
		KindPoll:               &router.Poll,
		KindPollAnswer:         &router.PollAnswer,
		KindMyChatMember:       &router.MyChatMember,
		KindChatMember:         &router.ChatMember,
		KindChatJoinRequest:    &router.ChatJoinRequest,
		KindMessageReaction:    &router.MessageReaction,
		KindUpdate:             &router.Update,
		KindError:              &router.Error,
	}

	for kind, slot := range slots {
		observer := newObserver(router, kind)

		*slot = observer
		router.observers[kind] = observer
	}

	return router
}

func (r *Router) String() string {
	return fmt.Sprintf("Router(%s)", r.Name)
}

// Observer returns the observer of kind, nil for an unknown kind.
func (r *Router) Observer(kind EventKind) *Observer {
	return r.observers[kind]
}

func (r *Router) Parent() *Router {
	return r.parent
}

func (r *Router) SubRouters() []*Router {
	return append([]*Router(nil), r.subRouters...)
}

// IncludeRouter attaches sub as the last child of r.
//
// Example usage:
//
//	if _, err := root.IncludeRouter(admin); err != nil {
//	    log.Fatalf("bad router tree: %v", err)
//	}
func (r *Router) IncludeRouter(sub *Router) (*Router, yaerrors.Error) {
	if sub == r {
		return nil, yaerrors.FromError(
			http.StatusConflict,
			ErrRouterSelfReference,
			fmt.Sprintf("failed to include %s", sub),
		)
	}

	if sub.parent != nil {
		return nil, yaerrors.FromError(
			http.StatusConflict,
			ErrRouterAlreadyAttached,
			fmt.Sprintf("failed to include %s into %s, it belongs to %s", sub, r, sub.parent),
		)
	}

	for ancestor := r; ancestor != nil; ancestor = ancestor.parent {
		if ancestor == sub {
			return nil, yaerrors.FromError(
				http.StatusConflict,
				ErrRouterCycle,
				fmt.Sprintf("failed to include %s into %s", sub, r),
			)
		}
	}

	sub.parent = r
	r.subRouters = append(r.subRouters, sub)

	return sub, nil
}

// IncludeRouters attaches every router in order and stops at the first error.
func (r *Router) IncludeRouters(subs ...*Router) yaerrors.Error {
	for _, sub := range subs {
		if _, err := r.IncludeRouter(sub); err != nil {
			return err
		}
	}

	return nil
}

// ChainHead returns the routers from the root down to r.
func (r *Router) ChainHead() []*Router {
	var chain []*Router

	for router := r; router != nil; router = router.parent {
		chain = append(chain, router)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain
}

// ChainTail returns r and its descendants in pre-order.
func (r *Router) ChainTail() []*Router {
	chain := []*Router{r}

	for _, sub := range r.subRouters {
		chain = append(chain, sub.ChainTail()...)
	}

	return chain
}

// Startup registers hooks run by Dispatcher.EmitStartup.
func (r *Router) Startup(hooks ...LifecycleFunc) {
	r.startup = append(r.startup, hooks...)
}

// Shutdown registers hooks run by Dispatcher.EmitShutdown.
func (r *Router) Shutdown(hooks ...LifecycleFunc) {
	r.shutdown = append(r.shutdown, hooks...)
}

// PropagateEvent resolves event in r and then in its children in order. The
// first handled result wins; Unhandled is returned when nothing matched.
// Outer middlewares of the kind observer wrap the whole subtree, except for
// KindUpdate whose outer middlewares are run once by the dispatcher.
func (r *Router) PropagateEvent(ctx context.Context, kind EventKind, event any, data *Context) (any, error) {
	observer := r.Observer(kind)
	if observer == nil {
		return nil, yaerrors.FromError(
			http.StatusBadRequest,
			ErrUnknownEventKind,
			fmt.Sprintf("%s can not propagate `%s`", r, kind),
		)
	}

	data = data.Clone()
	data.Set(KeyEventRouter, r)

	propagate := func(ctx context.Context, event any, data *Context) (any, error) {
		return r.propagate(ctx, observer, event, data)
	}

	if kind == KindUpdate {
		return propagate(ctx, event, data)
	}

	return observer.wrapOuter(propagate)(ctx, event, data)
}

func (r *Router) propagate(ctx context.Context, observer *Observer, event any, data *Context) (any, error) {
	result, err := observer.Trigger(ctx, event, data)
	if err != nil || !IsUnhandled(result) {
		return result, err
	}

	for _, sub := range r.subRouters {
		result, err = sub.PropagateEvent(ctx, observer.kind, event, data)
		if err != nil || !IsUnhandled(result) {
			return result, err
		}
	}

	return Unhandled, nil
}

// ResolveUsedUpdateTypes returns the sorted event kinds with at least one
// registration anywhere in the subtree, update and error excluded.
//
// Example usage:
//
//	allowed := dispatcher.ResolveUsedUpdateTypes(yabot.KindPoll)
func (r *Router) ResolveUsedUpdateTypes(skip ...EventKind) []EventKind {
	skipped := yathreadsafeset.NewThreadSafeSet(skip...)
	used := yathreadsafeset.NewThreadSafeSet[EventKind]()

	for _, router := range r.ChainTail() {
		for _, kind := range EventKinds() {
			if skipped.Has(kind) {
				continue
			}

			if len(router.Observer(kind).handlers) > 0 {
				used.Set(kind)
			}
		}
	}

	return yathreadsafeset.Sorted(used)
}

func (r *Router) emitLifecycle(ctx context.Context, data *Context, startup bool) yaerrors.Error {
	for _, router := range r.ChainTail() {
		hooks := router.shutdown
		if startup {
			hooks = router.startup
		}

		scoped := data.Clone()
		scoped.Set(KeyEventRouter, router)

		for _, hook := range hooks {
			if err := hook(ctx, scoped); err != nil {
				return yaerrors.FromError(
					http.StatusInternalServerError,
					err,
					fmt.Sprintf("lifecycle hook of %s failed", router),
				)
			}
		}
	}

	return nil
}
