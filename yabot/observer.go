package yabot

import (
	"context"
	"slices"
	"sync"

	"github.com/YaCodeDev/GoYaBotKit/yalogger"
)

var defaultLogger = sync.OnceValue(yalogger.NewLogger)

// loggerFrom returns the update logger or a process default.
func loggerFrom(data *Context) yalogger.Logger {
	if log, ok := Value[yalogger.Logger](data, KeyLogger); ok && log != nil {
		return log
	}

	return defaultLogger()
}

// Observer holds the ordered registrations of one event kind in one router.
type Observer struct {
	kind             EventKind
	router           *Router
	handlers         []*HandlerObject
	filters          []Filter
	middlewares      []Middleware
	outerMiddlewares []Middleware
}

func newObserver(router *Router, kind EventKind) *Observer {
	return &Observer{
		kind:   kind,
		router: router,
	}
}

func (o *Observer) Kind() EventKind {
	return o.kind
}

// Register appends a handler guarded by filters. Filters run left to right.
//
// Example:
//
//	router.Message.Register(onStart, yabot.Command("start")).WithFlag("chat_action", "typing")
func (o *Observer) Register(handler HandlerFunc, filters ...Filter) *HandlerObject {
	object := &HandlerObject{
		Handler: handler,
		Filters: slices.Clone(filters),
	}

	o.handlers = append(o.handlers, object)

	return object
}

// Filter adds observer level filters evaluated before any registration.
func (o *Observer) Filter(filters ...Filter) {
	o.filters = append(o.filters, filters...)
}

// Middleware adds inner middlewares. They wrap matched handlers of this
// observer and of the same kind in every descendant router.
func (o *Observer) Middleware(middlewares ...Middleware) {
	o.middlewares = append(o.middlewares, middlewares...)
}

// OuterMiddleware adds middlewares that wrap propagation through this router
// and its descendants before any filter runs. For KindUpdate they run once per
// update.
func (o *Observer) OuterMiddleware(middlewares ...Middleware) {
	o.outerMiddlewares = append(o.outerMiddlewares, middlewares...)
}

func (o *Observer) Handlers() []*HandlerObject {
	return slices.Clone(o.handlers)
}

// Trigger runs the first registration whose filters match. It returns
// Unhandled when none did.
func (o *Observer) Trigger(ctx context.Context, event any, data *Context) (any, error) {
	log := loggerFrom(data)

	if len(o.filters) > 0 {
		scratch := data.Clone()

		outcome, err := evaluateChain(ctx, o.filters, event, scratch)
		if err != nil {
			log.Warnf("observer %s filter failed: %v", o.kind, err)

			return Unhandled, nil
		}

		if !outcome.IsMatched() {
			return Unhandled, nil
		}

		data = scratch
	}

	for index, handler := range o.handlers {
		scratch := data.Clone()

		outcome, err := evaluateChain(ctx, handler.Filters, event, scratch)
		if err != nil {
			log.Warnf("filter of %s handler #%d failed: %v", o.kind, index, err)

			continue
		}

		if outcome.IsDeferred() {
			return Unhandled, nil
		}

		if !outcome.IsMatched() {
			continue
		}

		scratch.Set(KeyHandler, handler)

		result, err := chainMiddleware(handler.call, o.collectMiddlewares()...)(ctx, event, scratch)
		if err != nil {
			return nil, err
		}

		if isSkip(result) {
			continue
		}

		return result, nil
	}

	return Unhandled, nil
}

// collectMiddlewares returns the inner middlewares of this kind from the root
// router down to this one.
func (o *Observer) collectMiddlewares() []Middleware {
	if o.router == nil {
		return o.middlewares
	}

	var middlewares []Middleware

	for _, router := range o.router.ChainHead() {
		middlewares = append(middlewares, router.Observer(o.kind).middlewares...)
	}

	return middlewares
}

func (o *Observer) wrapOuter(final HandlerFunc) HandlerFunc {
	return chainMiddleware(final, o.outerMiddlewares...)
}
