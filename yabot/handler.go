package yabot

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// HandlerFunc processes one event. Returning Skip passes the event to the next
// registration of the same observer.
type HandlerFunc func(ctx context.Context, event any, data *Context) (any, error)

// Middleware wraps a HandlerFunc. Not calling next short-circuits the chain.
//
// Example:
//
//	func timing(ctx context.Context, event any, data *yabot.Context, next yabot.HandlerFunc) (any, error) {
//	    started := time.Now()
//	    defer func() { log.Debugf("handled in %s", time.Since(started)) }()
//	    return next(ctx, event, data)
//	}
type Middleware func(ctx context.Context, event any, data *Context, next HandlerFunc) (any, error)

// Sentinel is a control-flow handler result.
type Sentinel struct {
	name string
}

func (s *Sentinel) String() string {
	return s.name
}

var (
	// Skip makes the observer try the next registration.
	Skip = &Sentinel{name: "skip"}
	// Unhandled reports that nothing matched. It differs from a nil result.
	Unhandled = &Sentinel{name: "unhandled"}
)

// IsUnhandled reports whether result is the Unhandled sentinel.
func IsUnhandled(result any) bool {
	sentinel, ok := result.(*Sentinel)

	return ok && sentinel == Unhandled
}

func isSkip(result any) bool {
	sentinel, ok := result.(*Sentinel)

	return ok && sentinel == Skip
}

// HandlerFor wraps a handler over a concrete event type. Other event types are skipped.
//
// Example:
//
//	router.Message.Register(yabot.HandlerFor(func(ctx context.Context, m *yabot.Message, data *yabot.Context) (any, error) {
//	    return m.Answer("hi"), nil
//	}))
func HandlerFor[T any](fn func(ctx context.Context, event T, data *Context) (any, error)) HandlerFunc {
	return func(ctx context.Context, event any, data *Context) (any, error) {
		typed, ok := event.(T)
		if !ok {
			return Skip, nil
		}

		return fn(ctx, typed, data)
	}
}

// HandlerObject is one registration of an observer.
type HandlerObject struct {
	Handler  HandlerFunc
	Filters  []Filter
	flags    map[string]any
	requires []string
}

// WithFlag attaches metadata readable by middlewares through GetFlag.
func (h *HandlerObject) WithFlag(key string, value any) *HandlerObject {
	if h.flags == nil {
		h.flags = make(map[string]any)
	}

	h.flags[key] = value

	return h
}

// Requires restricts the context handed to the handler to keys. A missing key
// fails the call with ErrMissingContextKey.
//
// Example:
//
//	router.Message.Register(onName, yabot.StateIs(form.State("name"))).
//	    Requires(yabot.KeyState, yabot.KeyEventFromUser)
func (h *HandlerObject) Requires(keys ...string) *HandlerObject {
	h.requires = append(h.requires, keys...)

	return h
}

func (h *HandlerObject) Flags() map[string]any {
	return maps.Clone(h.flags)
}

func (h *HandlerObject) Flag(key string) (any, bool) {
	value, ok := h.flags[key]

	return value, ok
}

func (h *HandlerObject) RequiredKeys() []string {
	return slices.Clone(h.requires)
}

// call invokes the handler with the declared subset of data.
func (h *HandlerObject) call(ctx context.Context, event any, data *Context) (any, error) {
	if len(h.requires) == 0 {
		return h.Handler(ctx, event, data)
	}

	scoped, missing := data.Only(h.requires...)
	if len(missing) > 0 {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrMissingContextKey,
			fmt.Sprintf("handler requires `%s`", strings.Join(missing, "`, `")),
		)
	}

	return h.Handler(ctx, event, scoped)
}

// GetFlag reads a flag of the handler being executed.
//
// Example:
//
//	if value, ok := yabot.GetFlag(data, "rate_limit"); ok { ... }
func GetFlag(data *Context, key string) (any, bool) {
	handler, ok := Value[*HandlerObject](data, KeyHandler)
	if !ok || handler == nil {
		return nil, false
	}

	return handler.Flag(key)
}

// chainMiddleware wraps final so that middlewares[0] runs first.
func chainMiddleware(final HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		middleware := middlewares[i]
		next := final

		final = func(ctx context.Context, event any, data *Context) (any, error) {
			return middleware(ctx, event, data, next)
		}
	}

	return final
}
