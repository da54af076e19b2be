package yabot

import "errors"

var (
	ErrRouterSelfReference   = errors.New("router can not be attached to itself")
	ErrRouterAlreadyAttached = errors.New("router is already attached")
	ErrRouterCycle           = errors.New("router attachment creates a cycle")
	ErrMissingContextKey     = errors.New("handler requires a missing context key")
	ErrInvalidUpdate         = errors.New("invalid update")
	ErrHandlerPanic          = errors.New("handler panicked")
	ErrUnknownEventKind      = errors.New("unknown event kind")
)
