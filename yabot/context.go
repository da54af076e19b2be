package yabot

import (
	"maps"
	"slices"
)

// Well known context keys.
const (
	KeyBot           = "bot"
	KeyDispatcher    = "dispatcher"
	KeyEventUpdate   = "event_update"
	KeyEventContext  = "event_context"
	KeyEventFromUser = "event_from_user"
	KeyEventChat     = "event_chat"
	KeyEventRouter   = "event_router"
	KeyState         = "state"
	KeyRawState      = "raw_state"
	KeyFSMStorage    = "fsm_storage"
	KeyLogger        = "logger"
	KeyHandler       = "handler"
	KeyScenes        = "scenes"
	KeyScene         = "scene"
	KeyLocale        = "locale"
	KeyRequestID     = "request_id"

	// Keys injected by built-in filters.
	KeyMatch          = "match"
	KeyCommand        = "command"
	KeyCallbackSuffix = "callback_suffix"
)

// Context is the ordered key-value bag threaded through middlewares, filters
// and handlers of one update. It is not safe for concurrent use; every update
// owns its own Context and filters run on clones.
type Context struct {
	keys   []string
	values map[string]any
}

// NewContext builds a Context from values. Keys are inserted in sorted order
// so the result does not depend on map iteration.
func NewContext(values map[string]any) *Context {
	data := &Context{
		keys:   make([]string, 0, len(values)),
		values: make(map[string]any, len(values)),
	}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		data.Set(key, values[key])
	}

	return data
}

// Set stores value, keeping the original position of an existing key.
func (c *Context) Set(key string, value any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}

	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}

	c.values[key] = value
}

func (c *Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}

	value, ok := c.values[key]

	return value, ok
}

func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)

	return ok
}

func (c *Context) Delete(key string) {
	if _, ok := c.values[key]; !ok {
		return
	}

	delete(c.values, key)

	c.keys = slices.DeleteFunc(c.keys, func(existing string) bool {
		return existing == key
	})
}

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}

	return slices.Clone(c.keys)
}

func (c *Context) Len() int {
	if c == nil {
		return 0
	}

	return len(c.keys)
}

// Merge sets every entry of values. Keys are applied in sorted order.
func (c *Context) Merge(values map[string]any) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		c.Set(key, values[key])
	}
}

// Clone returns a shallow copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return NewContext(nil)
	}

	return &Context{
		keys:   slices.Clone(c.keys),
		values: maps.Clone(c.values),
	}
}

// Only returns a Context holding just keys, in the given order, and the keys
// that were missing.
func (c *Context) Only(keys ...string) (*Context, []string) {
	result := NewContext(nil)

	var missing []string

	for _, key := range keys {
		value, ok := c.Get(key)
		if !ok {
			missing = append(missing, key)

			continue
		}

		result.Set(key, value)
	}

	return result, missing
}

// Map returns a copy of the entries.
func (c *Context) Map() map[string]any {
	if c == nil {
		return map[string]any{}
	}

	return maps.Clone(c.values)
}

// Value returns the entry under key converted to T.
//
// Example:
//
//	user, ok := yabot.Value[*yabot.User](data, yabot.KeyEventFromUser)
func Value[T any](data *Context, key string) (T, bool) {
	var zero T

	raw, ok := data.Get(key)
	if !ok {
		return zero, false
	}

	value, ok := raw.(T)
	if !ok {
		return zero, false
	}

	return value, true
}
