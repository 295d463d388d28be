package specbind

import "maps"

// NativeStore is a backend's own per-request key/value store.
type NativeStore interface {
	Set(key string, value any)
}

// StoreFunc adapts a function to NativeStore.
type StoreFunc func(key string, value any)

// Set implements NativeStore.
func (f StoreFunc) Set(key string, value any) { f(key, value) }

// Context is the mutable per-request mapping exposed on Request.Context.
//
// Writes go through to the backend's native store so native middleware can
// see them. Reads are served from the canonical mapping only; values placed
// in the native store by the backend are not visible here. The asymmetry is
// intentional.
//
// A Context belongs to one request and is not safe for concurrent use.
type Context struct {
	values map[string]any
	native NativeStore
}

// NewContext creates a Context writing through to native. native may be nil.
func NewContext(native NativeStore) *Context {
	return &Context{
		values: make(map[string]any),
		native: native,
	}
}

// Set stores value under key in both the canonical and the native store.
func (c *Context) Set(key string, value any) {
	if c.native != nil {
		c.native.Set(key, value)
	}
	c.values[key] = value
}

// Get returns the value stored under key by Set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Items returns a copy of all values stored by Set.
func (c *Context) Items() map[string]any {
	return maps.Clone(c.values)
}

// Value retrieves a typed value from the context.
func Value[T any](c *Context, key string) (T, bool) {
	val, ok := c.values[key].(T)
	return val, ok
}
