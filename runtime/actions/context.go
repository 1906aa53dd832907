package actions

import "sync"

// Context is the per-execution key-value map actions use to pass values
// between steps. The executor creates one Context per Execute call, stores a
// step's return value under its descriptor's ContextKey, and later steps read
// the value back through their handler. A Context is owned by a single
// execution and discarded afterwards; the mutex only guards against actions
// that spawn goroutines of their own.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns an empty action context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Get retrieves the value stored under key. The boolean reports whether the
// key is present.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, overwriting any existing entry.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Keys returns the currently stored keys in unspecified order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}
