package expr

import (
	"sort"
	"sync"

	"github.com/xequation/xequation/pkg/value"
)

// Context is a named-variable store backing evaluation. Iteration order is
// not significant; Keys returns names sorted.
type Context struct {
	mu     sync.RWMutex
	vars   map[string]value.Value
	hooks  *value.Hooks
	engine Engine
}

// NewContext creates an empty context whose values report to hooks.
func NewContext(hooks *value.Hooks) *Context {
	return &Context{
		vars:  make(map[string]value.Value),
		hooks: hooks,
	}
}

// Hooks returns the registry values in this context report to.
func (c *Context) Hooks() *value.Hooks {
	return c.hooks
}

// Bind attaches the engine used by Parse, Exec and Eval.
func (c *Context) Bind(engine Engine) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = engine
	return c
}

// Get returns the value bound to name, or the null Value when absent.
func (c *Context) Get(name string) value.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[name]
	if !ok {
		return value.Null()
	}
	return v
}

// Contains reports whether name is bound.
func (c *Context) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vars[name]
	return ok
}

// Set binds name to v, replacing any previous binding.
func (c *Context) Set(name string, v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.vars[name]; ok {
		old.Release()
	}
	c.vars[name] = v
}

// Remove unbinds name and reports whether it was bound.
func (c *Context) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vars[name]
	if !ok {
		return false
	}
	delete(c.vars, name)
	v.Release()
	return true
}

// Clear removes every binding.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range c.vars {
		v.Release()
		delete(c.vars, name)
	}
}

// Keys returns the bound names in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of bindings.
func (c *Context) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vars)
}

// Empty reports whether the context has no bindings.
func (c *Context) Empty() bool {
	return c.Size() == 0
}

// Snapshot returns deep copies of every binding.
func (c *Context) Snapshot() map[string]value.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]value.Value, len(c.vars))
	for k, v := range c.vars {
		out[k] = v.Clone()
	}
	return out
}

// Range calls fn for each binding until fn returns false. The values are
// the stored ones, not copies, and must not be modified.
func (c *Context) Range(fn func(name string, v value.Value) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.vars {
		if !fn(k, v) {
			return
		}
	}
}

// Parse parses code with the bound engine.
func (c *Context) Parse(code string) (ParseResult, error) {
	engine := c.boundEngine()
	if engine == nil {
		return ParseResult{}, NewParseError(ParseErrUnsupported, "no engine bound to context")
	}
	return engine.Parse(code)
}

// Exec runs code against this context with the bound engine.
func (c *Context) Exec(code string) ExecResult {
	engine := c.boundEngine()
	if engine == nil {
		return ExecResult{Status: StatusValueError, Message: "no engine bound to context"}
	}
	return engine.Exec(code, c)
}

// Eval evaluates code against this context with the bound engine.
func (c *Context) Eval(code string) EvalResult {
	engine := c.boundEngine()
	if engine == nil {
		return EvalResult{Status: StatusValueError, Message: "no engine bound to context"}
	}
	return engine.Eval(code, c)
}

func (c *Context) boundEngine() Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}
