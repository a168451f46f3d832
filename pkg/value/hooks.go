package value

import (
	"fmt"
	"reflect"
	"sync"
)

// Op identifies the Value operation a hook is bracketing.
type Op int

const (
	OpConstruct Op = iota
	OpClone
	OpAssign
	OpMove
	OpDestroy
	OpString
)

var opNames = [...]string{
	OpConstruct: "construct",
	OpClone:     "clone",
	OpAssign:    "assign",
	OpMove:      "move",
	OpDestroy:   "destroy",
	OpString:    "string",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// HookFunc observes one operation on a payload of a registered type.
type HookFunc func(op Op, t reflect.Type)

type hookPair struct {
	before HookFunc
	after  HookFunc
}

// Hooks is a type-keyed registry of before/after callbacks. Registration and
// notification share one mutex; a callback must not register or unregister
// hooks itself.
type Hooks struct {
	mu      sync.Mutex
	entries map[reflect.Type]hookPair
}

// NewHooks creates an empty registry.
func NewHooks() *Hooks {
	return &Hooks{entries: make(map[reflect.Type]hookPair)}
}

// Register installs the callbacks for t. Either callback may be nil.
// A type can be registered once; register again after Unregister.
func (h *Hooks) Register(t reflect.Type, before, after HookFunc) error {
	if t == nil {
		return fmt.Errorf("cannot register hooks for nil type")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries == nil {
		h.entries = make(map[reflect.Type]hookPair)
	}
	if _, exists := h.entries[t]; exists {
		return fmt.Errorf("hooks already registered for type %s", t)
	}
	h.entries[t] = hookPair{before: before, after: after}
	return nil
}

// Unregister removes the callbacks for t and reports whether any existed.
func (h *Hooks) Unregister(t reflect.Type) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.entries[t]
	delete(h.entries, t)
	return exists
}

// Reset drops every registration.
func (h *Hooks) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[reflect.Type]hookPair)
}

// Registered reports whether t has callbacks.
func (h *Hooks) Registered(t reflect.Type) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.entries[t]
	return exists
}

func (h *Hooks) before(op Op, t reflect.Type) {
	h.fire(op, t, true)
}

func (h *Hooks) after(op Op, t reflect.Type) {
	h.fire(op, t, false)
}

func (h *Hooks) fire(op Op, t reflect.Type, before bool) {
	if h == nil || t == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	pair, ok := h.entries[t]
	if !ok {
		return
	}
	fn := pair.after
	if before {
		fn = pair.before
	}
	if fn != nil {
		fn(op, t)
	}
}
