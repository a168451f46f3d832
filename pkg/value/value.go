package value

import (
	"reflect"
)

// Value is a null-able container for one payload of any type.
//
// Copying a Value struct with = shares the payload; use Clone for an
// independent deep copy and Take to move the payload out.
type Value struct {
	payload any
	typ     reflect.Type
	hooks   *Hooks
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// New wraps a deep copy of v. A nil v yields the null Value.
func (h *Hooks) New(v any) Value {
	if v == nil {
		return Value{hooks: h}
	}
	if inner, ok := v.(Value); ok {
		return inner.cloneWith(h)
	}
	t := reflect.TypeOf(v)
	h.before(OpConstruct, t)
	out := Value{payload: deepCopy(v), typ: t, hooks: h}
	h.after(OpConstruct, t)
	return out
}

// Of wraps a deep copy of v with its static type recorded as the runtime
// type, which matters when T is an interface.
func Of[T any](h *Hooks, v T) Value {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Interface {
		return h.New(v)
	}
	h.before(OpConstruct, t)
	out := Value{payload: deepCopy(v), typ: t, hooks: h}
	h.after(OpConstruct, t)
	return out
}

// IsNull reports whether v holds no payload.
func (v Value) IsNull() bool {
	return v.typ == nil
}

// Type returns the runtime type of the payload, or nil for the null Value.
func (v Value) Type() reflect.Type {
	return v.typ
}

// TypeName returns the payload type name, "null" for the null Value.
func (v Value) TypeName() string {
	if v.typ == nil {
		return "null"
	}
	return v.typ.String()
}

// Hooks returns the registry v reports to.
func (v Value) Hooks() *Hooks {
	return v.hooks
}

// Interface returns the payload without copying it. Callers must treat the
// result as read-only.
func (v Value) Interface() any {
	return v.payload
}

// Clone returns an independent deep copy of v.
func (v Value) Clone() Value {
	return v.cloneWith(v.hooks)
}

// CloneValue implements Cloner so Values nested in containers are cloned
// with their hooks.
func (v Value) CloneValue() any {
	return v.Clone()
}

func (v Value) cloneWith(h *Hooks) Value {
	if v.typ == nil {
		return Value{hooks: h}
	}
	h.before(OpClone, v.typ)
	out := Value{payload: deepCopy(v.payload), typ: v.typ, hooks: h}
	h.after(OpClone, v.typ)
	return out
}

// Take moves the payload into the returned Value and leaves v null.
func (v *Value) Take() Value {
	if v.typ == nil {
		return Value{hooks: v.hooks}
	}
	t, h := v.typ, v.hooks
	h.before(OpMove, t)
	out := Value{payload: v.payload, typ: t, hooks: h}
	v.payload, v.typ = nil, nil
	h.after(OpMove, t)
	return out
}

// Assign replaces the payload of v with a deep copy of other's payload.
// Hooks fire for the incoming type.
func (v *Value) Assign(other Value) {
	if other.typ == nil {
		v.payload, v.typ = nil, nil
		return
	}
	h := v.hooks
	if h == nil {
		h = other.hooks
	}
	h.before(OpAssign, other.typ)
	v.payload, v.typ, v.hooks = deepCopy(other.payload), other.typ, h
	h.after(OpAssign, other.typ)
}

// Release drops the payload and leaves v null.
func (v *Value) Release() {
	if v.typ == nil {
		return
	}
	t := v.typ
	v.hooks.before(OpDestroy, t)
	v.payload, v.typ = nil, nil
	v.hooks.after(OpDestroy, t)
}

// String returns the projection of v: "null" for the null Value, otherwise
// a deterministic rendering of the payload.
func (v Value) String() string {
	if v.typ == nil {
		return "null"
	}
	v.hooks.before(OpString, v.typ)
	s := project(v.payload)
	v.hooks.after(OpString, v.typ)
	return s
}
