// Package value provides Value, the type-erased container that carries
// equation results between the expression engine, the variable context and
// the equation manager.
//
// A Value is either null or owns exactly one payload together with the
// payload's runtime type. Two values are equal when both are null, or when
// they share a runtime type and render to the same projection string:
//
//	a := hooks.New(int64(16))
//	b := hooks.New(int64(16))
//	value.Equal(a, b) // true
//	value.Equal(a, hooks.New("16")) // false, types differ
//
// Hooks is the registry of per-type before/after callbacks. Every Value
// operation that touches a payload (construct, clone, assign, move, destroy,
// string) fires the callbacks registered for the payload type exactly once.
// A nil *Hooks is valid and fires nothing.
package value
