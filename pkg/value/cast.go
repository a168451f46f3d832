package value

import (
	"fmt"
	"reflect"
)

// CastError reports a typed extraction from a null Value or from a Value
// holding a different runtime type.
type CastError struct {
	From reflect.Type
	To   reflect.Type
	Null bool
}

func (e *CastError) Error() string {
	if e.Null {
		return fmt.Sprintf("cannot cast null value to %s", e.To)
	}
	return fmt.Sprintf("cannot cast value of type %s to %s", e.From, e.To)
}

// Cast returns a deep copy of the payload of v as T. The runtime type must
// be exactly T; no numeric widening or interface satisfaction is applied.
func Cast[T any](v Value) (T, error) {
	var zero T
	to := reflect.TypeFor[T]()
	if v.typ == nil {
		return zero, &CastError{To: to, Null: true}
	}
	if v.typ != to {
		return zero, &CastError{From: v.typ, To: to}
	}
	out, ok := deepCopy(v.payload).(T)
	if !ok {
		return zero, &CastError{From: v.typ, To: to}
	}
	return out, nil
}

// MustCast is Cast for callers that have already checked the type.
func MustCast[T any](v Value) T {
	out, err := Cast[T](v)
	if err != nil {
		panic(err)
	}
	return out
}

// Is reports whether v holds a payload of exactly type T.
func Is[T any](v Value) bool {
	return v.typ != nil && v.typ == reflect.TypeFor[T]()
}
