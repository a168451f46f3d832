package value

import (
	"math/big"
	"reflect"
)

// Cloner is implemented by payloads that know how to copy themselves, or
// that are immutable and return themselves. CloneValue must return a value
// of the receiver's type.
//
// Structs are copied field by field, but only exported fields are copied
// deeply. A struct whose unexported fields hold slices, maps or pointers
// shares them with its copies unless it implements Cloner.
type Cloner interface {
	CloneValue() any
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Cloner:
		return x.CloneValue()
	case *big.Int:
		if x == nil {
			return x
		}
		return new(big.Int).Set(x)
	}
	return copyValue(reflect.ValueOf(v)).Interface()
}

func copyValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyValue(rv.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyValue(rv.Index(i)))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyValue(iter.Value()))
		}
		return out
	case reflect.Struct:
		if rv.CanInterface() {
			if c, ok := rv.Interface().(Cloner); ok {
				return reflect.ValueOf(c.CloneValue())
			}
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			out.Field(i).Set(copyValue(rv.Field(i)))
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return rv
		}
		if rv.CanInterface() {
			switch x := rv.Interface().(type) {
			case Cloner:
				return reflect.ValueOf(x.CloneValue())
			case *big.Int:
				return reflect.ValueOf(new(big.Int).Set(x))
			}
		}
		out := reflect.New(rv.Type().Elem())
		out.Elem().Set(copyValue(rv.Elem()))
		return out
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		inner := rv.Elem()
		if inner.CanInterface() {
			if c, ok := inner.Interface().(Cloner); ok {
				out := reflect.New(rv.Type()).Elem()
				out.Set(reflect.ValueOf(c.CloneValue()))
				return out
			}
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(copyValue(inner))
		return out
	}
	return rv
}
