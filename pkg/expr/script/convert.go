package script

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"

	"go.starlark.net/starlark"

	"github.com/xequation/xequation/pkg/value"
)

// Object carries a Starlark value with no Go-native form: functions,
// classes, modules, sets and dicts with non-string keys. Objects stored in
// a context are frozen and shared between copies.
type Object struct {
	Starlark starlark.Value
}

func (o Object) String() string {
	if o.Starlark == nil {
		return "None"
	}
	return o.Starlark.String()
}

// CloneValue returns o; frozen Starlark values are immutable.
func (o Object) CloneValue() any {
	return o
}

// fromStarlark converts a Starlark value to its Go-native payload.
func fromStarlark(v starlark.Value) any {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.BigInt()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case starlark.Bytes:
		return []byte(x)
	case *starlark.List:
		list := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			list[i] = fromStarlark(x.Index(i))
		}
		return list
	case starlark.Tuple:
		tuple := make(value.Tuple, len(x))
		for i, item := range x {
			tuple[i] = fromStarlark(item)
		}
		return tuple
	case *starlark.Dict:
		dict := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return Object{Starlark: x}
			}
			dict[string(key)] = fromStarlark(item[1])
		}
		return dict
	default:
		return Object{Starlark: v}
	}
}

// toStarlark converts a Go payload back into a Starlark value.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case Object:
		if x.Starlark == nil {
			return starlark.None, nil
		}
		return x.Starlark, nil
	case starlark.Value:
		return x, nil
	case value.Value:
		if x.IsNull() {
			return starlark.None, nil
		}
		return toStarlark(x.Interface())
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case uint64:
		return starlark.MakeUint64(x), nil
	case *big.Int:
		return starlark.MakeBigInt(x), nil
	case float64:
		return starlark.Float(x), nil
	case float32:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []byte:
		return starlark.Bytes(x), nil
	case []any:
		list := make([]starlark.Value, len(x))
		for i, item := range x {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case value.Tuple:
		tuple := make(starlark.Tuple, len(x))
		for i, item := range x {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			tuple[i] = sv
		}
		return tuple, nil
	case value.Pair:
		return toStarlark(value.Tuple{x.First, x.Second})
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(x))
		for _, k := range keys {
			sv, err := toStarlark(x[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return reflectToStarlark(reflect.ValueOf(v))
}

// reflectToStarlark handles the remaining numeric kinds and typed slices
// and string-keyed maps.
func reflectToStarlark(rv reflect.Value) (starlark.Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	case reflect.String:
		return starlark.String(rv.String()), nil
	case reflect.Bool:
		return starlark.Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		list := make([]starlark.Value, rv.Len())
		for i := range list {
			sv, err := toStarlark(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return toStarlark(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return starlark.None, nil
		}
		return toStarlark(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported type: %s", rv.Type())
}
