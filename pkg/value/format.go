package value

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Pair renders as "(first, second)".
type Pair struct {
	First  any
	Second any
}

// Tuple is an ordered, fixed collection rendered with parentheses.
type Tuple []any

// project renders a payload. Nested Values render through their own
// String so their hooks fire as well.
func project(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case Value:
		return x.String()
	case *Value:
		if x == nil {
			return "null"
		}
		return x.String()
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case Pair:
		return "(" + project(x.First) + ", " + project(x.Second) + ")"
	case Tuple:
		if len(x) == 1 {
			return "(" + project(x[0]) + ",)"
		}
		return "(" + joinItems(len(x), func(i int) string { return project(x[i]) }) + ")"
	case *big.Int:
		if x == nil {
			return "null"
		}
		return x.String()
	case complex64:
		return formatComplex(complex128(x))
	case complex128:
		return formatComplex(x)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return "'" + rv.String() + "'"
	case reflect.Bool:
		return project(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Complex64, reflect.Complex128:
		return formatComplex(rv.Complex())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		return "[" + joinItems(rv.Len(), func(i int) string { return project(rv.Index(i).Interface()) }) + "]"
	case reflect.Map:
		return projectMap(rv)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "null"
		}
		return project(rv.Elem().Interface())
	}
	return fmt.Sprintf("%+v", v)
}

func projectMap(rv reflect.Value) string {
	type entry struct{ key, val string }
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{
			key: project(iter.Key().Interface()),
			val: project(iter.Value().Interface()),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return "{" + joinItems(len(entries), func(i int) string {
		return entries[i].key + ": " + entries[i].val
	}) + "}"
}

func formatComplex(c complex128) string {
	re := strconv.FormatFloat(real(c), 'g', -1, 64)
	im := imag(c)
	sign := "+"
	if im < 0 {
		sign = "-"
		im = -im
	}
	return "(" + re + " " + sign + " " + strconv.FormatFloat(im, 'g', -1, 64) + "j)"
}

func joinItems(n int, item func(i int) string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item(i))
	}
	return sb.String()
}
