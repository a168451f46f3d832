package value

import (
	"reflect"
	"strings"
	"sync"
)

// typeOrdinals numbers runtime types in order of first comparison. It
// separates distinct types that share a name and package path, such as
// types declared inside two different functions.
var typeOrdinals = struct {
	sync.Mutex
	next int
	seq  map[reflect.Type]int
}{seq: make(map[reflect.Type]int)}

func typeOrdinal(t reflect.Type) int {
	typeOrdinals.Lock()
	defer typeOrdinals.Unlock()
	if n, ok := typeOrdinals.seq[t]; ok {
		return n
	}
	typeOrdinals.next++
	typeOrdinals.seq[t] = typeOrdinals.next
	return typeOrdinals.next
}

// Equal reports whether a and b are both null, or share a runtime type and
// a projection.
func Equal(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.typ != b.typ {
		return false
	}
	return a.String() == b.String()
}

// Compare orders values by nullness, then runtime type name, then
// projection. Distinct types with the same name never compare equal. Null sorts first. The result is -1, 0 or +1.
func Compare(a, b Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	if a.typ != b.typ {
		if c := strings.Compare(a.typ.String(), b.typ.String()); c != 0 {
			return c
		}
		if c := strings.Compare(a.typ.PkgPath(), b.typ.PkgPath()); c != 0 {
			return c
		}
		if typeOrdinal(a.typ) < typeOrdinal(b.typ) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.String(), b.String())
}

// Less reports whether a orders before b.
func Less(a, b Value) bool {
	return Compare(a, b) < 0
}
