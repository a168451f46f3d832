package value

import (
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) hook(prefix string) HookFunc {
	return func(op Op, t reflect.Type) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, prefix+":"+op.String())
	}
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestValue_Null(t *testing.T) {
	v := Null()
	if !v.IsNull() {
		t.Fatal("Expected null value")
	}
	if v.Type() != nil {
		t.Errorf("Expected nil type, got %v", v.Type())
	}
	if v.String() != "null" {
		t.Errorf("Expected 'null', got %q", v.String())
	}

	var hooks *Hooks
	if !hooks.New(nil).IsNull() {
		t.Error("Expected New(nil) to be null")
	}
}

func TestValue_String(t *testing.T) {
	var hooks *Hooks
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int64", int64(16), "16"},
		{"negative int", -3, "-3"},
		{"float", 2.5, "2.5"},
		{"string", "abc", "'abc'"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"list", []any{1, "a"}, "[1, 'a']"},
		{"empty list", []int{}, "[]"},
		{"nested list", [][]int{{1}, {2, 3}}, "[[1], [2, 3]]"},
		{"map", map[string]int{"b": 2, "a": 1}, "{'a': 1, 'b': 2}"},
		{"empty map", map[string]int{}, "{}"},
		{"complex negative imag", complex(1, -2), "(1 - 2j)"},
		{"complex positive imag", complex(1.5, 2), "(1.5 + 2j)"},
		{"pair", Pair{First: 1, Second: "x"}, "(1, 'x')"},
		{"single tuple", Tuple{1}, "(1,)"},
		{"tuple", Tuple{1, 2.5, "s"}, "(1, 2.5, 's')"},
		{"nested value", []any{hooks.New("in")}, "['in']"},
		{"nil pointer", (*int)(nil), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hooks.New(tt.in).String()
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValue_Equal(t *testing.T) {
	var hooks *Hooks
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"both null", Null(), Null(), true},
		{"null and value", Null(), hooks.New(1), false},
		{"same type same projection", hooks.New(int64(16)), hooks.New(int64(16)), true},
		{"same type different projection", hooks.New(int64(16)), hooks.New(int64(17)), false},
		{"different type same projection", hooks.New(int64(1)), hooks.New(int32(1)), false},
		{"int and string", hooks.New(1), hooks.New("1"), false},
		{"lists", hooks.New([]int{1, 2}), hooks.New([]int{1, 2}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Expected Equal=%v, got %v", tt.want, got)
			}
			if got := Equal(tt.b, tt.a); got != tt.want {
				t.Errorf("Expected symmetric Equal=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestValue_CompareOrdersNullFirst(t *testing.T) {
	var hooks *Hooks
	values := []Value{
		hooks.New("b"),
		hooks.New(int64(2)),
		Null(),
		hooks.New("a"),
		hooks.New(int64(10)),
	}
	sort.SliceStable(values, func(i, j int) bool { return Less(values[i], values[j]) })

	if !values[0].IsNull() {
		t.Fatalf("Expected null first, got %s", values[0])
	}
	// int64 < string by type name, then by projection
	want := []string{"null", "10", "2", "'a'", "'b'"}
	for i, v := range values {
		if v.String() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], v.String())
		}
	}

	if Compare(hooks.New(1), hooks.New(1)) != 0 {
		t.Error("Expected equal values to compare as 0")
	}
}

func TestCast(t *testing.T) {
	var hooks *Hooks
	v := hooks.New(int64(16))

	got, err := Cast[int64](v)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != 16 {
		t.Errorf("Expected 16, got %d", got)
	}

	_, err = Cast[int](v)
	var castErr *CastError
	if !errors.As(err, &castErr) {
		t.Fatalf("Expected CastError, got %v", err)
	}
	if castErr.Null {
		t.Error("Expected non-null cast error")
	}
	if castErr.From != reflect.TypeFor[int64]() || castErr.To != reflect.TypeFor[int]() {
		t.Errorf("Unexpected cast error types: %v -> %v", castErr.From, castErr.To)
	}
	if v.String() != "16" || !Is[int64](v) {
		t.Error("Expected failed cast to leave value unmodified")
	}

	_, err = Cast[string](Null())
	if !errors.As(err, &castErr) || !castErr.Null {
		t.Fatalf("Expected null CastError, got %v", err)
	}
}

func TestCast_ReturnsCopy(t *testing.T) {
	var hooks *Hooks
	v := hooks.New([]int{1, 2, 3})

	out, err := Cast[[]int](v)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out[0] = 99

	if v.String() != "[1, 2, 3]" {
		t.Errorf("Expected payload unchanged, got %s", v.String())
	}
}

func TestValue_ConstructDeepCopies(t *testing.T) {
	var hooks *Hooks
	src := map[string][]int{"a": {1}}
	v := hooks.New(src)
	src["a"][0] = 42
	src["b"] = []int{7}

	if v.String() != "{'a': [1]}" {
		t.Errorf("Expected construct to deep copy, got %s", v.String())
	}

	c := v.Clone()
	if !Equal(v, c) {
		t.Errorf("Expected clone to equal original")
	}
}

type ledgerRow struct {
	Items []int
	Tags  map[string]string
	Next  *ledgerRow
}

func TestValue_ConstructDeepCopiesStructs(t *testing.T) {
	var hooks *Hooks
	src := ledgerRow{
		Items: []int{1, 2},
		Tags:  map[string]string{"k": "v"},
		Next:  &ledgerRow{Items: []int{3}},
	}
	v := hooks.New(src)
	src.Items[0] = 99
	src.Tags["k"] = "mutated"
	src.Next.Items[0] = 99

	got, err := Cast[ledgerRow](v)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Items[0] != 1 || got.Tags["k"] != "v" || got.Next.Items[0] != 3 {
		t.Errorf("Expected construct to deep copy struct fields, got %+v", got)
	}

	c := v.Clone()
	cast, err := Cast[ledgerRow](c)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	cast.Items[1] = 77
	cast.Tags["k"] = "changed"

	again, _ := Cast[ledgerRow](v)
	if again.Items[1] != 2 {
		t.Errorf("Expected original items untouched, got %v", again.Items)
	}
	if again.Tags["k"] != "v" {
		t.Errorf("Expected original tags untouched, got %v", again.Tags)
	}
}

func TestValue_ConstructDeepCopiesPair(t *testing.T) {
	var hooks *Hooks
	first := []int{1}
	v := hooks.New(Pair{First: first, Second: 2})
	c := v.Clone()
	first[0] = 5

	if v.String() != "([1], 2)" {
		t.Errorf("Expected ([1], 2), got %s", v.String())
	}

	p, err := Cast[Pair](c)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	p.First.([]int)[0] = 9
	if c.String() != "([1], 2)" {
		t.Errorf("Expected clone unaffected by cast mutation, got %s", c.String())
	}
}

func TestValue_TakeLeavesSourceNull(t *testing.T) {
	hooks := NewHooks()
	rec := &recorder{}
	if err := hooks.Register(reflect.TypeFor[string](), rec.hook("before"), rec.hook("after")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	src := hooks.New("payload")
	dst := src.Take()

	if !src.IsNull() {
		t.Error("Expected source to be null after move")
	}
	if dst.String() != "'payload'" {
		t.Errorf("Expected moved payload, got %s", dst.String())
	}
	if n := rec.count("before:move"); n != 1 {
		t.Errorf("Expected 1 before:move, got %d", n)
	}
	if n := rec.count("after:move"); n != 1 {
		t.Errorf("Expected 1 after:move, got %d", n)
	}

	again := src.Take()
	if !again.IsNull() {
		t.Error("Expected moving a null value to yield null")
	}
	if n := rec.count("before:move"); n != 1 {
		t.Errorf("Expected no hook for moving null, got %d", n)
	}
}

func TestHooks_FireOncePerOperation(t *testing.T) {
	hooks := NewHooks()
	rec := &recorder{}
	intType := reflect.TypeFor[int]()
	if err := hooks.Register(intType, rec.hook("before"), rec.hook("after")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	v := hooks.New(5)
	_ = v.String()
	c := v.Clone()
	var target Value
	target.Assign(c)
	target.Release()
	_ = hooks.New("other type")

	for _, op := range []string{"construct", "string", "clone", "assign", "destroy"} {
		if n := rec.count("before:" + op); n != 1 {
			t.Errorf("Expected 1 before:%s, got %d", op, n)
		}
		if n := rec.count("after:" + op); n != 1 {
			t.Errorf("Expected 1 after:%s, got %d", op, n)
		}
	}
	if !target.IsNull() {
		t.Error("Expected released value to be null")
	}
}

func TestHooks_RegisterOncePerType(t *testing.T) {
	hooks := NewHooks()
	intType := reflect.TypeFor[int]()

	if err := hooks.Register(intType, nil, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := hooks.Register(intType, nil, nil); err == nil {
		t.Error("Expected error registering the same type twice")
	}
	if !hooks.Unregister(intType) {
		t.Error("Expected Unregister to report an existing entry")
	}
	if err := hooks.Register(intType, nil, nil); err != nil {
		t.Errorf("Expected register after unregister to succeed, got: %v", err)
	}

	hooks.Reset()
	if hooks.Registered(intType) {
		t.Error("Expected Reset to drop registrations")
	}
}

func TestOf_InterfaceUsesDynamicType(t *testing.T) {
	var hooks *Hooks
	var s fmtStringer = named("x")
	v := Of(hooks, s)
	if v.Type() != reflect.TypeFor[named]() {
		t.Errorf("Expected dynamic type named, got %v", v.Type())
	}
	if v.String() != "named(x)" {
		t.Errorf("Expected Stringer projection, got %s", v.String())
	}

	w := Of(hooks, int32(3))
	if !Is[int32](w) {
		t.Errorf("Expected int32 payload, got %s", w.TypeName())
	}
}

type fmtStringer interface{ String() string }

type named string

func (n named) String() string { return "named(" + string(n) + ")" }

func localFromA() Value {
	type local struct{ N int }
	var hooks *Hooks
	return hooks.New(local{N: 1})
}

func localFromB() Value {
	type local struct{ N int }
	var hooks *Hooks
	return hooks.New(local{N: 1})
}

func TestValue_CompareSeparatesSameNamedTypes(t *testing.T) {
	a, b := localFromA(), localFromB()
	if a.TypeName() != b.TypeName() {
		t.Fatalf("Expected identical type names, got %s and %s", a.TypeName(), b.TypeName())
	}
	if Equal(a, b) {
		t.Fatal("Expected distinct types to be unequal")
	}
	ab, ba := Compare(a, b), Compare(b, a)
	if ab == 0 {
		t.Errorf("Expected non-zero order for distinct types, got %d", ab)
	}
	if ab != -ba {
		t.Errorf("Expected antisymmetric order, got %d and %d", ab, ba)
	}
	if Compare(a, localFromA()) != 0 {
		t.Error("Expected same type and projection to compare equal")
	}
}
