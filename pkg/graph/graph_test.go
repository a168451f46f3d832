package graph

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

// build adds nodes in order and then the edges as one batch.
func build(t *testing.T, nodes []string, edges ...Edge) *Graph {
	t.Helper()
	g := New()
	err := g.Batch(func(b *Batch) error {
		for _, n := range nodes {
			b.AddNode(n)
		}
		for _, e := range edges {
			b.AddEdge(e.From, e.To)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error building graph, got: %v", err)
	}
	return g
}

func TestGraph_Empty(t *testing.T) {
	g := New()

	if g.Len() != 0 {
		t.Errorf("Expected 0 nodes, got %d", g.Len())
	}
	if order := g.TopologicalSortAll(); len(order) != 0 {
		t.Errorf("Expected empty order, got %v", order)
	}
	if g.HasCycle() {
		t.Error("Expected no cycle in empty graph")
	}
}

func TestGraph_AddNode(t *testing.T) {
	g := New()

	added, err := g.AddNode("a")
	if err != nil || !added {
		t.Fatalf("Expected node to be added, got added=%v err=%v", added, err)
	}

	added, err = g.AddNode("a")
	if err != nil {
		t.Fatalf("Expected no error re-adding node, got: %v", err)
	}
	if added {
		t.Error("Expected duplicate add to report false")
	}
}

func TestGraph_InactiveEdgesActivateWithNodes(t *testing.T) {
	g := New()

	if _, err := g.AddEdge("b", "a"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !g.HasEdge("b", "a") {
		t.Fatal("Expected edge to be stored")
	}
	if g.IsActive("b", "a") {
		t.Error("Expected edge without nodes to be inactive")
	}

	g.AddNode("a")
	if deps := g.Dependencies("a"); len(deps) != 0 {
		t.Errorf("Expected no active dependencies, got %v", deps)
	}

	g.AddNode("b")
	if !g.IsActive("b", "a") {
		t.Error("Expected edge to activate once both nodes exist")
	}
	if deps := g.Dependencies("a"); !reflect.DeepEqual(deps, []string{"b"}) {
		t.Errorf("Expected dependencies [b], got %v", deps)
	}
	if deps := g.Dependents("b"); !reflect.DeepEqual(deps, []string{"a"}) {
		t.Errorf("Expected dependents [a], got %v", deps)
	}

	g.RemoveNode("b")
	if !g.HasEdge("b", "a") {
		t.Error("Expected edge to stay stored after node removal")
	}
	if deps := g.Dependencies("a"); len(deps) != 0 {
		t.Errorf("Expected edge to deactivate, got dependencies %v", deps)
	}
}

func TestGraph_CycleRejected(t *testing.T) {
	// a = b, then b = a
	g := New()
	err := g.Batch(func(b *Batch) error {
		b.AddNode("a")
		b.AddEdge("b", "a")
		return nil
	})
	if err != nil {
		t.Fatalf("Expected first insert to succeed, got: %v", err)
	}
	before := g.Snapshot()

	err = g.Batch(func(b *Batch) error {
		b.AddNode("b")
		b.AddEdge("a", "b")
		return nil
	})
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Expected CycleError, got: %v", err)
	}
	if !reflect.DeepEqual(cycle.Path, []string{"a", "b", "a"}) {
		t.Errorf("Expected cycle path [a b a], got %v", cycle.Path)
	}
	if !reflect.DeepEqual(cycle.Members(), []string{"a", "b"}) {
		t.Errorf("Expected members [a b], got %v", cycle.Members())
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("Expected formatted cycle in message, got %q", err.Error())
	}

	after := g.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Expected graph unchanged, before %+v, after %+v", before, after)
	}
	if g.HasNode("b") {
		t.Error("Expected node b to be rolled back")
	}
}

func TestGraph_SelfLoopRejected(t *testing.T) {
	g := New()
	g.AddNode("a")

	_, err := g.AddEdge("a", "a")
	if !IsCycle(err) {
		t.Fatalf("Expected cycle error, got: %v", err)
	}
	if g.HasEdge("a", "a") {
		t.Error("Expected self edge to be rolled back")
	}
}

func TestGraph_BatchCallbackErrorRollsBack(t *testing.T) {
	g := build(t, []string{"a", "b"}, Edge{"a", "b"})
	before := g.Snapshot()
	boom := errors.New("boom")

	err := g.Batch(func(b *Batch) error {
		b.RemoveEdge("a", "b")
		b.RemoveNode("a")
		b.AddNode("c")
		b.AddEdge("c", "b")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error, got: %v", err)
	}
	if !reflect.DeepEqual(before, g.Snapshot()) {
		t.Errorf("Expected graph unchanged, before %+v, after %+v", before, g.Snapshot())
	}
	if deps := g.Dependencies("b"); !reflect.DeepEqual(deps, []string{"a"}) {
		t.Errorf("Expected dependencies [a] after rollback, got %v", deps)
	}
}

func TestGraph_RollbackPreservesInsertionOrder(t *testing.T) {
	g := build(t, []string{"x", "y", "z"}, Edge{"x", "z"})

	err := g.Batch(func(b *Batch) error {
		b.RemoveNode("x")
		b.AddNode("x")
		b.AddEdge("z", "x")
		return nil
	})
	if !IsCycle(err) {
		t.Fatalf("Expected cycle error, got: %v", err)
	}
	if nodes := g.Nodes(); !reflect.DeepEqual(nodes, []string{"x", "y", "z"}) {
		t.Errorf("Expected insertion order [x y z], got %v", nodes)
	}
}

func TestGraph_NestedBatch(t *testing.T) {
	g := New()
	err := g.Batch(func(b *Batch) error {
		return g.Batch(func(*Batch) error { return nil })
	})
	if !errors.Is(err, ErrBatchInProgress) {
		t.Errorf("Expected ErrBatchInProgress, got: %v", err)
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	// c = a + b; d = c; e = a; f (independent)
	g := build(t, []string{"f", "e", "d", "c", "b", "a"},
		Edge{"a", "c"}, Edge{"b", "c"}, Edge{"c", "d"}, Edge{"a", "e"})

	tests := []struct {
		name  string
		seeds []string
		want  []string
	}{
		{"from a", []string{"a"}, []string{"a", "e", "c", "d"}},
		{"from c", []string{"c"}, []string{"c", "d"}},
		{"from b", []string{"b"}, []string{"b", "c", "d"}},
		{"leaf", []string{"d"}, []string{"d"}},
		{"unknown", []string{"zz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.TopologicalSort(tt.seeds...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGraph_TopologicalSortAllRespectsEdgesAndInsertionOrder(t *testing.T) {
	g := build(t, []string{"total", "price", "qty", "tax"},
		Edge{"price", "total"}, Edge{"qty", "total"}, Edge{"tax", "total"})

	got := g.TopologicalSortAll()
	want := []string{"price", "qty", "tax", "total"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	position := make(map[string]int)
	for i, n := range got {
		position[n] = i
	}
	for _, e := range g.Edges() {
		if position[e.From] >= position[e.To] {
			t.Errorf("Expected %s before %s", e.From, e.To)
		}
	}
}

func TestGraph_Levels(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d"},
		Edge{"a", "c"}, Edge{"b", "c"}, Edge{"c", "d"}, Edge{"a", "d"})

	want := [][]string{{"a", "b"}, {"c"}, {"d"}}
	if got := g.Levels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected levels %v, got %v", want, got)
	}
}

func TestGraph_Dirty(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "x"}, Edge{"a", "b"}, Edge{"b", "c"})

	g.MarkDirty("a", false)
	if !g.IsDirty("a") || g.IsDirty("b") {
		t.Error("Expected only a to be dirty without propagation")
	}

	g.MarkDirty("a", true)
	if got := g.DirtyNodes(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Expected dirty [a b c], got %v", got)
	}

	g.ClearDirty("b")
	if g.IsDirty("b") {
		t.Error("Expected b to be clean")
	}
	if g.IsDirty("x") || g.IsDirty("missing") {
		t.Error("Expected untouched and missing nodes to be clean")
	}
}

func TestGraph_Reset(t *testing.T) {
	g := build(t, []string{"a", "b"}, Edge{"a", "b"})
	g.Reset()

	if g.Len() != 0 || len(g.Edges()) != 0 {
		t.Errorf("Expected empty graph after reset, got %+v", g.Snapshot())
	}
}

func TestGraph_ToDOT(t *testing.T) {
	g := build(t, []string{"a", "b"}, Edge{"a", "b"}, Edge{"ghost", "b"})

	dot := g.ToDOT(func(name string) (string, string) {
		return name + "!", "lightgreen"
	})

	for _, want := range []string{
		"digraph Equations {",
		`subgraph cluster_level_0 {`,
		`"a" [label="a!", fillcolor="lightgreen"`,
		`"a" -> "b" [style=solid, color=black];`,
		`"ghost" -> "b" [style=dotted, color=gray];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, dot)
		}
	}
}

func TestGraph_RejectedMutationsLeaveSnapshotUnchanged(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	g := build(t, names)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		before := g.Snapshot()
		from := names[rng.Intn(len(names))]
		to := names[rng.Intn(len(names))]

		_, err := g.AddEdge(from, to)
		switch {
		case err == nil:
			if g.HasCycle() {
				t.Fatalf("Expected acyclic graph after adding %s -> %s", from, to)
			}
		case IsCycle(err):
			if !reflect.DeepEqual(before, g.Snapshot()) {
				t.Fatalf("Expected unchanged graph after rejected %s -> %s", from, to)
			}
		default:
			t.Fatalf("Unexpected error: %v", err)
		}

		if rng.Intn(4) == 0 {
			edges := g.Edges()
			if len(edges) > 0 {
				e := edges[rng.Intn(len(edges))]
				g.RemoveEdge(e.From, e.To)
			}
		}
	}
}
