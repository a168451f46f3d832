package equation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/expr/script"
	"github.com/xequation/xequation/pkg/graph"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	engine, err := script.New()
	require.NoError(t, err)
	m, err := New(engine)
	require.NoError(t, err)
	return m
}

func mustAdd(t *testing.T, m *Manager, text string) *Group {
	t.Helper()
	id, err := m.AddEquationGroup(text)
	require.NoError(t, err)
	g, err := m.GetEquationGroup(id)
	require.NoError(t, err)
	return g
}

func valueOf(t *testing.T, m *Manager, name string) any {
	t.Helper()
	eq, err := m.GetEquation(name)
	require.NoError(t, err)
	return eq.Value().Interface()
}

func statusOf(t *testing.T, m *Manager, name string) expr.Status {
	t.Helper()
	eq, err := m.GetEquation(name)
	require.NoError(t, err)
	return eq.Status()
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeEngineUnavailable, e.Code)
}

func TestAddDoesNotEvaluate(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")

	assert.Equal(t, expr.StatusPending, statusOf(t, m, "a"))
	assert.False(t, m.Context().Contains("a"))
}

func TestUpdateInDependencyOrder(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "c = a + b")
	mustAdd(t, m, "b = a * 2")
	mustAdd(t, m, "a = 3")

	assert.Equal(t, []string{"a", "b", "c"}, m.EvaluationOrder())

	m.Update()

	assert.Equal(t, int64(3), valueOf(t, m, "a"))
	assert.Equal(t, int64(6), valueOf(t, m, "b"))
	assert.Equal(t, int64(9), valueOf(t, m, "c"))
	assert.Empty(t, m.graph.DirtyNodes())
}

func TestDependencyCycleRejected(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = b")
	before := m.graph.Snapshot()

	_, err := m.AddEquationGroup("b = a")
	require.Error(t, err)
	assert.True(t, IsCycle(err))
	assert.True(t, graph.IsCycle(err))

	assert.Equal(t, before, m.graph.Snapshot())
	assert.Equal(t, []string{"a"}, m.EquationNames())
	assert.Equal(t, []graph.Edge{{From: "b", To: "a"}}, m.graph.Edges())
	assert.False(t, m.IsEquationExist("b"))
	assert.Len(t, m.GroupIDs(), 1)
}

func TestAddRejectsExistingName(t *testing.T) {
	m := newTestManager(t)
	g := mustAdd(t, m, "a = 1")

	_, err := m.AddEquationGroup("a = 2")
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "a", e.Equation)
	assert.Equal(t, g.ID(), e.Group)

	_, err = m.AddEquationGroup("x = 1\nx = 2")
	assert.True(t, IsAlreadyExists(err))
	assert.False(t, m.IsEquationExist("x"))
}

func TestAddParseFailure(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddEquationGroup("a + b")
	require.Error(t, err)
	assert.True(t, IsParseFailed(err))
	assert.True(t, expr.IsParseError(err))
	assert.Equal(t, 0, m.Len())
}

func TestReplaceExisting(t *testing.T) {
	m := newTestManager(t)
	old := mustAdd(t, m, "a = 1\nb = 2")
	mustAdd(t, m, "c = b + 1")
	m.Update()

	id, err := m.AddEquationGroup("a = 10", ReplaceExisting())
	require.NoError(t, err)

	_, err = m.GetEquationGroup(old.ID())
	assert.True(t, IsNotFound(err))
	assert.False(t, m.IsEquationExist("b"))
	assert.False(t, m.Context().Contains("b"))

	eq, err := m.GetEquation("a")
	require.NoError(t, err)
	assert.Equal(t, id, eq.GroupID())
	assert.Equal(t, "a = 10", eq.Content())

	m.Update()
	assert.Equal(t, int64(10), valueOf(t, m, "a"))
	assert.Equal(t, expr.StatusNameError, statusOf(t, m, "c"))
}

func TestEditParseFailureMarksStale(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "c = 1")
	ga := mustAdd(t, m, "a = c + 1")
	mustAdd(t, m, "b = 2")
	mustAdd(t, m, "d = a + b")
	m.Update()
	require.Equal(t, int64(4), valueOf(t, m, "d"))

	err := m.EditEquationGroup(ga.ID(), "a = = 1")
	require.Error(t, err)
	assert.True(t, IsParseFailed(err))

	a, err := m.GetEquation("a")
	require.NoError(t, err)
	assert.Equal(t, expr.StatusSyntaxError, a.Status())
	assert.Equal(t, []string{"c"}, a.Dependencies())
	assert.Equal(t, "a = c + 1", a.Content())
	assert.True(t, m.graph.HasEdge("c", "a"))

	d, err := m.GetEquation("d")
	require.NoError(t, err)
	assert.Equal(t, expr.StatusStale, d.Status())
	assert.Equal(t, "blocked by a", d.Message())
	assert.Equal(t, int64(4), d.Value().Interface())

	// the old content is not run again until an edit succeeds
	require.NoError(t, m.UpdateEquationGroup(ga.ID()))
	require.NoError(t, m.UpdateSingleEquation("a"))
	m.Update()
	assert.Equal(t, expr.StatusSyntaxError, a.Status())
	assert.Equal(t, expr.StatusStale, d.Status())
	assert.Equal(t, int64(4), d.Value().Interface())

	require.NoError(t, m.EditEquationGroup(ga.ID(), "a = c + 5"))
	m.Update()
	assert.Equal(t, expr.StatusSuccess, statusOf(t, m, "d"))
	assert.Equal(t, int64(8), valueOf(t, m, "d"))
}

func TestEditCycleLeavesGroupUnchanged(t *testing.T) {
	m := newTestManager(t)
	ga := mustAdd(t, m, "a = 1")
	mustAdd(t, m, "b = a")
	before := m.graph.Snapshot()

	err := m.EditEquationGroup(ga.ID(), "a = b")
	require.Error(t, err)
	assert.True(t, IsCycle(err))

	assert.Equal(t, before, m.graph.Snapshot())
	assert.Equal(t, "a = 1", ga.Statement())
	eq, _ := m.GetEquation("a")
	assert.Equal(t, "a = 1", eq.Content())
	assert.Empty(t, eq.Dependencies())
}

func TestEditRenamesAndReevaluatesDependents(t *testing.T) {
	m := newTestManager(t)
	g := mustAdd(t, m, "x = 1")
	mustAdd(t, m, "y = x * 2")
	m.Update()
	require.Equal(t, int64(2), valueOf(t, m, "y"))

	require.NoError(t, m.EditEquationGroup(g.ID(), "z = 1"))

	assert.False(t, m.IsEquationExist("x"))
	assert.False(t, m.Context().Contains("x"))
	assert.Equal(t, []string{"z"}, g.EquationNames())
	assert.Equal(t, expr.StatusNameError, statusOf(t, m, "y"))
	assert.False(t, m.Context().Contains("y"))
	assert.Equal(t, expr.StatusPending, statusOf(t, m, "z"))
}

func TestEditCollisionWithOtherGroup(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	g := mustAdd(t, m, "b = 2")

	err := m.EditEquationGroup(g.ID(), "a = 3")
	assert.True(t, IsAlreadyExists(err))
	assert.Equal(t, "b = 2", g.Statement())
}

func TestRemoveGroupReevaluatesDependents(t *testing.T) {
	m := newTestManager(t)
	ga := mustAdd(t, m, "a = 1")
	mustAdd(t, m, "b = 2")
	mustAdd(t, m, "c = a + b")
	mustAdd(t, m, "d = c + 1")
	m.Update()

	var updated []string
	m.Subscribe(func(ev Event) {
		if ev.Kind == EquationUpdated {
			updated = append(updated, ev.Name)
		}
	})

	require.NoError(t, m.RemoveEquationGroup(ga.ID()))

	assert.Equal(t, []string{"c", "d"}, updated)
	assert.Equal(t, expr.StatusNameError, statusOf(t, m, "c"))
	assert.Equal(t, expr.StatusStale, statusOf(t, m, "d"))
	assert.Equal(t, "blocked by c", mustEquation(t, m, "d").Message())
	assert.False(t, m.graph.IsActive("a", "c"))
	assert.True(t, m.graph.HasEdge("a", "c"))

	err := m.RemoveEquationGroup(ga.ID())
	assert.True(t, IsNotFound(err))
}

func mustEquation(t *testing.T, m *Manager, name string) *Equation {
	t.Helper()
	eq, err := m.GetEquation(name)
	require.NoError(t, err)
	return eq
}

func TestFailurePropagatesStale(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1 / 0")
	mustAdd(t, m, "b = a + 1")
	mustAdd(t, m, "c = 5")
	m.Update()

	a := mustEquation(t, m, "a")
	assert.Equal(t, expr.StatusZeroDivisionError, a.Status())
	assert.NotEmpty(t, a.Message())
	assert.True(t, a.Value().IsNull())

	b := mustEquation(t, m, "b")
	assert.Equal(t, expr.StatusStale, b.Status())
	assert.Equal(t, "blocked by a", b.Message())

	assert.Equal(t, int64(5), valueOf(t, m, "c"))
}

func TestUpdateSingleEquation(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	mustAdd(t, m, "b = a + 1")
	mustAdd(t, m, "c = 7")

	require.NoError(t, m.UpdateSingleEquation("a"))
	assert.Equal(t, int64(2), valueOf(t, m, "b"))
	assert.Equal(t, expr.StatusPending, statusOf(t, m, "c"))
	assert.True(t, m.graph.IsDirty("c"))

	err := m.UpdateEquations("a", "missing")
	assert.True(t, IsNotFound(err))
}

func TestUpdateGroupBlockedByPendingDependency(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	g := mustAdd(t, m, "b = a")

	require.NoError(t, m.UpdateEquationGroup(g.ID()))
	assert.Equal(t, expr.StatusStale, statusOf(t, m, "b"))

	m.Update()
	assert.Equal(t, int64(1), valueOf(t, m, "b"))
}

func TestEvents(t *testing.T) {
	m := newTestManager(t)

	var events []Event
	unsubscribe := m.Subscribe(func(ev Event) { events = append(events, ev) })

	g := mustAdd(t, m, "a = 1")
	require.Len(t, events, 2)
	assert.Equal(t, EquationAdded, events[0].Kind)
	assert.Equal(t, "a", events[0].Name)
	assert.Equal(t, EquationGroupAdded, events[1].Kind)
	assert.Equal(t, g.ID(), events[1].GroupID)

	events = nil
	m.Update()
	require.Len(t, events, 1)
	assert.Equal(t, EquationUpdated, events[0].Kind)
	assert.True(t, events[0].Fields.Has(FieldStatus))
	assert.True(t, events[0].Fields.Has(FieldValue))
	assert.False(t, events[0].Fields.Has(FieldContent))

	events = nil
	m.Update()
	assert.Empty(t, events)

	events = nil
	require.NoError(t, m.EditEquationGroup(g.ID(), "a = 2"))
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{EquationUpdated, EquationGroupUpdated}, kinds)
	assert.Equal(t, FieldContent, events[0].Fields)
	assert.True(t, events[1].GroupFields.Has(FieldStatement))
	assert.False(t, events[1].GroupFields.Has(FieldEquations))

	events = nil
	require.NoError(t, m.RemoveEquationGroup(g.ID()))
	kinds = kinds[:0]
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EquationGroupRemoving, EquationRemoving, EquationRemoved}, kinds)

	unsubscribe()
	events = nil
	mustAdd(t, m, "b = 1")
	assert.Empty(t, events)
}

func TestExportImport(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 2")
	mustAdd(t, m, "def f(x):\n    return x * a")
	mustAdd(t, m, "b = f(3)\nc = b + 1")
	m.Update()

	statements := m.Export()
	assert.Equal(t, []string{"a = 2", "def f(x):\n    return x * a", "b = f(3)\nc = b + 1"}, statements)

	other := newTestManager(t)
	require.NoError(t, other.Import(statements))
	assert.Equal(t, m.EquationNames(), other.EquationNames())
	assert.Equal(t, int64(6), valueOf(t, other, "b"))
	assert.Equal(t, int64(7), valueOf(t, other, "c"))

	err := other.Import([]string{"a = 5"})
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))
}

func TestReset(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	mustAdd(t, m, "b = a")
	m.Update()

	var removed int
	m.Subscribe(func(ev Event) {
		if ev.Kind == EquationRemoved {
			removed++
		}
	})
	m.Reset()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.GroupIDs())
	assert.Equal(t, 0, m.graph.Len())
	assert.True(t, m.Context().Empty())
}

func TestEvalUsesContext(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 4")
	m.Update()

	r := m.Eval("a * 10")
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, int64(40), r.Value.Interface())
	assert.Equal(t, int64(4), valueOf(t, m, "a"))
}

func TestEquationDependents(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	mustAdd(t, m, "c = a")
	mustAdd(t, m, "b = a")

	assert.Equal(t, []string{"c", "b"}, mustEquation(t, m, "a").Dependents())
}

func TestManagerToDOT(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 1")
	mustAdd(t, m, "b = a / 0")
	m.Update()

	dot := m.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph Equations {"))
	assert.Contains(t, dot, "lightgreen")
	assert.Contains(t, dot, "lightcoral")
}

func TestManagerDescribe(t *testing.T) {
	m := newTestManager(t)
	mustAdd(t, m, "a = 2")
	mustAdd(t, m, "b = a / 0")
	mustAdd(t, m, "c = b + 1")
	m.Update()

	lines := strings.Split(strings.TrimSuffix(m.Describe(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a [Success] = 2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "b [ZeroDivisionError] = null ("), lines[1])
	assert.Equal(t, "c [Stale] = null (blocked by b)", lines[2])
}

type countingRecorder struct {
	evaluations int
	passes      int
	count       int
}

func (r *countingRecorder) ObserveEvaluation(expr.Status, time.Duration) { r.evaluations++ }
func (r *countingRecorder) ObserveUpdatePass(int, time.Duration)         { r.passes++ }
func (r *countingRecorder) SetEquationCount(n int)                       { r.count = n }

func TestMetricsRecorder(t *testing.T) {
	engine, err := script.New()
	require.NoError(t, err)
	rec := &countingRecorder{}
	m, err := New(engine, WithMetrics(rec))
	require.NoError(t, err)

	mustAdd(t, m, "a = 1\nb = a")
	m.Update()

	assert.Equal(t, 2, rec.evaluations)
	assert.Equal(t, 1, rec.passes)
	assert.Equal(t, 2, rec.count)
}
