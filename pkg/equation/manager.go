// Package equation manages named equations, the groups they were declared
// in and the dependency graph between them, and recomputes values in
// dependency order when equations change.
package equation

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/graph"
)

// Manager owns equations, their groups and the dependency graph, and keeps
// computed values in an expression context. A Manager is used from one
// goroutine; recomputation passes never interleave.
type Manager struct {
	engine    expr.Engine
	ctx       *expr.Context
	graph     *graph.Graph
	equations map[string]*Equation
	groups    map[uuid.UUID]*Group
	order     []uuid.UUID
	bus       *bus

	logger  zerolog.Logger
	metrics Recorder
	now     func() time.Time
}

// New creates a manager evaluating with engine.
func New(engine expr.Engine, opts ...Option) (*Manager, error) {
	if engine == nil {
		return nil, NewError(ErrCodeEngineUnavailable, "no expression engine configured", nil)
	}
	m := &Manager{
		engine:    engine,
		graph:     graph.New(),
		equations: make(map[string]*Equation),
		groups:    make(map[uuid.UUID]*Group),
		bus:       newBus(),
		logger:    zerolog.Nop(),
		metrics:   nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ctx == nil {
		if f, ok := engine.(interface{ NewContext() *expr.Context }); ok {
			m.ctx = f.NewContext()
		} else {
			m.ctx = expr.NewContext(nil)
		}
	}
	m.ctx.Bind(engine)
	return m, nil
}

// Engine returns the expression engine.
func (m *Manager) Engine() expr.Engine { return m.engine }

// Context returns the evaluation context.
func (m *Manager) Context() *expr.Context { return m.ctx }

// Subscribe registers fn for every event and returns a function that
// removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	return m.bus.subscribe(fn)
}

// GetEquation returns the equation owning name.
func (m *Manager) GetEquation(name string) (*Equation, error) {
	eq, ok := m.equations[name]
	if !ok {
		return nil, NewError(ErrCodeEquationNotFound, "equation not found", nil).WithEquation(name)
	}
	return eq, nil
}

// IsEquationExist reports whether an equation owns name.
func (m *Manager) IsEquationExist(name string) bool {
	_, ok := m.equations[name]
	return ok
}

// GetEquationGroup returns the group with id.
func (m *Manager) GetEquationGroup(id uuid.UUID) (*Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, NewError(ErrCodeGroupNotFound, "equation group not found", nil).WithGroup(id)
	}
	return g, nil
}

// GroupIDs returns group ids in creation order.
func (m *Manager) GroupIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), m.order...)
}

// Groups returns the groups in creation order.
func (m *Manager) Groups() []*Group {
	out := make([]*Group, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.groups[id])
	}
	return out
}

// EquationNames returns every equation name in declaration order.
func (m *Manager) EquationNames() []string {
	return m.graph.Nodes()
}

// Equations returns every equation in declaration order.
func (m *Manager) Equations() []*Equation {
	names := m.graph.Nodes()
	out := make([]*Equation, 0, len(names))
	for _, n := range names {
		out = append(out, m.equations[n])
	}
	return out
}

// Len returns the number of equations.
func (m *Manager) Len() int {
	return len(m.equations)
}

// EvaluationOrder returns every equation in topological order.
func (m *Manager) EvaluationOrder() []string {
	return m.graph.TopologicalSortAll()
}

// AddEquationGroup parses text into a new group and inserts its equations.
// Nothing is evaluated; call UpdateEquationGroup or Update.
func (m *Manager) AddEquationGroup(text string, opts ...AddOption) (uuid.UUID, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	r, err := m.parse(text)
	if err != nil {
		return uuid.Nil, err
	}

	var replaced []*Group
	seen := make(map[uuid.UUID]bool)
	for _, d := range r.Declarations {
		eq, ok := m.equations[d.Name]
		if !ok {
			continue
		}
		if !o.replace {
			return uuid.Nil, NewError(ErrCodeEquationAlreadyExists,
				fmt.Sprintf("equation %s already exists", d.Name), nil).
				WithEquation(d.Name).
				WithGroup(eq.group.id)
		}
		if !seen[eq.group.id] {
			seen[eq.group.id] = true
			replaced = append(replaced, eq.group)
		}
	}

	var removedNames []string
	for _, g := range replaced {
		removedNames = append(removedNames, g.names...)
	}
	affected := m.graph.TopologicalSort(removedNames...)

	err = m.graph.Batch(func(b *graph.Batch) error {
		for _, g := range replaced {
			for _, eq := range g.Equations() {
				unlink(b, eq)
			}
		}
		for _, d := range r.Declarations {
			link(b, d.Name, d.Dependencies)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, m.graphError(err)
	}

	for _, g := range replaced {
		m.dropGroup(g)
	}

	g := &Group{id: uuid.New(), statement: text, manager: m}
	for _, d := range r.Declarations {
		m.equations[d.Name] = newEquation(d, g, m)
		g.names = append(g.names, d.Name)
	}
	m.groups[g.id] = g
	m.order = append(m.order, g.id)

	for _, name := range affected {
		m.graph.MarkDirty(name, false)
	}
	for _, name := range g.names {
		m.graph.MarkDirty(name, true)
	}

	for _, eq := range g.Equations() {
		m.bus.publish(Event{Kind: EquationAdded, Name: eq.name, GroupID: g.id, Equation: eq, Group: g})
	}
	m.bus.publish(Event{Kind: EquationGroupAdded, GroupID: g.id, Group: g})

	m.metrics.SetEquationCount(len(m.equations))
	m.logger.Debug().
		Str("group", g.id.String()).
		Strs("equations", g.names).
		Int("replaced", len(replaced)).
		Msg("Equation group added")
	return g.id, nil
}

// RemoveEquationGroup removes a group and its equations, then evaluates
// every surviving dependent once, in dependency order.
func (m *Manager) RemoveEquationGroup(id uuid.UUID) error {
	g, err := m.GetEquationGroup(id)
	if err != nil {
		return err
	}

	order := m.graph.TopologicalSort(g.names...)
	err = m.graph.Batch(func(b *graph.Batch) error {
		for _, eq := range g.Equations() {
			unlink(b, eq)
		}
		return nil
	})
	if err != nil {
		return m.graphError(err)
	}

	members := toSet(g.names)
	m.dropGroup(g)
	m.metrics.SetEquationCount(len(m.equations))
	m.logger.Debug().Str("group", id.String()).Strs("equations", g.names).Msg("Equation group removed")

	m.runPass(without(order, members))
	return nil
}

// EditEquationGroup replaces the statement text of a group. Equations
// whose names disappear are removed, new names are added and kept names
// are redeclared in place. A cycle leaves everything unchanged. A parse
// failure leaves the structure unchanged but marks the group's equations
// SyntaxError and their dependents stale.
func (m *Manager) EditEquationGroup(id uuid.UUID, text string) error {
	g, err := m.GetEquationGroup(id)
	if err != nil {
		return err
	}

	r, err := m.parse(text)
	if err != nil {
		m.markParseFailure(g, err)
		var e *Error
		if errors.As(err, &e) {
			e.WithGroup(id)
		}
		return err
	}

	decls := make(map[string]expr.Declaration, len(r.Declarations))
	for _, d := range r.Declarations {
		if eq, ok := m.equations[d.Name]; ok && eq.group != g {
			return NewError(ErrCodeEquationAlreadyExists,
				fmt.Sprintf("equation %s already exists", d.Name), nil).
				WithEquation(d.Name).
				WithGroup(eq.group.id)
		}
		decls[d.Name] = d
	}

	var removed []*Equation
	for _, eq := range g.Equations() {
		if _, ok := decls[eq.name]; !ok {
			removed = append(removed, eq)
		}
	}
	removedNames := make([]string, len(removed))
	for i, eq := range removed {
		removedNames[i] = eq.name
	}
	affected := without(m.graph.TopologicalSort(removedNames...), toSet(g.names))

	err = m.graph.Batch(func(b *graph.Batch) error {
		for _, eq := range removed {
			unlink(b, eq)
		}
		for _, d := range r.Declarations {
			if eq, ok := m.equations[d.Name]; ok {
				for _, dep := range eq.dependencies {
					b.RemoveEdge(dep, eq.name)
				}
				for _, dep := range d.Dependencies {
					b.AddEdge(dep, d.Name)
				}
				continue
			}
			link(b, d.Name, d.Dependencies)
		}
		return nil
	})
	if err != nil {
		return m.graphError(err)
	}

	for _, eq := range removed {
		m.dropEquation(eq)
	}

	g.parseFailure = ""
	oldNames := g.names
	g.names = make([]string, 0, len(r.Declarations))
	var added []*Equation
	for _, d := range r.Declarations {
		g.names = append(g.names, d.Name)
		if eq, ok := m.equations[d.Name]; ok {
			if fields := eq.redeclare(d); fields != 0 {
				m.publishUpdate(eq, fields)
			}
		} else {
			eq := newEquation(d, g, m)
			m.equations[d.Name] = eq
			added = append(added, eq)
		}
		m.graph.MarkDirty(d.Name, true)
	}
	for _, eq := range added {
		m.bus.publish(Event{Kind: EquationAdded, Name: eq.name, GroupID: g.id, Equation: eq, Group: g})
	}

	var groupFields GroupField
	if g.statement != text {
		g.statement = text
		groupFields |= FieldStatement
	}
	if !slices.Equal(oldNames, g.names) {
		groupFields |= FieldEquations
	}
	if groupFields != 0 {
		m.bus.publish(Event{Kind: EquationGroupUpdated, GroupID: g.id, Group: g, GroupFields: groupFields})
	}

	m.metrics.SetEquationCount(len(m.equations))
	m.logger.Debug().
		Str("group", id.String()).
		Strs("equations", g.names).
		Int("removed", len(removed)).
		Int("added", len(added)).
		Msg("Equation group edited")

	m.runPass(affected)
	return nil
}

// Reset removes every group and clears the graph and the context.
func (m *Manager) Reset() {
	for _, g := range m.Groups() {
		m.dropGroup(g)
	}
	m.graph.Reset()
	m.ctx.Clear()
	m.metrics.SetEquationCount(0)
	m.logger.Debug().Msg("Equation manager reset")
}

// Export returns the statement of every group in creation order. Replaying
// them through Import rebuilds the manager.
func (m *Manager) Export() []string {
	out := make([]string, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.groups[id].statement)
	}
	return out
}

// Import adds one group per statement, in order, then evaluates
// everything.
func (m *Manager) Import(statements []string) error {
	for i, s := range statements {
		if _, err := m.AddEquationGroup(s); err != nil {
			return fmt.Errorf("failed to import group %d: %w", i, err)
		}
	}
	m.Update()
	return nil
}

func (m *Manager) parse(text string) (expr.ParseResult, error) {
	r, err := m.engine.Parse(text)
	if err != nil {
		return expr.ParseResult{}, NewError(ErrCodeParseFailed, "failed to parse equation group", err)
	}
	seen := make(map[string]bool, len(r.Declarations))
	for _, d := range r.Declarations {
		if seen[d.Name] {
			return expr.ParseResult{}, NewError(ErrCodeEquationAlreadyExists,
				fmt.Sprintf("equation %s is declared more than once", d.Name), nil).
				WithEquation(d.Name)
		}
		seen[d.Name] = true
	}
	return r, nil
}

func (m *Manager) graphError(err error) error {
	var cycle *graph.CycleError
	if errors.As(err, &cycle) {
		return NewError(ErrCodeDependencyCycle, "change would create a dependency cycle", err).
			WithDetail("cycle", cycle.Members())
	}
	return fmt.Errorf("failed to update dependency graph: %w", err)
}

// dropGroup removes g and its equations from the manager maps. The graph
// must already be unlinked.
func (m *Manager) dropGroup(g *Group) {
	m.bus.publish(Event{Kind: EquationGroupRemoving, GroupID: g.id, Group: g})
	for _, eq := range g.Equations() {
		m.dropEquation(eq)
	}
	delete(m.groups, g.id)
	for i, id := range m.order {
		if id == g.id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) dropEquation(eq *Equation) {
	m.bus.publish(Event{Kind: EquationRemoving, Name: eq.name, GroupID: eq.group.id, Equation: eq, Group: eq.group})
	delete(m.equations, eq.name)
	m.ctx.Remove(eq.name)
	m.bus.publish(Event{Kind: EquationRemoved, Name: eq.name, GroupID: eq.group.id, Equation: eq, Group: eq.group})
}

func (m *Manager) publishUpdate(eq *Equation, fields EquationField) {
	m.bus.publish(Event{
		Kind:     EquationUpdated,
		Name:     eq.name,
		GroupID:  eq.group.id,
		Equation: eq,
		Group:    eq.group,
		Fields:   fields,
	})
}

func link(b *graph.Batch, name string, deps []string) {
	b.AddNode(name)
	for _, dep := range deps {
		b.AddEdge(dep, name)
	}
}

func unlink(b *graph.Batch, eq *Equation) {
	for _, dep := range eq.dependencies {
		b.RemoveEdge(dep, eq.name)
	}
	b.RemoveNode(eq.name)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func without(names []string, exclude map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !exclude[n] {
			out = append(out, n)
		}
	}
	return out
}
