package equation

import (
	"slices"

	"github.com/google/uuid"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/value"
)

// Equation is one named declaration owned by a Group. Its fields change
// only through the Manager.
type Equation struct {
	name         string
	content      string
	dependencies []string
	typ          expr.Type
	status       expr.Status
	message      string
	value        value.Value

	group   *Group
	manager *Manager
}

func newEquation(d expr.Declaration, g *Group, m *Manager) *Equation {
	return &Equation{
		name:         d.Name,
		content:      d.Content,
		dependencies: append([]string(nil), d.Dependencies...),
		typ:          d.Type,
		status:       expr.StatusPending,
		value:        value.Null(),
		group:        g,
		manager:      m,
	}
}

func (e *Equation) Name() string        { return e.name }
func (e *Equation) Content() string     { return e.content }
func (e *Equation) Type() expr.Type     { return e.typ }
func (e *Equation) Status() expr.Status { return e.status }
func (e *Equation) Message() string     { return e.message }
func (e *Equation) Value() value.Value  { return e.value }
func (e *Equation) Group() *Group       { return e.group }
func (e *Equation) GroupID() uuid.UUID  { return e.group.id }
func (e *Equation) Dependencies() []string {
	return append([]string(nil), e.dependencies...)
}

// Dependents returns the equations that read this one, in declaration
// order.
func (e *Equation) Dependents() []string {
	return e.manager.graph.Dependents(e.name)
}

// IsComputed reports whether the equation holds a successful result.
func (e *Equation) IsComputed() bool {
	return e.status == expr.StatusSuccess
}

// redeclare applies a new parse of the same name and reports what changed.
func (e *Equation) redeclare(d expr.Declaration) EquationField {
	var fields EquationField
	if e.content != d.Content {
		e.content = d.Content
		fields |= FieldContent
	}
	if e.typ != d.Type {
		e.typ = d.Type
		fields |= FieldType
	}
	if !slices.Equal(e.dependencies, d.Dependencies) {
		e.dependencies = append([]string(nil), d.Dependencies...)
		fields |= FieldDependencies
	}
	return fields
}

func (e *Equation) setStatus(status expr.Status, message string) EquationField {
	var fields EquationField
	if e.status != status {
		e.status = status
		fields |= FieldStatus
	}
	if e.message != message {
		e.message = message
		fields |= FieldMessage
	}
	return fields
}

func (e *Equation) setValue(v value.Value) EquationField {
	if value.Equal(e.value, v) {
		return 0
	}
	e.value.Assign(v)
	return FieldValue
}

// Group is the set of equations created from one statement block.
type Group struct {
	id        uuid.UUID
	statement string
	names     []string
	manager   *Manager

	// parseFailure holds the message of the last rejected edit until an
	// edit succeeds.
	parseFailure string
}

func (g *Group) ID() uuid.UUID     { return g.id }
func (g *Group) Statement() string { return g.statement }

// EquationNames returns member names in declaration order.
func (g *Group) EquationNames() []string {
	return append([]string(nil), g.names...)
}

// Equations returns the members in declaration order.
func (g *Group) Equations() []*Equation {
	out := make([]*Equation, 0, len(g.names))
	for _, n := range g.names {
		if eq, ok := g.manager.equations[n]; ok {
			out = append(out, eq)
		}
	}
	return out
}
