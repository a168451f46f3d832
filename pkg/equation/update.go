package equation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xequation/xequation/pkg/expr"
)

// UpdateEquationGroup evaluates the group's equations and everything
// depending on them, in dependency order.
func (m *Manager) UpdateEquationGroup(id uuid.UUID) error {
	g, err := m.GetEquationGroup(id)
	if err != nil {
		return err
	}
	m.runPass(m.graph.TopologicalSort(g.names...))
	return nil
}

// UpdateSingleEquation evaluates name and everything depending on it.
func (m *Manager) UpdateSingleEquation(name string) error {
	return m.UpdateEquations(name)
}

// UpdateEquations evaluates the named equations and everything depending
// on them. Unknown names fail before anything is evaluated.
func (m *Manager) UpdateEquations(names ...string) error {
	for _, name := range names {
		if !m.IsEquationExist(name) {
			return NewError(ErrCodeEquationNotFound, "equation not found", nil).WithEquation(name)
		}
	}
	m.runPass(m.graph.TopologicalSort(names...))
	return nil
}

// Update evaluates every equation flagged dirty since its last
// evaluation.
func (m *Manager) Update() {
	m.runPass(m.graph.DirtyNodes())
}

// Eval evaluates one expression against the current context.
func (m *Manager) Eval(code string) expr.EvalResult {
	return m.engine.Eval(code, m.ctx)
}

// ToDOT renders the dependency graph with nodes colored by status.
func (m *Manager) ToDOT() string {
	return m.graph.ToDOT(func(name string) (string, string) {
		eq, ok := m.equations[name]
		if !ok {
			return name, "white"
		}
		return name + "\n" + eq.status.String(), statusColor(eq.status)
	})
}

func statusColor(s expr.Status) string {
	switch s {
	case expr.StatusSuccess:
		return "lightgreen"
	case expr.StatusPending:
		return "lightgray"
	case expr.StatusStale:
		return "lightyellow"
	default:
		return "lightcoral"
	}
}

// runPass evaluates names in the given order.
func (m *Manager) runPass(names []string) {
	if len(names) == 0 {
		return
	}
	start := m.now()
	failed := 0
	for _, name := range names {
		eq, ok := m.equations[name]
		if !ok {
			continue
		}
		fields := m.evaluate(eq)
		// stale equations stay dirty so a later pass retries them
		if eq.status != expr.StatusStale {
			m.graph.ClearDirty(name)
		}
		if !eq.IsComputed() {
			failed++
		}
		if fields != 0 {
			m.publishUpdate(eq, fields)
		}
	}
	elapsed := m.now().Sub(start)
	m.metrics.ObserveUpdatePass(len(names), elapsed)
	m.logger.Debug().
		Int("evaluated", len(names)).
		Int("failed", failed).
		Dur("elapsed", elapsed).
		Msg("Update pass completed")
}

// evaluate runs one equation and reports the fields that changed. An
// equation whose group edit was rejected keeps its SyntaxError, and one
// with an unsuccessful dependency is not run and goes stale.
func (m *Manager) evaluate(eq *Equation) EquationField {
	if msg := eq.group.parseFailure; msg != "" {
		return eq.setStatus(expr.StatusSyntaxError, msg)
	}
	if dep := m.blockedBy(eq); dep != "" {
		return eq.setStatus(expr.StatusStale, "blocked by "+dep)
	}

	start := m.now()
	res := m.engine.Exec(eq.content, m.ctx)
	m.metrics.ObserveEvaluation(res.Status, m.now().Sub(start))

	if !res.OK() {
		m.ctx.Remove(eq.name)
		m.logger.Warn().
			Str("equation", eq.name).
			Str("status", res.Status.String()).
			Str("message", res.Message).
			Msg("Equation evaluation failed")
		return eq.setStatus(res.Status, res.Message)
	}
	fields := eq.setStatus(expr.StatusSuccess, "")
	fields |= eq.setValue(m.ctx.Get(eq.name))
	return fields
}

// blockedBy returns the first dependency that is a known equation without
// a successful result.
func (m *Manager) blockedBy(eq *Equation) string {
	for _, dep := range eq.dependencies {
		if d, ok := m.equations[dep]; ok && !d.IsComputed() {
			return dep
		}
	}
	return ""
}

// markParseFailure flags the group's equations with the parse error and
// everything downstream as stale. The graph is left untouched.
func (m *Manager) markParseFailure(g *Group, err error) {
	msg := err.Error()
	var pe *expr.ParseError
	if errors.As(err, &pe) {
		msg = pe.Error()
	}
	g.parseFailure = msg
	for _, eq := range g.Equations() {
		if fields := eq.setStatus(expr.StatusSyntaxError, msg); fields != 0 {
			m.publishUpdate(eq, fields)
		}
	}
	members := toSet(g.names)
	for _, name := range without(m.graph.TopologicalSort(g.names...), members) {
		eq := m.equations[name]
		dep := m.blockedBy(eq)
		if dep == "" {
			continue
		}
		if fields := eq.setStatus(expr.StatusStale, "blocked by "+dep); fields != 0 {
			m.publishUpdate(eq, fields)
		}
	}
	m.logger.Warn().
		Str("group", g.id.String()).
		Str("error", msg).
		Msg("Equation group edit rejected")
}

// Describe renders a one-line summary of every equation in evaluation
// order, for diagnostics.
func (m *Manager) Describe() string {
	var sb strings.Builder
	for _, name := range m.graph.TopologicalSortAll() {
		eq := m.equations[name]
		fmt.Fprintf(&sb, "%s [%s] = %s", name, eq.status, eq.value)
		if eq.message != "" {
			fmt.Fprintf(&sb, " (%s)", eq.message)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
