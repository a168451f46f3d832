package graph

import (
	"sort"
)

// Edge records that To depends on From.
type Edge struct {
	From string
	To   string
}

type node struct {
	seq          uint64
	dependencies map[string]struct{}
	dependents   map[string]struct{}
	dirty        bool
}

// Graph is a dependency graph over equation names.
type Graph struct {
	nodes map[string]*node

	// edges holds every stored edge, active or not.
	edges  map[Edge]struct{}
	byFrom map[string]map[string]struct{}
	byTo   map[string]map[string]struct{}

	nextSeq uint64
	batch   *Batch
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{}
	g.Reset()
	return g
}

// Reset removes every node and edge.
func (g *Graph) Reset() {
	g.nodes = make(map[string]*node)
	g.edges = make(map[Edge]struct{})
	g.byFrom = make(map[string]map[string]struct{})
	g.byTo = make(map[string]map[string]struct{})
	g.nextSeq = 0
	g.batch = nil
}

// AddNode adds a node, activating stored edges that touch it. It reports
// false when the node already exists.
func (g *Graph) AddNode(name string) (bool, error) {
	var added bool
	err := g.Batch(func(b *Batch) error {
		added = b.AddNode(name)
		return nil
	})
	return added, err
}

// RemoveNode removes a node. Its edges stay stored but become inactive.
// Removing a node never creates a cycle.
func (g *Graph) RemoveNode(name string) bool {
	return g.removeNode(name, g.batch)
}

// AddEdge stores the edge from -> to. It reports false when the edge was
// already stored.
func (g *Graph) AddEdge(from, to string) (bool, error) {
	var added bool
	err := g.Batch(func(b *Batch) error {
		added = b.AddEdge(from, to)
		return nil
	})
	return added, err
}

// RemoveEdge deletes a stored edge.
func (g *Graph) RemoveEdge(from, to string) bool {
	return g.removeEdge(Edge{From: from, To: to}, g.batch)
}

// HasNode reports whether name is a node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// HasEdge reports whether from -> to is stored.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.edges[Edge{From: from, To: to}]
	return ok
}

// IsActive reports whether from -> to is stored and both ends are nodes.
func (g *Graph) IsActive(from, to string) bool {
	return g.HasEdge(from, to) && g.HasNode(from) && g.HasNode(to)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	g.sortBySeq(names)
	return names
}

// Edges returns every stored edge sorted by From, then To.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Dependencies returns the active dependencies of name in insertion order.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return g.ordered(n.dependencies)
}

// Dependents returns the active direct dependents of name in insertion
// order.
func (g *Graph) Dependents(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return g.ordered(n.dependents)
}

// Snapshot is a comparable copy of a graph's structure.
type Snapshot struct {
	Nodes []string
	Edges []Edge
}

// Snapshot captures nodes in insertion order and all stored edges.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: g.Nodes(), Edges: g.Edges()}
}

func (g *Graph) ordered(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	g.sortBySeq(names)
	return names
}

func (g *Graph) sortBySeq(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return g.nodes[names[i]].seq < g.nodes[names[j]].seq
	})
}

// insertNode adds name with the given sequence number and activates its
// stored edges.
func (g *Graph) insertNode(name string, seq uint64, dirty bool) {
	g.nodes[name] = &node{
		seq:          seq,
		dependencies: make(map[string]struct{}),
		dependents:   make(map[string]struct{}),
		dirty:        dirty,
	}
	for to := range g.byFrom[name] {
		g.activate(Edge{From: name, To: to})
	}
	for from := range g.byTo[name] {
		g.activate(Edge{From: from, To: name})
	}
}

func (g *Graph) removeNode(name string, b *Batch) bool {
	n, ok := g.nodes[name]
	if !ok {
		return false
	}
	for to := range g.byFrom[name] {
		g.deactivate(Edge{From: name, To: to})
	}
	for from := range g.byTo[name] {
		g.deactivate(Edge{From: from, To: name})
	}
	delete(g.nodes, name)
	if b != nil {
		b.record(operation{kind: opRemoveNode, node: name, seq: n.seq, dirty: n.dirty})
	}
	return true
}

func (g *Graph) insertEdge(e Edge) {
	g.edges[e] = struct{}{}
	if g.byFrom[e.From] == nil {
		g.byFrom[e.From] = make(map[string]struct{})
	}
	g.byFrom[e.From][e.To] = struct{}{}
	if g.byTo[e.To] == nil {
		g.byTo[e.To] = make(map[string]struct{})
	}
	g.byTo[e.To][e.From] = struct{}{}
	g.activate(e)
}

func (g *Graph) removeEdge(e Edge, b *Batch) bool {
	if _, ok := g.edges[e]; !ok {
		return false
	}
	g.deactivate(e)
	delete(g.edges, e)
	delete(g.byFrom[e.From], e.To)
	if len(g.byFrom[e.From]) == 0 {
		delete(g.byFrom, e.From)
	}
	delete(g.byTo[e.To], e.From)
	if len(g.byTo[e.To]) == 0 {
		delete(g.byTo, e.To)
	}
	if b != nil {
		b.record(operation{kind: opRemoveEdge, edge: e})
	}
	return true
}

func (g *Graph) activate(e Edge) {
	from, okFrom := g.nodes[e.From]
	to, okTo := g.nodes[e.To]
	if !okFrom || !okTo {
		return
	}
	from.dependents[e.To] = struct{}{}
	to.dependencies[e.From] = struct{}{}
}

func (g *Graph) deactivate(e Edge) {
	if from, ok := g.nodes[e.From]; ok {
		delete(from.dependents, e.To)
	}
	if to, ok := g.nodes[e.To]; ok {
		delete(to.dependencies, e.From)
	}
}
