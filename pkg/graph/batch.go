package graph

type opKind int

const (
	opAddNode opKind = iota
	opRemoveNode
	opAddEdge
	opRemoveEdge
)

type operation struct {
	kind  opKind
	node  string
	seq   uint64
	dirty bool
	edge  Edge
}

// Batch groups mutations that are validated together. Cycle checks are
// deferred until the batch function returns.
type Batch struct {
	g   *Graph
	ops []operation
}

// Batch runs fn and commits its mutations if fn succeeds and the result
// is acyclic. Otherwise every mutation is undone in reverse order and the
// error, or a *CycleError, is returned.
func (g *Graph) Batch(fn func(b *Batch) error) error {
	if g.batch != nil {
		return ErrBatchInProgress
	}
	b := &Batch{g: g}
	g.batch = b
	err := fn(b)
	g.batch = nil

	if err == nil {
		if cycle := g.findCycle(); cycle != nil {
			err = &CycleError{Path: cycle}
		}
	}
	if err != nil {
		b.rollback()
		return err
	}
	return nil
}

// AddNode adds a node. It reports false when the node already exists.
func (b *Batch) AddNode(name string) bool {
	g := b.g
	if _, ok := g.nodes[name]; ok {
		return false
	}
	seq := g.nextSeq
	g.nextSeq++
	g.insertNode(name, seq, false)
	b.record(operation{kind: opAddNode, node: name, seq: seq})
	return true
}

// RemoveNode removes a node, deactivating its edges.
func (b *Batch) RemoveNode(name string) bool {
	return b.g.removeNode(name, b)
}

// AddEdge stores from -> to. It reports false when already stored.
func (b *Batch) AddEdge(from, to string) bool {
	e := Edge{From: from, To: to}
	if _, ok := b.g.edges[e]; ok {
		return false
	}
	b.g.insertEdge(e)
	b.record(operation{kind: opAddEdge, edge: e})
	return true
}

// RemoveEdge deletes a stored edge.
func (b *Batch) RemoveEdge(from, to string) bool {
	return b.g.removeEdge(Edge{From: from, To: to}, b)
}

// HasNode reports whether name is currently a node.
func (b *Batch) HasNode(name string) bool {
	return b.g.HasNode(name)
}

// HasEdge reports whether from -> to is currently stored.
func (b *Batch) HasEdge(from, to string) bool {
	return b.g.HasEdge(from, to)
}

func (b *Batch) record(op operation) {
	b.ops = append(b.ops, op)
}

// rollback undoes the recorded operations. Re-added nodes keep their
// original sequence number so insertion order survives.
func (b *Batch) rollback() {
	g := b.g
	for i := len(b.ops) - 1; i >= 0; i-- {
		op := b.ops[i]
		switch op.kind {
		case opAddNode:
			g.removeNode(op.node, nil)
			if op.seq+1 == g.nextSeq {
				g.nextSeq = op.seq
			}
		case opRemoveNode:
			g.insertNode(op.node, op.seq, op.dirty)
		case opAddEdge:
			g.removeEdge(op.edge, nil)
		case opRemoveEdge:
			g.insertEdge(op.edge)
		}
	}
	b.ops = nil
}
