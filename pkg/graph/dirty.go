package graph

// MarkDirty flags name for recomputation, and with propagate every node
// depending on it.
func (g *Graph) MarkDirty(name string, propagate bool) {
	n, ok := g.nodes[name]
	if !ok {
		return
	}
	n.dirty = true
	if !propagate {
		return
	}
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dependent := range g.nodes[current].dependents {
			if !seen[dependent] {
				seen[dependent] = true
				g.nodes[dependent].dirty = true
				queue = append(queue, dependent)
			}
		}
	}
}

// IsDirty reports whether name is flagged.
func (g *Graph) IsDirty(name string) bool {
	n, ok := g.nodes[name]
	return ok && n.dirty
}

// ClearDirty clears the flag on name.
func (g *Graph) ClearDirty(name string) {
	if n, ok := g.nodes[name]; ok {
		n.dirty = false
	}
}

// DirtyNodes returns flagged nodes in topological order.
func (g *Graph) DirtyNodes() []string {
	var out []string
	for _, name := range g.TopologicalSortAll() {
		if g.nodes[name].dirty {
			out = append(out, name)
		}
	}
	return out
}
