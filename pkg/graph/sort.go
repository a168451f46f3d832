package graph

import (
	"container/heap"
)

// findCycle returns a cycle path over active edges, or nil. Nodes and
// their dependents are visited in insertion order so the reported path is
// deterministic.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool, len(g.nodes))
	recStack := make(map[string]bool)
	path := make([]string, 0)

	for _, id := range g.Nodes() {
		if !visited[id] {
			if cycle := g.findCycleFrom(id, visited, recStack, path); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (g *Graph) findCycleFrom(id string, visited, recStack map[string]bool, path []string) []string {
	visited[id] = true
	recStack[id] = true
	path = append(path, id)

	for _, dependent := range g.Dependents(id) {
		if !visited[dependent] {
			if cycle := g.findCycleFrom(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			for i, p := range path {
				if p == dependent {
					cycle := append([]string(nil), path[i:]...)
					return append(cycle, dependent)
				}
			}
		}
	}

	recStack[id] = false
	return nil
}

// HasCycle reports whether the active edges form a cycle. It is false for
// any graph reachable through the public API.
func (g *Graph) HasCycle() bool {
	return g.findCycle() != nil
}

// TopologicalSort returns seeds and everything transitively depending on
// them, each after all of its dependencies. Nodes that are ready at the
// same time come out in insertion order. Unknown seeds are ignored.
func (g *Graph) TopologicalSort(seeds ...string) []string {
	relevant := make(map[string]bool)
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if g.HasNode(s) && !relevant[s] {
			relevant[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dep := range g.nodes[current].dependents {
			if !relevant[dep] {
				relevant[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return g.kahn(relevant)
}

// TopologicalSortAll orders every node.
func (g *Graph) TopologicalSortAll() []string {
	all := make(map[string]bool, len(g.nodes))
	for name := range g.nodes {
		all[name] = true
	}
	return g.kahn(all)
}

func (g *Graph) kahn(relevant map[string]bool) []string {
	if len(relevant) == 0 {
		return nil
	}
	inDegree := make(map[string]int, len(relevant))
	ready := &seqQueue{g: g}
	for name := range relevant {
		count := 0
		for dep := range g.nodes[name].dependencies {
			if relevant[dep] {
				count++
			}
		}
		inDegree[name] = count
		if count == 0 {
			ready.names = append(ready.names, name)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(relevant))
	for ready.Len() > 0 {
		name := heap.Pop(ready).(string)
		order = append(order, name)
		for dependent := range g.nodes[name].dependents {
			if !relevant[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}
	return order
}

// Levels groups every node by the length of its longest dependency chain.
// Nodes on one level do not depend on each other.
func (g *Graph) Levels() [][]string {
	inDegree := make(map[string]int, len(g.nodes))
	currentLevel := make([]string, 0)
	for name, n := range g.nodes {
		inDegree[name] = len(n.dependencies)
		if inDegree[name] == 0 {
			currentLevel = append(currentLevel, name)
		}
	}

	var levels [][]string
	for len(currentLevel) > 0 {
		g.sortBySeq(currentLevel)
		levels = append(levels, currentLevel)

		nextLevel := make([]string, 0)
		for _, name := range currentLevel {
			for dependent := range g.nodes[name].dependents {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		currentLevel = nextLevel
	}
	return levels
}

// seqQueue is a min-heap of node names keyed by insertion sequence.
type seqQueue struct {
	g     *Graph
	names []string
}

func (q *seqQueue) Len() int { return len(q.names) }
func (q *seqQueue) Less(i, j int) bool {
	return q.g.nodes[q.names[i]].seq < q.g.nodes[q.names[j]].seq
}
func (q *seqQueue) Swap(i, j int) { q.names[i], q.names[j] = q.names[j], q.names[i] }
func (q *seqQueue) Push(x any)    { q.names = append(q.names, x.(string)) }
func (q *seqQueue) Pop() any {
	last := q.names[len(q.names)-1]
	q.names = q.names[:len(q.names)-1]
	return last
}
