package graph

import (
	"fmt"
	"strings"
)

// NodeStyle returns the label and fill color used to draw a node.
type NodeStyle func(name string) (label, color string)

// ToDOT generates a DOT format representation of the graph for
// visualization. Nodes are clustered by level; inactive edges to missing
// nodes are drawn dotted against a placeholder.
func (g *Graph) ToDOT(style NodeStyle) string {
	if style == nil {
		style = func(name string) (string, string) { return name, "white" }
	}

	var sb strings.Builder
	sb.WriteString("digraph Equations {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range g.Levels() {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, name := range names {
			label, color := style(name)
			sb.WriteString(fmt.Sprintf("    %q [label=%q, fillcolor=%q, style=\"filled,rounded\"];\n",
				name, label, color))
		}
		sb.WriteString("  }\n\n")
	}

	missing := make(map[string]bool)
	for _, e := range g.Edges() {
		edgeStyle := "style=solid, color=black"
		if !g.HasNode(e.From) || !g.HasNode(e.To) {
			edgeStyle = "style=dotted, color=gray"
			for _, end := range []string{e.From, e.To} {
				if !g.HasNode(end) && !missing[end] {
					missing[end] = true
					sb.WriteString(fmt.Sprintf("  %q [style=dashed, color=gray];\n", end))
				}
			}
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q [%s];\n", e.From, e.To, edgeStyle))
	}

	sb.WriteString("}\n")
	return sb.String()
}
