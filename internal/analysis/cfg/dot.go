package cfg

import (
	"fmt"
	"io"
	"strings"
)

// PrintDot writes g in Graphviz format. label renders the statement of a
// node; nodes without a statement text are shown by kind.
func (g *Graph) PrintDot(w io.Writer, label func(*Node) string) {
	name := func(n *Node) string {
		text := strings.ReplaceAll(label(n), `"`, `'`)
		if text == "" {
			return fmt.Sprintf("%s %d", n.Kind, n.ID)
		}
		return fmt.Sprintf("%s %d: %s", n.Kind, n.ID, text)
	}
	fmt.Fprintf(w, "\ndigraph mgraph {\n\tmode=\"heir\";\n\tsplines=\"ortho\";\n\n")
	for _, n := range g.Nodes {
		for _, c := range n.Children {
			fmt.Fprintf(w, "\t\"%s\" -> \"%s\"\n", name(n), name(c))
		}
	}
	fmt.Fprintf(w, "}\n")
}
