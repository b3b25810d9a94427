package cfg

import "fmt"

// Verify checks the structural invariants of g.
func (g *Graph) Verify() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	}
	if len(g.Start.Parents) != 0 || len(g.Start.Children) != 1 {
		return fail("start %s has %d parents and %d children", g.Start, len(g.Start.Parents), len(g.Start.Children))
	}
	if len(g.End.Parents) != 1 || len(g.End.Children) != 0 {
		return fail("end %s has %d parents and %d children", g.End, len(g.End.Parents), len(g.End.Children))
	}

	var branches []*Node
	for _, n := range g.Nodes {
		for _, c := range n.Children {
			if !contains(c.Parents, n) {
				return fail("edge %s -> %s has no back edge", n, c)
			}
		}
		for _, p := range n.Parents {
			if !contains(p.Children, n) {
				return fail("edge %s -> %s has no forward edge", p, n)
			}
		}
		switch n.Kind {
		case Start, FuncStart, End:
		case Branch:
			if n.Pair == nil || n.Pair.Kind != Join || n.Pair.Pair != n {
				return fail("branch %s is not paired with a join", n)
			}
			branches = append(branches, n)
		case Join, FuncJoin:
			if len(n.Children) != 1 {
				return fail("join %s has %d children", n, len(n.Children))
			}
			if n.Kind == Join && (n.Pair == nil || n.Pair.Pair != n) {
				return fail("join %s is not paired with a branch", n)
			}
		default:
			if len(n.Parents) != 1 || len(n.Children) != 1 {
				return fail("%s has %d parents and %d children", n, len(n.Parents), len(n.Children))
			}
		}
	}

	// Branch regions must nest: with b1 and the join of b2 removed, b2
	// cannot reach the join of b1. A break leaves every region up to its
	// loop at once, so its edge is not followed.
	for _, b1 := range branches {
		for _, b2 := range branches {
			if b1 == b2 {
				continue
			}
			if reachable(b2, b1.Pair, b1, b2.Pair) {
				return fail("regions of %s and %s interleave", b1, b2)
			}
		}
	}
	return nil
}

func contains(nodes []*Node, n *Node) bool {
	for _, m := range nodes {
		if m == n {
			return true
		}
	}
	return false
}

// reachable reports whether to can be reached from from without passing
// through a blocked node.
func reachable(from, to *Node, blocked ...*Node) bool {
	seen := map[*Node]bool{}
	for _, b := range blocked {
		seen[b] = true
	}
	stack := []*Node{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Kind == Break {
			continue
		}
		for _, c := range n.Children {
			if c == to {
				return true
			}
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}
