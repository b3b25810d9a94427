package dataflow

import (
	"golang.org/x/tools/container/intsets"

	"github.com/gnoverse/pplint/internal/analysis/cfg"
	"github.com/gnoverse/pplint/internal/syntax"
)

// ControlParents returns the If, While and For statements that decide
// whether node executes.
//
// These are the statements enclosing node inside its function (excluding
// the one whose test or iterable node is part of), the branches node is
// control dependent on in the CFG (an earlier `if c: return` makes the rest
// of the function depend on c), and the control parents of every call site
// of the function containing node. For a FunctionDef they are the control
// parents of its returns.
func (a *Analyzer) ControlParents(node syntax.NodeID) []syntax.NodeID {
	out := newSet()
	a.controlParents(node, out, map[syntax.NodeID]bool{})
	return out.sorted(a.tree)
}

func (a *Analyzer) controlParents(node syntax.NodeID, out *nodeSet, seenFn map[syntax.NodeID]bool) {
	t := a.tree
	if t.Kind(node) == syntax.KindFunctionDef {
		if g, ok := a.prog.Functions[node]; ok {
			for _, n := range g.Nodes {
				if n.Kind == cfg.Return {
					out.add(a.dependsOn(n)...)
				}
			}
		}
		return
	}

	child := node
	fn := syntax.NoNode
	for p := t.Parent(node); p.Valid(); child, p = p, t.Parent(p) {
		n := t.Node(p)
		if n.Kind == syntax.KindFunctionDef {
			if child == n.Body {
				fn = p
			}
			break
		}
		switch n.Kind {
		case syntax.KindIf, syntax.KindWhile:
			if child != n.Test {
				out.add(p)
			}
		case syntax.KindFor:
			if child != n.Iter {
				out.add(p)
			}
		}
	}

	if at := a.prog.Locate(node); at != nil {
		out.add(a.dependsOn(at)...)
	}

	if fn.Valid() && !seenFn[fn] {
		seenFn[fn] = true
		for _, call := range a.callSites(fn) {
			a.controlParents(call, out, seenFn)
		}
	}
}

// dependsOn returns the statements of the branches n is directly control
// dependent on: branches with a successor post-dominated by n that n does
// not strictly post-dominate.
func (a *Analyzer) dependsOn(n *cfg.Node) []syntax.NodeID {
	g := a.prog.GraphOf(n)
	pdom := a.postDominators(g)
	var out []syntax.NodeID
	for _, b := range g.Nodes {
		if b.Kind != cfg.Branch || b == n || pdom[b].Has(n.ID) {
			continue
		}
		for _, c := range b.Children {
			if pdom[c].Has(n.ID) {
				out = append(out, b.Syntax)
				break
			}
		}
	}
	return out
}

// postDominators computes, for every node of g, the set of node ids on
// every path from it to End.
func (a *Analyzer) postDominators(g *cfg.Graph) map[*cfg.Node]*intsets.Sparse {
	if pd, ok := a.pdom[g]; ok {
		return pd
	}
	var all intsets.Sparse
	for _, n := range g.Nodes {
		all.Insert(n.ID)
	}
	pd := make(map[*cfg.Node]*intsets.Sparse, len(g.Nodes))
	for _, n := range g.Nodes {
		s := &intsets.Sparse{}
		if n == g.End {
			s.Insert(n.ID)
		} else {
			s.Copy(&all)
		}
		pd[n] = s
	}
	for changed := true; changed; {
		changed = false
		for i := len(g.Nodes) - 1; i >= 0; i-- {
			n := g.Nodes[i]
			if n == g.End || len(n.Children) == 0 {
				continue
			}
			var next intsets.Sparse
			next.Copy(pd[n.Children[0]])
			for _, c := range n.Children[1:] {
				next.IntersectionWith(pd[c])
			}
			next.Insert(n.ID)
			if !next.Equals(pd[n]) {
				pd[n].Copy(&next)
				changed = true
			}
		}
	}
	a.pdom[g] = pd
	return pd
}
