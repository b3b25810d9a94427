// Package callgraph builds the static call graph of user functions.
//
// Calls are resolved by name and scope: a call `f(...)` targets the user
// function f bound in the scope the name resolves to. Calls through
// attributes, subscripts or other values are not resolved.
package callgraph

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Graph maps a caller (a FunctionDef, or the module root for top-level
// code) to the functions it calls directly, in call order without
// duplicates.
type Graph map[syntax.NodeID][]syntax.NodeID

// Build returns the call graph of every function of t and of the module.
func Build(t *scope.Tree) Graph {
	g := Graph{t.Root: calls(t, t.Node(t.Root).Body)}
	for _, f := range t.Functions {
		if t.IsAncestor(t.Root, f.Node) {
			g[f.Node] = calls(t, f.Body)
		}
	}
	return g
}

// calls collects the resolved callees of the calls under body, without
// descending into nested function definitions.
func calls(t *scope.Tree, body syntax.NodeID) []syntax.NodeID {
	var (
		out  []syntax.NodeID
		seen intsets.Sparse
	)
	t.Walk(body, func(id syntax.NodeID) bool {
		switch t.Kind(id) {
		case syntax.KindFunctionDef:
			return false
		case syntax.KindCall:
			if f, ok := t.Callee(id); ok && seen.Insert(int(f.Node)) {
				out = append(out, f.Node)
			}
		}
		return true
	})
	return out
}

// Reachable returns the subgraph of g reachable from root, root included.
func Reachable(g Graph, root syntax.NodeID) Graph {
	out := Graph{}
	var visited intsets.Sparse
	stack := []syntax.NodeID{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Insert(int(n)) {
			continue
		}
		out[n] = g[n]
		stack = append(stack, g[n]...)
	}
	return out
}

// From returns the part of g reachable from root. Unlike Reachable, root
// may be any node: the calls made directly under it form its entry.
func From(t *scope.Tree, g Graph, root syntax.NodeID) Graph {
	body := root
	switch t.Kind(root) {
	case syntax.KindFunctionDef, syntax.KindModule:
		body = t.Node(root).Body
	}
	ext := make(Graph, len(g)+1)
	for k, v := range g {
		ext[k] = v
	}
	ext[root] = calls(t, body)
	return Reachable(ext, root)
}

// Callers returns the nodes of g sorted by id, for deterministic output.
func (g Graph) Callers() []syntax.NodeID {
	out := make([]syntax.NodeID, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
