// Package dataflow answers reaching-definition and control-dependence
// queries over the control flow graphs of a program.
//
// A definition is the syntax node that binds a variable: an Assign
// statement, a Param, the For statement binding its loop variable, or a
// FunctionDef. Queries return definitions, not their transitive closure;
// callers expand them as needed.
package dataflow

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/gnoverse/pplint/internal/analysis/cfg"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Analyzer holds the per-session memo tables. It is not safe for
// concurrent use.
type Analyzer struct {
	tree *scope.Tree
	prog *cfg.Program

	entry map[entryKey][]syntax.NodeID
	pdom  map[*cfg.Graph]map[*cfg.Node]*intsets.Sparse
	sites map[syntax.NodeID][]syntax.NodeID
}

type variable struct {
	name  string
	scope syntax.NodeID
}

type entryKey struct {
	branch *cfg.Node
	v      variable
}

// New returns an analyzer over prog.
func New(prog *cfg.Program) *Analyzer {
	return &Analyzer{
		tree:  prog.Tree,
		prog:  prog,
		entry: make(map[entryKey][]syntax.NodeID),
		pdom:  make(map[*cfg.Graph]map[*cfg.Node]*intsets.Sparse),
		sites: make(map[syntax.NodeID][]syntax.NodeID),
	}
}

// Program returns the program the analyzer queries.
func (a *Analyzer) Program() *cfg.Program { return a.prog }

// callSites returns the calls resolving to the function fn.
func (a *Analyzer) callSites(fn syntax.NodeID) []syntax.NodeID {
	if s, ok := a.sites[fn]; ok {
		return s
	}
	s := a.tree.Calls(fn)
	a.sites[fn] = s
	return s
}

// DataDependencies returns the definitions the value computed at node may
// read.
//
// For a FunctionDef these are the dependencies of its return statements.
// For a Param they are the dependencies of the matching argument at every
// call site. Otherwise every user symbol read by node is resolved to the
// definitions reaching node's position in the CFG, minus those in an if
// arm mutually exclusive with node.
func (a *Analyzer) DataDependencies(node syntax.NodeID) []syntax.NodeID {
	t := a.tree
	out := newSet()
	switch t.Kind(node) {
	case syntax.KindFunctionDef:
		for _, ret := range a.Returns(node) {
			out.add(a.DataDependencies(ret)...)
		}
		return out.sorted(t)
	case syntax.KindParam:
		for _, arg := range a.Arguments(node) {
			out.add(a.DataDependencies(arg)...)
		}
		return out.sorted(t)
	}

	for _, id := range a.reads(node) {
		v := variable{name: t.Node(id).Name, scope: t.Resolve(id)}
		for _, def := range a.definitions(node, v) {
			if !DifferentBranch(t.Tree, def, node) {
				out.add(def)
			}
		}
		if f, ok := t.FunctionNamed(v.name, v.scope); ok {
			out.add(f.Node)
		}
	}
	return out.sorted(t)
}

// reads returns the user symbols node depends on: the test of an if or
// while, the iterable of a for, else every user symbol read inside node.
func (a *Analyzer) reads(node syntax.NodeID) []syntax.NodeID {
	t := a.tree
	n := t.Node(node)
	switch n.Kind {
	case syntax.KindIf, syntax.KindWhile:
		return t.Reads(n.Test)
	case syntax.KindFor:
		return t.Reads(n.Iter)
	}
	return t.Reads(node)
}

// Returns lists the explicit return statements of fn, nested definitions
// excluded.
func (a *Analyzer) Returns(fn syntax.NodeID) []syntax.NodeID {
	t := a.tree
	var out []syntax.NodeID
	t.Walk(t.Node(fn).Body, func(id syntax.NodeID) bool {
		switch t.Kind(id) {
		case syntax.KindFunctionDef:
			return false
		case syntax.KindReturn:
			out = append(out, id)
		}
		return true
	})
	return out
}

// Arguments returns the actual argument expression bound to param at
// every call site, matched by position or keyword.
func (a *Analyzer) Arguments(param syntax.NodeID) []syntax.NodeID {
	t := a.tree
	fn := t.Parent(param)
	pos := -1
	for i, p := range t.Node(fn).Elts {
		if p == param {
			pos = i
		}
	}
	name := t.Node(param).Name
	var out []syntax.NodeID
	for _, call := range a.callSites(fn) {
		c := t.Node(call)
		if kw := t.Keyword(call, name); kw.Valid() {
			out = append(out, kw)
		} else if pos >= 0 && pos < len(c.Elts) {
			out = append(out, c.Elts[pos])
		}
	}
	return out
}

// definitions returns the definitions of v reaching node. A free variable
// of a function may be bound at any time before a call, so every binding
// of it counts. Nodes without a CFG position (unreachable statements,
// with-item expressions) fall back to the bindings preceding them in
// source order.
func (a *Analyzer) definitions(node syntax.NodeID, v variable) []syntax.NodeID {
	t := a.tree
	at := a.prog.Locate(node)
	if at == nil {
		start := t.Node(node).Span.StartByte
		return a.bindings(v, func(def syntax.NodeID) bool {
			return t.Node(def).Span.StartByte < start
		})
	}
	if a.prog.GraphOf(at).Root != v.scope {
		return a.bindings(v, func(syntax.NodeID) bool { return true })
	}
	w := &walker{a: a, v: v, inProgress: map[*cfg.Node]bool{}}
	defs, _ := w.reaching(at)
	return defs
}

// bindings returns every assignment, parameter and loop binding v that
// keep accepts.
func (a *Analyzer) bindings(v variable, keep func(syntax.NodeID) bool) []syntax.NodeID {
	t := a.tree
	var out []syntax.NodeID
	for _, def := range t.Definitions(v.name, v.scope) {
		if keep(def.Node) {
			out = append(out, def.Node)
		}
	}
	if f, ok := t.Function(v.scope); ok {
		for _, p := range f.Params {
			if t.Node(p).Name == v.name && keep(p) {
				out = append(out, p)
			}
		}
	}
	t.Walk(v.scope, func(id syntax.NodeID) bool {
		n := t.Node(id)
		if n.Kind == syntax.KindFor && t.Kind(n.Target) == syntax.KindName &&
			t.Node(n.Target).Name == v.name && t.Resolve(n.Target) == v.scope && keep(id) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// walker runs the backward reaching-definitions search for one variable.
type walker struct {
	a          *Analyzer
	v          variable
	inProgress map[*cfg.Node]bool
}

// defines reports whether n binds w.v, and whether the binding replaces
// the previous value. Indexed and attribute writes do not.
func (w *walker) defines(n *cfg.Node) (def syntax.NodeID, kills bool) {
	t := w.a.tree
	switch n.Kind {
	case cfg.Assign:
		asg, ok := t.Assignment(n.Syntax)
		if ok && asg.Name == w.v.name && asg.Scope == w.v.scope {
			return n.Syntax, t.Kind(asg.Target) == syntax.KindName
		}
	case cfg.FuncArg:
		if t.Node(n.Syntax).Name == w.v.name && t.Parent(n.Syntax) == w.v.scope {
			return n.Syntax, true
		}
	case cfg.LoopIter:
		target := t.Node(n.Syntax).Target
		if t.Kind(target) == syntax.KindName && t.Node(target).Name == w.v.name && t.Resolve(target) == w.v.scope {
			return n.Syntax, true
		}
	}
	return syntax.NoNode, false
}

// reaching returns the definitions reaching the entry of n. A search that
// runs into a branch whose own search is still in progress stops there and
// reports that branch as a blocker; a branch's result is memoized once no
// blocker other than the branch itself remains.
func (w *walker) reaching(n *cfg.Node) ([]syntax.NodeID, []*cfg.Node) {
	if n.Kind == cfg.Branch {
		key := entryKey{branch: n, v: w.v}
		if defs, ok := w.a.entry[key]; ok {
			return defs, nil
		}
		if w.inProgress[n] {
			return nil, []*cfg.Node{n}
		}
		w.inProgress[n] = true
		defer delete(w.inProgress, n)
	}

	out := newSet()
	var blockers []*cfg.Node
	visited := map[*cfg.Node]bool{}
	stack := append([]*cfg.Node(nil), n.Parents...)
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[m] {
			continue
		}
		visited[m] = true
		if def, kills := w.defines(m); def.Valid() {
			out.add(def)
			if kills {
				continue
			}
		}
		switch m.Kind {
		case cfg.Start, cfg.FuncStart:
			continue
		case cfg.Branch:
			if m == n {
				continue
			}
			defs, blocked := w.reaching(m)
			out.add(defs...)
			for _, b := range blocked {
				if b != n {
					blockers = append(blockers, b)
				}
			}
			continue
		}
		stack = append(stack, m.Parents...)
	}

	defs := out.list()
	if n.Kind == cfg.Branch && len(blockers) == 0 {
		w.a.entry[entryKey{branch: n, v: w.v}] = defs
	}
	return defs, blockers
}

// DifferentBranch reports whether a and b sit in opposite arms of the same
// if statement.
func DifferentBranch(t *syntax.Tree, a, b syntax.NodeID) bool {
	for p := t.Parent(a); p.Valid(); p = t.Parent(p) {
		n := t.Node(p)
		if n.Kind != syntax.KindIf || !n.Else.Valid() {
			continue
		}
		if t.IsAncestor(n.Body, a) && t.IsAncestor(n.Else, b) ||
			t.IsAncestor(n.Body, b) && t.IsAncestor(n.Else, a) {
			return true
		}
	}
	return false
}

// nodeSet is an insertion-ordered set of syntax nodes.
type nodeSet struct {
	seen intsets.Sparse
	ids  []syntax.NodeID
}

func newSet() *nodeSet { return &nodeSet{} }

func (s *nodeSet) add(ids ...syntax.NodeID) {
	for _, id := range ids {
		if s.seen.Insert(int(id)) {
			s.ids = append(s.ids, id)
		}
	}
}

func (s *nodeSet) list() []syntax.NodeID { return s.ids }

// sorted returns the members in source order.
func (s *nodeSet) sorted(t *scope.Tree) []syntax.NodeID {
	out := append([]syntax.NodeID(nil), s.ids...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := t.Node(out[i]).Span.StartByte, t.Node(out[j]).Span.StartByte
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
