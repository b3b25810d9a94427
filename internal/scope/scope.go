// Package scope computes lexical scopes and the definition catalogs of a
// preprocessed tree.
//
// A scope is identified by the FunctionDef node that opens it, or by the
// module root for the global scope. Two identifier occurrences denote the
// same variable when they have the same name and resolve to the same scope.
package scope

import (
	"sort"

	"github.com/gnoverse/pplint/internal/syntax"
)

// Assignment is a single-target definition. Seq totally orders the
// assignments of a tree in source order.
type Assignment struct {
	Node   syntax.NodeID
	Target syntax.NodeID
	Value  syntax.NodeID
	Name   string
	Scope  syntax.NodeID
	Seq    int
}

// Function is a user function definition.
type Function struct {
	Node   syntax.NodeID
	Name   string
	Params []syntax.NodeID
	Body   syntax.NodeID
	// Scope is where Name is bound, not the scope the body opens.
	Scope syntax.NodeID
}

// Tree is a syntax tree annotated with scopes. It must not be mutated
// after Build.
type Tree struct {
	*syntax.Tree

	Assignments []Assignment
	Functions   []Function
	UserSymbols map[string]bool

	assignIdx map[syntax.NodeID]int
	funcIdx   map[syntax.NodeID]int
	locals    map[syntax.NodeID]map[string]bool
}

// Build annotates t. t is expected to have been preprocessed, so every
// assignment has a single target.
func Build(t *syntax.Tree) *Tree {
	st := &Tree{
		Tree:        t,
		UserSymbols: make(map[string]bool),
		assignIdx:   make(map[syntax.NodeID]int),
		funcIdx:     make(map[syntax.NodeID]int),
		locals:      make(map[syntax.NodeID]map[string]bool),
	}
	st.collectLocals()

	t.Walk(t.Root, func(id syntax.NodeID) bool {
		n := t.Node(id)
		switch n.Kind {
		case syntax.KindAssign:
			target := n.Target
			if !target.Valid() && len(n.Elts) > 0 {
				target = n.Elts[0]
			}
			base := BaseName(t, target)
			if !base.Valid() {
				return true
			}
			a := Assignment{
				Node:   id,
				Target: target,
				Value:  n.Value,
				Name:   t.Node(base).Name,
				Seq:    len(st.Assignments),
			}
			a.Scope = st.Resolve(base)
			st.assignIdx[id] = len(st.Assignments)
			st.Assignments = append(st.Assignments, a)
			st.UserSymbols[a.Name] = true
		case syntax.KindFunctionDef:
			f := Function{
				Node:   id,
				Name:   n.Name,
				Params: n.Elts,
				Body:   n.Body,
				Scope:  st.Enclosing(id),
			}
			st.funcIdx[id] = len(st.Functions)
			st.Functions = append(st.Functions, f)
			st.UserSymbols[f.Name] = true
			for _, p := range f.Params {
				st.UserSymbols[t.Node(p).Name] = true
			}
		case syntax.KindFor:
			if t.Kind(n.Target) == syntax.KindName {
				st.UserSymbols[t.Node(n.Target).Name] = true
			}
		case syntax.KindWith:
			if n.Target.Valid() && t.Kind(n.Target) == syntax.KindName {
				st.UserSymbols[t.Node(n.Target).Name] = true
			}
		}
		return true
	})
	return st
}

// collectLocals records, per function, the names bound in its body: params,
// plain-name assignment and loop targets, with aliases and nested def names.
// Names bound at module level belong to the root.
func (st *Tree) collectLocals() {
	t := st.Tree
	bind := func(at syntax.NodeID, name string) {
		scope := st.Enclosing(at)
		m := st.locals[scope]
		if m == nil {
			m = make(map[string]bool)
			st.locals[scope] = m
		}
		m[name] = true
	}
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		n := t.Node(id)
		switch n.Kind {
		case syntax.KindFunctionDef:
			bind(id, n.Name)
			for _, p := range n.Elts {
				bind(p, t.Node(p).Name)
			}
		case syntax.KindAssign:
			for _, tg := range append(append([]syntax.NodeID(nil), n.Elts...), n.Target) {
				if tg.Valid() && t.Kind(tg) == syntax.KindName {
					bind(tg, t.Node(tg).Name)
				}
			}
		case syntax.KindFor, syntax.KindWith:
			if n.Target.Valid() && t.Kind(n.Target) == syntax.KindName {
				bind(n.Target, t.Node(n.Target).Name)
			}
		}
		return true
	})
}

// Enclosing returns the scope id sits in: the innermost function whose
// body contains id, or the module root. Params belong to their function;
// decorators, defaults and annotations belong to the enclosing scope.
func (st *Tree) Enclosing(id syntax.NodeID) syntax.NodeID {
	t := st.Tree
	if t.Kind(id) == syntax.KindParam {
		return t.Parent(id)
	}
	child := id
	for p := t.Parent(id); p.Valid(); child, p = p, t.Parent(p) {
		if t.Kind(p) == syntax.KindFunctionDef && t.Node(p).Body == child {
			return p
		}
	}
	return t.Root
}

// Resolve returns the scope a Name occurrence refers to: the innermost
// enclosing function binding the name locally, else the global scope.
func (st *Tree) Resolve(name syntax.NodeID) syntax.NodeID {
	return st.ResolveName(st.Tree.Node(name).Name, st.Enclosing(name))
}

// ResolveName resolves name as seen from scope.
func (st *Tree) ResolveName(name string, scope syntax.NodeID) syntax.NodeID {
	t := st.Tree
	for s := scope; s.Valid() && s != t.Root; s = st.Enclosing(s) {
		if st.locals[s][name] {
			return s
		}
	}
	return t.Root
}

// ScopeOf returns the scope of the variable bound or read at id. id may be
// a Name, a Param, an Assign, a For or a FunctionDef.
func (st *Tree) ScopeOf(id syntax.NodeID) syntax.NodeID {
	t := st.Tree
	switch t.Kind(id) {
	case syntax.KindParam:
		return t.Parent(id)
	case syntax.KindAssign:
		if a, ok := st.Assignment(id); ok {
			return a.Scope
		}
	case syntax.KindFor:
		return st.ScopeOf(t.Node(id).Target)
	case syntax.KindFunctionDef:
		return st.ResolveName(t.Node(id).Name, st.Enclosing(id))
	case syntax.KindName:
		return st.Resolve(id)
	case syntax.KindSubscript, syntax.KindAttribute:
		if b := BaseName(t, id); b.Valid() {
			return st.Resolve(b)
		}
	}
	return st.Enclosing(id)
}

// SameVariable reports whether a and b have the same name and scope.
func (st *Tree) SameVariable(a, b syntax.NodeID) bool {
	na, nb := st.NameOf(a), st.NameOf(b)
	return na != "" && na == nb && st.ScopeOf(a) == st.ScopeOf(b)
}

// NameOf returns the variable name bound or read at id, or "".
func (st *Tree) NameOf(id syntax.NodeID) string {
	t := st.Tree
	n := t.Node(id)
	switch n.Kind {
	case syntax.KindName, syntax.KindParam, syntax.KindFunctionDef:
		return n.Name
	case syntax.KindAssign:
		if a, ok := st.Assignment(id); ok {
			return a.Name
		}
	case syntax.KindFor:
		return st.NameOf(n.Target)
	case syntax.KindSubscript, syntax.KindAttribute:
		if b := BaseName(t, id); b.Valid() {
			return t.Node(b).Name
		}
	}
	return ""
}

// Assignment returns the catalog entry of an Assign node.
func (st *Tree) Assignment(id syntax.NodeID) (Assignment, bool) {
	i, ok := st.assignIdx[id]
	if !ok {
		return Assignment{}, false
	}
	return st.Assignments[i], true
}

// Function returns the catalog entry of a FunctionDef node.
func (st *Tree) Function(id syntax.NodeID) (Function, bool) {
	i, ok := st.funcIdx[id]
	if !ok {
		return Function{}, false
	}
	return st.Functions[i], true
}

// Callee resolves the function a call invokes, if it is a user function
// called by plain name.
func (st *Tree) Callee(call syntax.NodeID) (Function, bool) {
	t := st.Tree
	fn := t.Node(call).Func
	if !fn.Valid() || t.Kind(fn) != syntax.KindName {
		return Function{}, false
	}
	return st.FunctionNamed(t.Node(fn).Name, st.Resolve(fn))
}

// FunctionNamed returns the last definition of name bound in scope.
func (st *Tree) FunctionNamed(name string, scope syntax.NodeID) (Function, bool) {
	var (
		out   Function
		found bool
	)
	for _, f := range st.Functions {
		if f.Name == name && f.Scope == scope {
			out, found = f, true
		}
	}
	return out, found
}

// Calls returns every call in the tree that resolves to fn, in source order.
func (st *Tree) Calls(fn syntax.NodeID) []syntax.NodeID {
	t := st.Tree
	var out []syntax.NodeID
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		if t.Kind(id) == syntax.KindCall {
			if f, ok := st.Callee(id); ok && f.Node == fn {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// Definitions returns the assignments to name in scope ordered by Seq.
func (st *Tree) Definitions(name string, scope syntax.NodeID) []Assignment {
	var out []Assignment
	for _, a := range st.Assignments {
		if a.Name == name && a.Scope == scope {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// BaseName returns the Name at the root of a Name, Subscript or Attribute
// target, or NoNode.
func BaseName(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	for id.Valid() {
		switch t.Kind(id) {
		case syntax.KindName:
			return id
		case syntax.KindSubscript, syntax.KindAttribute:
			id = t.Node(id).Value
		default:
			return syntax.NoNode
		}
	}
	return syntax.NoNode
}

// Reads returns the Name loads inside id that refer to user symbols,
// excluding assignment targets and the bodies of nested definitions. The
// base of a subscripted or attributed target is a read too.
func (st *Tree) Reads(id syntax.NodeID) []syntax.NodeID {
	t := st.Tree
	var out []syntax.NodeID
	var visit func(syntax.NodeID)
	visit = func(n syntax.NodeID) {
		if !n.Valid() {
			return
		}
		node := t.Node(n)
		switch node.Kind {
		case syntax.KindName:
			if st.UserSymbols[node.Name] {
				out = append(out, n)
			}
			return
		case syntax.KindFunctionDef:
			for _, d := range node.Decorators {
				visit(d)
			}
			return
		case syntax.KindAssign:
			if tg := node.Target; tg.Valid() && t.Kind(tg) != syntax.KindName {
				visit(BaseName(t, tg))
				if t.Kind(tg) == syntax.KindSubscript {
					visit(t.Node(tg).Index)
				}
			}
			visit(node.Value)
			return
		case syntax.KindFor:
			visit(node.Iter)
			return
		case syntax.KindWith:
			visit(node.Value)
			return
		case syntax.KindIf, syntax.KindWhile:
			visit(node.Test)
			return
		case syntax.KindBlock:
			return
		}
		for _, c := range node.Children() {
			visit(c)
		}
	}
	visit(id)
	return out
}
