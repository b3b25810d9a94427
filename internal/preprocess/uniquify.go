package preprocess

import (
	"strconv"

	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// uniquify gives every static call site of a user function its own copy
// of the definition, named name_k and placed right after the original.
// Recursive calls inside the function keep pointing at the original. The
// original is dropped when no reference to it is left.
func (p *pass) uniquify() {
	t := p.t
	defs := t.Find(t.Root, true, func(id syntax.NodeID) bool {
		return t.Kind(id) == syntax.KindFunctionDef
	})
	for _, def := range defs {
		st := scope.Build(t)
		fn, ok := st.Function(def)
		if !ok || !t.IsAncestor(t.Root, def) {
			continue
		}
		var sites []syntax.NodeID
		for _, c := range st.Calls(def) {
			if !t.IsAncestor(def, c) {
				sites = append(sites, c)
			}
		}
		if len(sites) < 2 {
			continue
		}

		clones := make([]syntax.NodeID, 0, len(sites))
		for _, call := range sites {
			name := p.cloneName(fn.Name)
			cp := t.Clone(def)
			t.Node(cp).Name = name
			t.Node(t.Node(call).Func).Name = name
			clones = append(clones, cp)
		}

		block := t.Parent(def)
		keep := p.referenced(st, fn)
		var out []syntax.NodeID
		for _, s := range t.Node(block).Elts {
			if s != def || keep {
				out = append(out, s)
			}
			if s == def {
				out = append(out, clones...)
			}
		}
		t.SetStatements(block, out)
	}
}

func (p *pass) cloneName(base string) string {
	for k := 0; ; k++ {
		name := base + "_" + strconv.Itoa(k)
		if !p.names[name] {
			p.names[name] = true
			return name
		}
	}
}

// referenced reports whether any Name still refers to fn after its call
// sites have been redirected.
func (p *pass) referenced(st *scope.Tree, fn scope.Function) bool {
	t := p.t
	found := false
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		n := t.Node(id)
		if n.Kind == syntax.KindName && n.Name == fn.Name && !t.IsAncestor(fn.Node, id) &&
			st.Resolve(id) == fn.Scope {
			found = true
		}
		return !found
	})
	return found
}
