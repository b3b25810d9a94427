package preprocess

import "github.com/gnoverse/pplint/internal/syntax"

// hoist gives every random-variable call its own assignment statement so
// that a definition is always an Assign whose value is the call.
//
//	pm.Normal("x", 0, 1)        ->  __TMP__0 = pm.Normal("x", 0, 1)
//	y = f(pm.Normal("x", 0, 1))  ->  __TMP__1 = pm.Normal("x", 0, 1); y = f(__TMP__1)
//
// Calls nested in the arguments of another random-variable call are
// hoisted first so the temporaries are defined in evaluation order.
func (p *pass) hoist(isRV func(*syntax.Tree, syntax.NodeID) bool) {
	t := p.t
	p.rewriteBlocks(func(s syntax.NodeID) []syntax.NodeID {
		n := t.Node(s)
		var out []syntax.NodeID
		for _, root := range hoistRoots(t, s) {
			for _, call := range postorderCalls(t, root) {
				if !isRV(t, call) {
					continue
				}
				parent := t.Parent(call)
				if parent == s && (n.Kind == syntax.KindAssign || n.Kind == syntax.KindExprStmt) {
					continue
				}
				tmp := p.fresh()
				span := t.Node(call).Span
				t.Replace(parent, call, p.name(tmp, span))
				out = append(out, p.assign(p.name(tmp, span), call, span))
				n = t.Node(s)
			}
		}
		if n.Kind == syntax.KindExprStmt && isRV(t, n.Value) {
			value := n.Value
			span := n.Span
			t.Replace(s, value, syntax.NoNode)
			out = append(out, p.assign(p.name(p.fresh(), span), value, span))
			return out
		}
		return append(out, s)
	})
}

// hoistRoots returns the expressions of s evaluated before s itself runs;
// nested blocks are visited by their own rewrite.
func hoistRoots(t *syntax.Tree, s syntax.NodeID) []syntax.NodeID {
	n := t.Node(s)
	switch n.Kind {
	case syntax.KindAssign:
		roots := []syntax.NodeID{n.Value}
		if t.Kind(n.Target) == syntax.KindSubscript {
			roots = append(roots, t.Node(n.Target).Index)
		}
		return roots
	case syntax.KindExprStmt, syntax.KindReturn:
		return []syntax.NodeID{n.Value}
	case syntax.KindIf, syntax.KindWhile:
		return []syntax.NodeID{n.Test}
	case syntax.KindFor:
		return []syntax.NodeID{n.Iter}
	case syntax.KindWith:
		return []syntax.NodeID{n.Value}
	}
	return nil
}

func postorderCalls(t *syntax.Tree, root syntax.NodeID) []syntax.NodeID {
	var out []syntax.NodeID
	var visit func(syntax.NodeID)
	visit = func(id syntax.NodeID) {
		if !id.Valid() {
			return
		}
		for _, c := range t.Children(id) {
			visit(c)
		}
		if t.Kind(id) == syntax.KindCall {
			out = append(out, id)
		}
	}
	visit(root)
	return out
}
