// Package preprocess normalizes a lowered tree before analysis.
//
// Passes run in a fixed order: target desugaring, random-variable call
// hoisting, bounded loop unrolling and call uniquification. Every pass
// rewrites the tree in place; nodes it creates are marked Synthetic and
// carry the span of the construct they replace.
package preprocess

import (
	"strconv"

	"github.com/gnoverse/pplint/internal/syntax"
)

// Options selects the optional passes.
type Options struct {
	// Unroll is the largest trip count a constant range loop is unrolled
	// for. Zero disables unrolling.
	Unroll int
	// UniquifyCalls clones functions once per static call site.
	UniquifyCalls bool
	// IsRandomVariableCall reports calls that define a random variable.
	// Such calls are hoisted into their own assignment. Nil disables
	// hoisting.
	IsRandomVariableCall func(t *syntax.Tree, call syntax.NodeID) bool
}

// Run applies the passes selected by opts to t.
func Run(t *syntax.Tree, opts Options) {
	p := &pass{t: t, names: usedNames(t)}
	p.desugar()
	if opts.IsRandomVariableCall != nil {
		p.hoist(opts.IsRandomVariableCall)
	}
	if opts.Unroll > 0 {
		p.unroll(opts.Unroll)
	}
	if opts.UniquifyCalls {
		p.uniquify()
	}
}

type pass struct {
	t     *syntax.Tree
	names map[string]bool
	tmp   int
}

func usedNames(t *syntax.Tree) map[string]bool {
	names := make(map[string]bool)
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		if n := t.Node(id); n.Name != "" {
			names[n.Name] = true
		}
		return true
	})
	return names
}

// fresh returns an identifier that does not occur in the tree.
func (p *pass) fresh() string {
	for {
		name := syntax.TempPrefix + strconv.Itoa(p.tmp)
		p.tmp++
		if !p.names[name] {
			p.names[name] = true
			return name
		}
	}
}

func (p *pass) name(name string, span syntax.Span) syntax.NodeID {
	n := syntax.New(syntax.KindName)
	n.Name = name
	n.Span = span
	n.Synthetic = true
	return p.t.Add(n)
}

func (p *pass) assign(target, value syntax.NodeID, span syntax.Span) syntax.NodeID {
	n := syntax.New(syntax.KindAssign)
	n.Target = target
	n.Value = value
	n.Span = span
	n.Synthetic = true
	return p.t.Add(n)
}

func (p *pass) index(base string, i int, span syntax.Span) syntax.NodeID {
	c := syntax.New(syntax.KindConstant)
	c.Const = syntax.ConstInt
	c.Literal = strconv.Itoa(i)
	c.Span = span
	c.Synthetic = true
	n := syntax.New(syntax.KindSubscript)
	n.Value = p.name(base, span)
	n.Index = p.t.Add(c)
	n.Span = span
	n.Synthetic = true
	return p.t.Add(n)
}

// blocks returns every Block reachable from the root in pre-order.
func (p *pass) blocks() []syntax.NodeID {
	return p.t.Find(p.t.Root, true, func(id syntax.NodeID) bool {
		return p.t.Kind(id) == syntax.KindBlock
	})
}

// rewriteBlocks replaces each statement of every block by the list fn
// returns for it.
func (p *pass) rewriteBlocks(fn func(stmt syntax.NodeID) []syntax.NodeID) {
	for _, b := range p.blocks() {
		var out []syntax.NodeID
		changed := false
		for _, s := range p.t.Node(b).Elts {
			r := fn(s)
			if len(r) != 1 || r[0] != s {
				changed = true
			}
			out = append(out, r...)
		}
		if changed {
			p.t.SetStatements(b, out)
		}
	}
}

func isTuple(t *syntax.Tree, id syntax.NodeID) bool {
	k := t.Kind(id)
	return k == syntax.KindTuple || k == syntax.KindList
}

// desugar splits chained and tuple assignments into single-target ones and
// gives tuple loop targets a temporary.
//
//	a = b = v      ->  a = v; b = a
//	a, b = v       ->  __TMP__0 = v; a = __TMP__0[0]; b = __TMP__0[1]
//	for a, b in s  ->  for __TMP__1 in s: a = __TMP__1[0]; b = __TMP__1[1]; ...
func (p *pass) desugar() {
	p.rewriteBlocks(p.desugarStmt)
}

func (p *pass) desugarStmt(s syntax.NodeID) []syntax.NodeID {
	t := p.t
	n := *t.Node(s)
	switch n.Kind {
	case syntax.KindAssign:
		if len(n.Elts) > 0 {
			return p.desugarChain(s, n)
		}
		if isTuple(t, n.Target) {
			return p.desugarTuple(n.Target, n.Value, n.Span)
		}
	case syntax.KindFor:
		if isTuple(t, n.Target) {
			tmp := p.fresh()
			extract := p.unpack(tmp, t.Node(n.Target).Elts, n.Span)
			body := t.Node(n.Body).Elts
			t.SetStatements(n.Body, append(extract, body...))
			t.Replace(s, n.Target, p.name(tmp, t.Node(n.Target).Span))
		}
	}
	return []syntax.NodeID{s}
}

func (p *pass) desugarChain(s syntax.NodeID, n syntax.Node) []syntax.NodeID {
	t := p.t
	targets := append([]syntax.NodeID(nil), n.Elts...)
	if n.Target.Valid() {
		targets = append(targets, n.Target)
	}
	value := n.Value

	// The first plain-name target keeps the statement's identity; later
	// targets read it back so the value is evaluated once.
	var out []syntax.NodeID
	var src string
	if first := targets[0]; t.Kind(first) == syntax.KindName {
		src = t.Node(first).Name
		n.Elts = nil
		n.Target = first
		t.Set(s, n)
		out = append(out, s)
		targets = targets[1:]
	} else {
		src = p.fresh()
		out = append(out, p.assign(p.name(src, n.Span), value, n.Span))
	}
	for _, tg := range targets {
		out = append(out, p.desugarStmt(p.assign(tg, p.name(src, n.Span), n.Span))...)
	}
	return out
}

func (p *pass) desugarTuple(target, value syntax.NodeID, span syntax.Span) []syntax.NodeID {
	tmp := p.fresh()
	out := []syntax.NodeID{p.assign(p.name(tmp, span), value, span)}
	return append(out, p.unpack(tmp, p.t.Node(target).Elts, span)...)
}

// unpack assigns tmp[i] to the i-th element of a tuple target.
func (p *pass) unpack(tmp string, elts []syntax.NodeID, span syntax.Span) []syntax.NodeID {
	var out []syntax.NodeID
	for i, e := range elts {
		out = append(out, p.desugarStmt(p.assign(e, p.index(tmp, i, span), span))...)
	}
	return out
}
