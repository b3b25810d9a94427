package cfg

import (
	"fmt"

	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Build constructs and verifies the graphs of every scope of t.
func Build(t *scope.Tree) (*Program, error) {
	p := &Program{
		Tree:      t,
		Functions: make(map[syntax.NodeID]*Graph),
		stmt:      make(map[syntax.NodeID]*Node),
		iter:      make(map[syntax.NodeID]*Node),
		arg:       make(map[syntax.NodeID]*Node),
		graph:     make(map[*Node]*Graph),
	}
	top, err := p.buildModule()
	if err != nil {
		return nil, err
	}
	p.Top = top
	for _, f := range t.Functions {
		if !t.IsAncestor(t.Root, f.Node) {
			continue
		}
		g, err := p.buildFunction(f)
		if err != nil {
			return nil, err
		}
		p.Functions[f.Node] = g
	}
	for _, g := range p.Graphs() {
		if err := g.Verify(); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Filename, err)
		}
	}
	return p, nil
}

// builder accumulates the nodes of one graph.
type builder struct {
	p *Program
	g *Graph
}

// targets are the jump destinations in effect for a statement.
type targets struct {
	ret  *Node // FuncJoin, nil at top level
	brk  *Node // Join of the innermost loop
	cont *Node // Branch of the innermost loop
}

func (b *builder) node(k Kind, id syntax.NodeID) *Node {
	n := &Node{ID: len(b.g.Nodes), Kind: k, Syntax: id}
	b.g.Nodes = append(b.g.Nodes, n)
	b.p.graph[n] = b.g
	return n
}

func link(from, to *Node) {
	for _, c := range from.Children {
		if c == to {
			return
		}
	}
	from.Children = append(from.Children, to)
	to.Parents = append(to.Parents, from)
}

func linkAll(from []*Node, to *Node) {
	for _, f := range from {
		link(f, to)
	}
}

func (p *Program) buildModule() (*Graph, error) {
	t := p.Tree
	b := &builder{p: p, g: &Graph{Root: t.Root}}
	b.g.Start = b.node(Start, t.Root)
	exits, err := b.stmts(t.Node(t.Root).Body, []*Node{b.g.Start}, targets{})
	if err != nil {
		return nil, err
	}
	b.g.End = b.node(End, t.Root)
	linkAll(exits, b.g.End)
	return b.g, nil
}

// buildFunction chains FuncStart, one FuncArg per parameter and the body.
// Returns go to FuncJoin; falling off the end is an implicit return.
func (p *Program) buildFunction(f scope.Function) (*Graph, error) {
	b := &builder{p: p, g: &Graph{Root: f.Node}}
	b.g.Start = b.node(FuncStart, f.Node)
	prev := b.g.Start
	for _, param := range f.Params {
		arg := b.node(FuncArg, param)
		p.arg[param] = arg
		link(prev, arg)
		prev = arg
	}
	join := b.node(FuncJoin, f.Node)
	exits, err := b.stmts(f.Body, []*Node{prev}, targets{ret: join})
	if err != nil {
		return nil, err
	}
	if len(exits) > 0 {
		ret := b.node(Return, f.Node)
		ret.Implicit = true
		linkAll(exits, ret)
		link(ret, join)
	}
	b.g.End = b.node(End, f.Node)
	link(join, b.g.End)
	return b.g, nil
}

// stmts chains the statements of a block after preds and returns the
// nodes control leaves the block from. Statements after a return, break or
// continue are unreachable and not added. Nested function definitions get
// their own graphs.
func (b *builder) stmts(block syntax.NodeID, preds []*Node, tg targets) ([]*Node, error) {
	t := b.p.Tree
	for _, s := range t.Node(block).Elts {
		var err error
		preds, err = b.stmt(s, preds, tg)
		if err != nil {
			return nil, err
		}
		switch t.Kind(s) {
		case syntax.KindReturn, syntax.KindBreak, syntax.KindContinue:
			return preds, nil
		}
	}
	return preds, nil
}

func (b *builder) stmt(s syntax.NodeID, preds []*Node, tg targets) ([]*Node, error) {
	t := b.p.Tree
	n := t.Node(s)
	simple := func(k Kind) []*Node {
		c := b.node(k, s)
		b.p.stmt[s] = c
		linkAll(preds, c)
		return []*Node{c}
	}
	jump := func(k Kind, to *Node, what string) ([]*Node, error) {
		if to == nil {
			return nil, fmt.Errorf("%w: %s outside of %s at %d:%d", ErrInvariant,
				n.Kind, what, n.Span.Start.Line, n.Span.Start.Column)
		}
		c := simple(k)[0]
		link(c, to)
		return nil, nil
	}

	switch n.Kind {
	case syntax.KindFunctionDef:
		return preds, nil
	case syntax.KindAssign:
		return simple(Assign), nil
	case syntax.KindReturn:
		return jump(Return, tg.ret, "function")
	case syntax.KindBreak:
		return jump(Break, tg.brk, "loop")
	case syntax.KindContinue:
		return jump(Continue, tg.cont, "loop")
	case syntax.KindWith:
		return b.stmts(n.Body, preds, tg)
	case syntax.KindIf:
		br, join := b.pair(s)
		linkAll(preds, br)
		body, err := b.stmts(n.Body, []*Node{br}, tg)
		if err != nil {
			return nil, err
		}
		orelse := []*Node{br}
		if n.Else.Valid() {
			if orelse, err = b.stmts(n.Else, []*Node{br}, tg); err != nil {
				return nil, err
			}
		}
		linkAll(body, join)
		linkAll(orelse, join)
		return []*Node{join}, nil
	case syntax.KindWhile:
		br, join := b.pair(s)
		linkAll(preds, br)
		body, err := b.stmts(n.Body, []*Node{br}, targets{ret: tg.ret, brk: join, cont: br})
		if err != nil {
			return nil, err
		}
		linkAll(body, br)
		link(br, join)
		return []*Node{join}, nil
	case syntax.KindFor:
		br, join := b.pair(s)
		linkAll(preds, br)
		it := b.node(LoopIter, s)
		b.p.iter[s] = it
		link(br, it)
		body, err := b.stmts(n.Body, []*Node{it}, targets{ret: tg.ret, brk: join, cont: br})
		if err != nil {
			return nil, err
		}
		linkAll(body, br)
		link(br, join)
		return []*Node{join}, nil
	default:
		return simple(Expr), nil
	}
}

func (b *builder) pair(s syntax.NodeID) (*Node, *Node) {
	br := b.node(Branch, s)
	join := b.node(Join, s)
	br.Pair, join.Pair = join, br
	b.p.stmt[s] = br
	return br, join
}
