// Package frontend lowers Python source into the normalized syntax tree
// using the tree-sitter Python grammar.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/gnoverse/pplint/internal/syntax"
)

// ErrSyntax is returned when tree-sitter reports an ERROR or MISSING node.
var ErrSyntax = errors.New("syntax error")

// ParseFile reads and parses filename.
func ParseFile(ctx context.Context, filename string) (*syntax.Tree, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(ctx, filename, src)
}

// Parse lowers src into a syntax tree rooted at a Module node.
func Parse(ctx context.Context, filename string, src []byte) (*syntax.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	cst, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer cst.Close()

	root := cst.RootNode()
	if root.HasError() {
		return nil, syntaxError(filename, root)
	}

	l := &lowerer{src: src, t: syntax.NewTree(filename, src)}
	body, err := l.block(root)
	if err != nil {
		return nil, err
	}
	m := syntax.New(syntax.KindModule)
	m.Span = span(root)
	m.Body = body
	l.t.Root = l.t.Add(m)
	return l.t, nil
}

func syntaxError(filename string, n *sitter.Node) error {
	var bad *sitter.Node
	var find func(*sitter.Node)
	find = func(c *sitter.Node) {
		if bad != nil || c == nil {
			return
		}
		if c.Type() == "ERROR" || c.IsMissing() {
			bad = c
			return
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			find(c.Child(i))
		}
	}
	find(n)
	if bad == nil {
		return fmt.Errorf("%w in %s", ErrSyntax, filename)
	}
	p := bad.StartPoint()
	return fmt.Errorf("%w in %s:%d:%d", ErrSyntax, filename, p.Row+1, p.Column+1)
}

func span(n *sitter.Node) syntax.Span {
	s, e := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		Start:     syntax.Position{Line: int(s.Row) + 1, Column: int(s.Column) + 1},
		End:       syntax.Position{Line: int(e.Row) + 1, Column: int(e.Column) + 1},
	}
}

type lowerer struct {
	src []byte
	t   *syntax.Tree
}

func (l *lowerer) unsupported(n *sitter.Node) error {
	p := n.StartPoint()
	return fmt.Errorf("%w: %s at %s:%d:%d", syntax.ErrUnsupported, n.Type(), l.t.Filename, p.Row+1, p.Column+1)
}

func (l *lowerer) node(k syntax.Kind, n *sitter.Node) syntax.Node {
	out := syntax.New(k)
	out.Span = span(n)
	return out
}

// block lowers the statements below a module or block CST node.
func (l *lowerer) block(n *sitter.Node) (syntax.NodeID, error) {
	blk := l.node(syntax.KindBlock, n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		id, err := l.stmt(c)
		if err != nil {
			return syntax.NoNode, err
		}
		if id.Valid() {
			blk.Elts = append(blk.Elts, id)
		}
	}
	return l.t.Add(blk), nil
}

func (l *lowerer) stmt(n *sitter.Node) (syntax.NodeID, error) {
	switch n.Type() {
	case "expression_statement":
		return l.exprStmt(n)
	case "function_definition":
		return l.funcDef(n, nil)
	case "decorated_definition":
		return l.decorated(n)
	case "if_statement":
		return l.ifStmt(n)
	case "for_statement":
		return l.forStmt(n)
	case "while_statement":
		return l.whileStmt(n)
	case "return_statement":
		r := l.node(syntax.KindReturn, n)
		if n.NamedChildCount() > 0 {
			v, err := l.expr(n.NamedChild(0))
			if err != nil {
				return syntax.NoNode, err
			}
			r.Value = v
		}
		return l.t.Add(r), nil
	case "break_statement":
		return l.t.Add(l.node(syntax.KindBreak, n)), nil
	case "continue_statement":
		return l.t.Add(l.node(syntax.KindContinue, n)), nil
	case "pass_statement":
		return l.t.Add(l.node(syntax.KindPass, n)), nil
	case "with_statement":
		return l.withStmt(n)
	case "import_statement", "import_from_statement", "future_import_statement":
		imp := l.node(syntax.KindImport, n)
		imp.Literal = n.Content(l.src)
		return l.t.Add(imp), nil
	case "raise_statement", "assert_statement", "delete_statement",
		"global_statement", "nonlocal_statement", "print_statement", "exec_statement":
		op, err := l.opaque(n)
		if err != nil {
			return syntax.NoNode, err
		}
		st := l.node(syntax.KindExprStmt, n)
		st.Value = op
		return l.t.Add(st), nil
	}
	return syntax.NoNode, l.unsupported(n)
}

func (l *lowerer) exprStmt(n *sitter.Node) (syntax.NodeID, error) {
	c := n.NamedChild(0)
	switch c.Type() {
	case "assignment":
		return l.assignment(n, c)
	case "augmented_assignment":
		return l.augAssignment(n, c)
	}
	v, err := l.expr(c)
	if err != nil {
		return syntax.NoNode, err
	}
	st := l.node(syntax.KindExprStmt, n)
	st.Value = v
	return l.t.Add(st), nil
}

// assignment lowers `a = b = v`, `a: T = v` and tuple targets. Chained
// targets are kept in Elts for the desugarer.
func (l *lowerer) assignment(stmt, n *sitter.Node) (syntax.NodeID, error) {
	var targets []*sitter.Node
	cur := n
	for cur != nil && cur.Type() == "assignment" {
		targets = append(targets, cur.ChildByFieldName("left"))
		next := cur.ChildByFieldName("right")
		if next == nil {
			// bare annotation `x: int` binds nothing
			return syntax.NoNode, nil
		}
		if next.Type() != "assignment" {
			cur = next
			break
		}
		cur = next
	}
	value, err := l.expr(cur)
	if err != nil {
		return syntax.NoNode, err
	}
	asg := l.node(syntax.KindAssign, stmt)
	asg.Value = value
	for _, tn := range targets {
		tid, err := l.expr(tn)
		if err != nil {
			return syntax.NoNode, err
		}
		asg.Elts = append(asg.Elts, tid)
	}
	if len(asg.Elts) == 1 {
		asg.Target = asg.Elts[0]
		asg.Elts = nil
	}
	return l.t.Add(asg), nil
}

// augAssignment lowers `x op= v` to `x = x op v`.
func (l *lowerer) augAssignment(stmt, n *sitter.Node) (syntax.NodeID, error) {
	left := n.ChildByFieldName("left")
	target, err := l.expr(left)
	if err != nil {
		return syntax.NoNode, err
	}
	read, err := l.expr(left)
	if err != nil {
		return syntax.NoNode, err
	}
	right, err := l.expr(n.ChildByFieldName("right"))
	if err != nil {
		return syntax.NoNode, err
	}
	opText := strings.TrimSuffix(n.ChildByFieldName("operator").Type(), "=")
	bin := l.node(syntax.KindBinOp, n)
	bin.Op = syntax.Op(opText)
	bin.Left = read
	bin.Right = right
	asg := l.node(syntax.KindAssign, stmt)
	asg.Target = target
	asg.Value = l.t.Add(bin)
	return l.t.Add(asg), nil
}

func (l *lowerer) decorated(n *sitter.Node) (syntax.NodeID, error) {
	var decorators []syntax.NodeID
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "decorator" {
			continue
		}
		d, err := l.expr(c.NamedChild(0))
		if err != nil {
			return syntax.NoNode, err
		}
		decorators = append(decorators, d)
	}
	def := n.ChildByFieldName("definition")
	if def == nil || def.Type() != "function_definition" {
		return syntax.NoNode, l.unsupported(n)
	}
	return l.funcDef(def, decorators)
}

func (l *lowerer) funcDef(n *sitter.Node, decorators []syntax.NodeID) (syntax.NodeID, error) {
	fn := l.node(syntax.KindFunctionDef, n)
	fn.Name = n.ChildByFieldName("name").Content(l.src)
	fn.Decorators = decorators
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		for i := 0; i < int(ps.NamedChildCount()); i++ {
			p, err := l.param(ps.NamedChild(i))
			if err != nil {
				return syntax.NoNode, err
			}
			if p.Valid() {
				fn.Elts = append(fn.Elts, p)
			}
		}
	}
	body, err := l.block(n.ChildByFieldName("body"))
	if err != nil {
		return syntax.NoNode, err
	}
	fn.Body = body
	return l.t.Add(fn), nil
}

func (l *lowerer) param(n *sitter.Node) (syntax.NodeID, error) {
	p := l.node(syntax.KindParam, n)
	var err error
	switch n.Type() {
	case "identifier":
		p.Name = n.Content(l.src)
	case "typed_parameter":
		p.Name = strings.TrimLeft(n.NamedChild(0).Content(l.src), "*")
		if p.Annotation, err = l.expr(n.ChildByFieldName("type")); err != nil {
			return syntax.NoNode, err
		}
	case "default_parameter", "typed_default_parameter":
		p.Name = n.ChildByFieldName("name").Content(l.src)
		if ty := n.ChildByFieldName("type"); ty != nil {
			if p.Annotation, err = l.expr(ty); err != nil {
				return syntax.NoNode, err
			}
		}
		if p.Default, err = l.expr(n.ChildByFieldName("value")); err != nil {
			return syntax.NoNode, err
		}
	case "list_splat_pattern", "dictionary_splat_pattern":
		p.Name = n.NamedChild(0).Content(l.src)
	case "keyword_separator", "positional_separator", "comment":
		return syntax.NoNode, nil
	default:
		return syntax.NoNode, l.unsupported(n)
	}
	return l.t.Add(p), nil
}

func (l *lowerer) ifStmt(n *sitter.Node) (syntax.NodeID, error) {
	// alternatives (elif/else) are collected first and folded from the
	// back so that `elif` becomes an If nested in the else block.
	var alts []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "elif_clause" || c.Type() == "else_clause" {
			alts = append(alts, c)
		}
	}
	orelse := syntax.NoNode
	for i := len(alts) - 1; i >= 0; i-- {
		alt := alts[i]
		if alt.Type() == "else_clause" {
			b, err := l.block(alt.ChildByFieldName("body"))
			if err != nil {
				return syntax.NoNode, err
			}
			orelse = b
			continue
		}
		nested, err := l.conditional(alt, orelse)
		if err != nil {
			return syntax.NoNode, err
		}
		blk := l.node(syntax.KindBlock, alt)
		blk.Elts = []syntax.NodeID{nested}
		orelse = l.t.Add(blk)
	}
	return l.conditional(n, orelse)
}

func (l *lowerer) conditional(n *sitter.Node, orelse syntax.NodeID) (syntax.NodeID, error) {
	test, err := l.expr(n.ChildByFieldName("condition"))
	if err != nil {
		return syntax.NoNode, err
	}
	body, err := l.block(n.ChildByFieldName("consequence"))
	if err != nil {
		return syntax.NoNode, err
	}
	st := l.node(syntax.KindIf, n)
	st.Test = test
	st.Body = body
	st.Else = orelse
	return l.t.Add(st), nil
}

func (l *lowerer) forStmt(n *sitter.Node) (syntax.NodeID, error) {
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		return syntax.NoNode, l.unsupported(alt)
	}
	target, err := l.expr(n.ChildByFieldName("left"))
	if err != nil {
		return syntax.NoNode, err
	}
	iter, err := l.expr(n.ChildByFieldName("right"))
	if err != nil {
		return syntax.NoNode, err
	}
	body, err := l.block(n.ChildByFieldName("body"))
	if err != nil {
		return syntax.NoNode, err
	}
	st := l.node(syntax.KindFor, n)
	st.Target = target
	st.Iter = iter
	st.Body = body
	return l.t.Add(st), nil
}

func (l *lowerer) whileStmt(n *sitter.Node) (syntax.NodeID, error) {
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		return syntax.NoNode, l.unsupported(alt)
	}
	test, err := l.expr(n.ChildByFieldName("condition"))
	if err != nil {
		return syntax.NoNode, err
	}
	body, err := l.block(n.ChildByFieldName("body"))
	if err != nil {
		return syntax.NoNode, err
	}
	st := l.node(syntax.KindWhile, n)
	st.Test = test
	st.Body = body
	return l.t.Add(st), nil
}

// withStmt keeps only the first with-item; further items are nested
// with statements sharing the body.
func (l *lowerer) withStmt(n *sitter.Node) (syntax.NodeID, error) {
	var items []*sitter.Node
	var collect func(*sitter.Node)
	collect = func(c *sitter.Node) {
		for i := 0; i < int(c.NamedChildCount()); i++ {
			cc := c.NamedChild(i)
			switch cc.Type() {
			case "with_item":
				items = append(items, cc)
			case "with_clause":
				collect(cc)
			}
		}
	}
	collect(n)
	if len(items) == 0 {
		return syntax.NoNode, l.unsupported(n)
	}
	body, err := l.block(n.ChildByFieldName("body"))
	if err != nil {
		return syntax.NoNode, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		w := l.node(syntax.KindWith, n)
		value := items[i].ChildByFieldName("value")
		if value.Type() == "as_pattern" {
			alias := value.ChildByFieldName("alias")
			if alias != nil {
				if alias.Type() == "as_pattern_target" && alias.NamedChildCount() > 0 {
					alias = alias.NamedChild(0)
				}
				if w.Target, err = l.expr(alias); err != nil {
					return syntax.NoNode, err
				}
			}
			value = value.NamedChild(0)
		}
		if w.Value, err = l.expr(value); err != nil {
			return syntax.NoNode, err
		}
		w.Body = body
		id := l.t.Add(w)
		if i > 0 {
			blk := l.node(syntax.KindBlock, n)
			blk.Elts = []syntax.NodeID{id}
			body = l.t.Add(blk)
		} else {
			return id, nil
		}
	}
	return syntax.NoNode, l.unsupported(n)
}
