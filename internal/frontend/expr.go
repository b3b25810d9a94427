package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/gnoverse/pplint/internal/syntax"
)

func (l *lowerer) expr(n *sitter.Node) (syntax.NodeID, error) {
	if n == nil {
		return syntax.NoNode, nil
	}
	switch n.Type() {
	case "identifier":
		id := l.node(syntax.KindName, n)
		id.Name = n.Content(l.src)
		return l.t.Add(id), nil
	case "integer":
		return l.constant(n, syntax.ConstInt, strings.ReplaceAll(n.Content(l.src), "_", "")), nil
	case "float":
		return l.constant(n, syntax.ConstFloat, strings.ReplaceAll(n.Content(l.src), "_", "")), nil
	case "true":
		return l.constant(n, syntax.ConstBool, "True"), nil
	case "false":
		return l.constant(n, syntax.ConstBool, "False"), nil
	case "none":
		return l.constant(n, syntax.ConstNone, "None"), nil
	case "string":
		return l.str(n)
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			b.WriteString(stringValue(n.NamedChild(i).Content(l.src)))
		}
		return l.constant(n, syntax.ConstString, b.String()), nil
	case "type":
		// annotations are wrapped in a type node
		if n.NamedChildCount() == 0 {
			return syntax.NoNode, l.unsupported(n)
		}
		return l.expr(n.NamedChild(0))
	case "parenthesized_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" {
				return l.expr(c)
			}
		}
		return syntax.NoNode, l.unsupported(n)
	case "attribute":
		obj, err := l.expr(n.ChildByFieldName("object"))
		if err != nil {
			return syntax.NoNode, err
		}
		a := l.node(syntax.KindAttribute, n)
		a.Value = obj
		a.Name = n.ChildByFieldName("attribute").Content(l.src)
		return l.t.Add(a), nil
	case "subscript":
		return l.subscript(n)
	case "call":
		return l.call(n)
	case "binary_operator":
		return l.binary(syntax.KindBinOp, n, n.ChildByFieldName("operator").Type())
	case "boolean_operator":
		return l.boolean(n)
	case "not_operator":
		v, err := l.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return syntax.NoNode, err
		}
		u := l.node(syntax.KindUnaryOp, n)
		u.Op = syntax.OpNot
		u.Value = v
		return l.t.Add(u), nil
	case "unary_operator":
		v, err := l.expr(n.ChildByFieldName("argument"))
		if err != nil {
			return syntax.NoNode, err
		}
		u := l.node(syntax.KindUnaryOp, n)
		switch n.ChildByFieldName("operator").Type() {
		case "-":
			u.Op = syntax.OpNeg
		case "+":
			u.Op = syntax.OpPos
		default:
			u.Op = syntax.OpInvert
		}
		u.Value = v
		return l.t.Add(u), nil
	case "comparison_operator":
		return l.comparison(n)
	case "conditional_expression":
		return l.conditionalExpr(n)
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return l.sequence(syntax.KindTuple, n)
	case "list", "list_pattern":
		return l.sequence(syntax.KindList, n)
	case "dictionary":
		return l.dict(n)
	case "keyword_argument":
		v, err := l.expr(n.ChildByFieldName("value"))
		if err != nil {
			return syntax.NoNode, err
		}
		kw := l.node(syntax.KindKeyword, n)
		kw.Name = n.ChildByFieldName("name").Content(l.src)
		kw.Value = v
		return l.t.Add(kw), nil
	case "list_splat", "dictionary_splat", "list_splat_pattern", "await":
		return l.expr(n.NamedChild(0))
	}
	return l.opaque(n)
}

func (l *lowerer) constant(n *sitter.Node, k syntax.ConstKind, lit string) syntax.NodeID {
	c := l.node(syntax.KindConstant, n)
	c.Const = k
	c.Literal = lit
	return l.t.Add(c)
}

// str lowers a string literal. f-strings become opaque nodes whose
// interpolations stay readable.
func (l *lowerer) str(n *sitter.Node) (syntax.NodeID, error) {
	text := n.Content(l.src)
	prefix := ""
	if i := strings.IndexAny(text, `'"`); i > 0 {
		prefix = strings.ToLower(text[:i])
	}
	if !strings.Contains(prefix, "f") {
		return l.constant(n, syntax.ConstString, stringValue(text)), nil
	}
	op := l.node(syntax.KindOpaque, n)
	op.Literal = text
	var err error
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		for i := 0; i < int(c.NamedChildCount()) && err == nil; i++ {
			cc := c.NamedChild(i)
			if cc.Type() != "interpolation" {
				walk(cc)
				continue
			}
			var id syntax.NodeID
			if id, err = l.expr(cc.NamedChild(0)); err == nil && id.Valid() {
				op.Elts = append(op.Elts, id)
			}
		}
	}
	walk(n)
	if err != nil {
		return syntax.NoNode, err
	}
	return l.t.Add(op), nil
}

// stringValue strips the prefix and quotes of a string literal.
func stringValue(text string) string {
	i := strings.IndexAny(text, `'"`)
	if i < 0 {
		return text
	}
	text = text[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(text) >= 2*len(q) && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return text
}

func (l *lowerer) subscript(n *sitter.Node) (syntax.NodeID, error) {
	value, err := l.expr(n.ChildByFieldName("value"))
	if err != nil {
		return syntax.NoNode, err
	}
	// multiple subscript fields (`a[i, j]`) form a tuple index
	var idx []syntax.NodeID
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if i == 0 || c.Type() == "comment" {
			continue
		}
		id, err := l.expr(c)
		if err != nil {
			return syntax.NoNode, err
		}
		idx = append(idx, id)
	}
	s := l.node(syntax.KindSubscript, n)
	s.Value = value
	switch len(idx) {
	case 0:
		return syntax.NoNode, l.unsupported(n)
	case 1:
		s.Index = idx[0]
	default:
		tup := l.node(syntax.KindTuple, n)
		tup.Elts = idx
		s.Index = l.t.Add(tup)
	}
	return l.t.Add(s), nil
}

func (l *lowerer) call(n *sitter.Node) (syntax.NodeID, error) {
	fn, err := l.expr(n.ChildByFieldName("function"))
	if err != nil {
		return syntax.NoNode, err
	}
	c := l.node(syntax.KindCall, n)
	c.Func = fn
	args := n.ChildByFieldName("arguments")
	if args != nil && args.Type() == "generator_expression" {
		g, err := l.opaque(args)
		if err != nil {
			return syntax.NoNode, err
		}
		c.Elts = append(c.Elts, g)
		return l.t.Add(c), nil
	}
	if args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			a := args.NamedChild(i)
			if a.Type() == "comment" {
				continue
			}
			id, err := l.expr(a)
			if err != nil {
				return syntax.NoNode, err
			}
			if a.Type() == "keyword_argument" {
				c.Keywords = append(c.Keywords, id)
			} else {
				c.Elts = append(c.Elts, id)
			}
		}
	}
	return l.t.Add(c), nil
}

func (l *lowerer) binary(k syntax.Kind, n *sitter.Node, op string) (syntax.NodeID, error) {
	left, err := l.expr(n.ChildByFieldName("left"))
	if err != nil {
		return syntax.NoNode, err
	}
	right, err := l.expr(n.ChildByFieldName("right"))
	if err != nil {
		return syntax.NoNode, err
	}
	b := l.node(k, n)
	b.Op = syntax.Op(op)
	b.Left = left
	b.Right = right
	return l.t.Add(b), nil
}

// boolean flattens nested and/or chains of the same operator.
func (l *lowerer) boolean(n *sitter.Node) (syntax.NodeID, error) {
	op := syntax.Op(n.ChildByFieldName("operator").Type())
	var values []syntax.NodeID
	var flatten func(*sitter.Node) error
	flatten = func(c *sitter.Node) error {
		if c.Type() == "boolean_operator" && syntax.Op(c.ChildByFieldName("operator").Type()) == op {
			if err := flatten(c.ChildByFieldName("left")); err != nil {
				return err
			}
			return flatten(c.ChildByFieldName("right"))
		}
		id, err := l.expr(c)
		if err != nil {
			return err
		}
		values = append(values, id)
		return nil
	}
	if err := flatten(n); err != nil {
		return syntax.NoNode, err
	}
	b := l.node(syntax.KindBoolOp, n)
	b.Op = op
	b.Elts = values
	return l.t.Add(b), nil
}

// comparison lowers `a < b < c` to `(a < b) and (b < c)`.
func (l *lowerer) comparison(n *sitter.Node) (syntax.NodeID, error) {
	var operands []*sitter.Node
	var ops []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			if c.Type() != "comment" {
				operands = append(operands, c)
			}
			continue
		}
		ops = append(ops, c.Type())
	}
	// `not in` / `is not` may surface as two tokens
	var merged []string
	for i := 0; i < len(ops); i++ {
		switch {
		case ops[i] == "not" && i+1 < len(ops) && ops[i+1] == "in":
			merged = append(merged, "not in")
			i++
		case ops[i] == "is" && i+1 < len(ops) && ops[i+1] == "not":
			merged = append(merged, "is not")
			i++
		default:
			merged = append(merged, ops[i])
		}
	}
	if len(operands) != len(merged)+1 {
		return syntax.NoNode, l.unsupported(n)
	}
	var parts []syntax.NodeID
	for i, op := range merged {
		left, err := l.expr(operands[i])
		if err != nil {
			return syntax.NoNode, err
		}
		right, err := l.expr(operands[i+1])
		if err != nil {
			return syntax.NoNode, err
		}
		c := l.node(syntax.KindCompare, n)
		c.Op = syntax.Op(op)
		if op == "<>" {
			c.Op = syntax.OpNotEq
		}
		c.Left = left
		c.Right = right
		parts = append(parts, l.t.Add(c))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	b := l.node(syntax.KindBoolOp, n)
	b.Op = syntax.OpAnd
	b.Elts = parts
	return l.t.Add(b), nil
}

func (l *lowerer) conditionalExpr(n *sitter.Node) (syntax.NodeID, error) {
	var parts []syntax.NodeID
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		id, err := l.expr(c)
		if err != nil {
			return syntax.NoNode, err
		}
		parts = append(parts, id)
	}
	if len(parts) != 3 {
		return syntax.NoNode, l.unsupported(n)
	}
	e := l.node(syntax.KindIfExp, n)
	e.Body, e.Test, e.Else = parts[0], parts[1], parts[2]
	return l.t.Add(e), nil
}

func (l *lowerer) sequence(k syntax.Kind, n *sitter.Node) (syntax.NodeID, error) {
	s := l.node(k, n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		id, err := l.expr(c)
		if err != nil {
			return syntax.NoNode, err
		}
		s.Elts = append(s.Elts, id)
	}
	return l.t.Add(s), nil
}

func (l *lowerer) dict(n *sitter.Node) (syntax.NodeID, error) {
	d := l.node(syntax.KindDict, n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "pair" {
			continue
		}
		k, err := l.expr(c.ChildByFieldName("key"))
		if err != nil {
			return syntax.NoNode, err
		}
		v, err := l.expr(c.ChildByFieldName("value"))
		if err != nil {
			return syntax.NoNode, err
		}
		d.Elts = append(d.Elts, k, v)
	}
	return l.t.Add(d), nil
}

// opaque keeps constructs the analyses do not model (lambdas,
// comprehensions, slices, ...) as their source text plus every lowerable
// sub-expression, so reads inside them still count as reads.
func (l *lowerer) opaque(n *sitter.Node) (syntax.NodeID, error) {
	op := l.node(syntax.KindOpaque, n)
	op.Literal = n.Content(l.src)
	var err error
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		for i := 0; i < int(c.NamedChildCount()) && err == nil; i++ {
			cc := c.NamedChild(i)
			switch cc.Type() {
			case "identifier", "attribute", "subscript", "call", "binary_operator",
				"unary_operator", "comparison_operator", "boolean_operator", "not_operator":
				var id syntax.NodeID
				if id, err = l.expr(cc); err == nil {
					op.Elts = append(op.Elts, id)
				}
			case "comment", "string", "integer", "float":
			default:
				walk(cc)
			}
		}
	}
	walk(n)
	if err != nil {
		return syntax.NoNode, err
	}
	return l.t.Add(op), nil
}
