package syntax

import "strconv"

// Builder constructs trees programmatically. Each statement is given its own
// line so positions stay distinct.
type Builder struct {
	t    *Tree
	line int
}

// NewBuilder returns a builder over an empty tree called filename.
func NewBuilder(filename string) *Builder {
	return &Builder{t: NewTree(filename, nil)}
}

// Tree returns the tree under construction.
func (b *Builder) Tree() *Tree { return b.t }

func (b *Builder) add(n Node) NodeID {
	if n.Kind.IsStatement() && n.Kind != KindBlock {
		b.line++
		n.Span.Start = Position{Line: b.line, Column: 1}
		n.Span.End = Position{Line: b.line, Column: 1}
	}
	return b.t.Add(n)
}

// Module finishes the tree with stmts as its body and returns it.
func (b *Builder) Module(stmts ...NodeID) *Tree {
	m := New(KindModule)
	m.Body = b.Block(stmts...)
	b.t.Root = b.t.Add(m)
	return b.t
}

// Block wraps a statement list.
func (b *Builder) Block(stmts ...NodeID) NodeID {
	n := New(KindBlock)
	n.Elts = stmts
	return b.t.Add(n)
}

// Name is an identifier expression.
func (b *Builder) Name(name string) NodeID {
	n := New(KindName)
	n.Name = name
	return b.t.Add(n)
}

// Num is a numeric literal.
func (b *Builder) Num(v float64) NodeID {
	n := New(KindConstant)
	if v == float64(int64(v)) {
		n.Const = ConstInt
		n.Literal = strconv.FormatInt(int64(v), 10)
	} else {
		n.Const = ConstFloat
		n.Literal = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return b.t.Add(n)
}

// Str is a string literal.
func (b *Builder) Str(s string) NodeID {
	n := New(KindConstant)
	n.Const = ConstString
	n.Literal = s
	return b.t.Add(n)
}

// Bool is a True/False literal.
func (b *Builder) Bool(v bool) NodeID {
	n := New(KindConstant)
	n.Const = ConstBool
	n.Literal = "False"
	if v {
		n.Literal = "True"
	}
	return b.t.Add(n)
}

// None is the None literal.
func (b *Builder) None() NodeID {
	n := New(KindConstant)
	n.Const = ConstNone
	n.Literal = "None"
	return b.t.Add(n)
}

// Assign binds value to a fresh Name target.
func (b *Builder) Assign(target string, value NodeID) NodeID {
	return b.AssignTo(b.Name(target), value)
}

// AssignTo binds value to an arbitrary target expression.
func (b *Builder) AssignTo(target, value NodeID) NodeID {
	n := New(KindAssign)
	n.Target = target
	n.Value = value
	return b.add(n)
}

// Expr is an expression statement.
func (b *Builder) Expr(value NodeID) NodeID {
	n := New(KindExprStmt)
	n.Value = value
	return b.add(n)
}

// If builds an if statement; pass a nil orelse for no else arm.
func (b *Builder) If(test NodeID, body []NodeID, orelse []NodeID) NodeID {
	n := New(KindIf)
	n.Test = test
	n.Body = b.Block(body...)
	if orelse != nil {
		n.Else = b.Block(orelse...)
	}
	return b.add(n)
}

// While builds a while loop.
func (b *Builder) While(test NodeID, body ...NodeID) NodeID {
	n := New(KindWhile)
	n.Test = test
	n.Body = b.Block(body...)
	return b.add(n)
}

// For builds a for loop over iter binding target.
func (b *Builder) For(target string, iter NodeID, body ...NodeID) NodeID {
	n := New(KindFor)
	n.Target = b.Name(target)
	n.Iter = iter
	n.Body = b.Block(body...)
	return b.add(n)
}

// Return builds a return statement; pass NoNode for a bare return.
func (b *Builder) Return(value NodeID) NodeID {
	n := New(KindReturn)
	n.Value = value
	return b.add(n)
}

// Break builds a break statement.
func (b *Builder) Break() NodeID { return b.add(New(KindBreak)) }

// Continue builds a continue statement.
func (b *Builder) Continue() NodeID { return b.add(New(KindContinue)) }

// Pass builds a pass statement.
func (b *Builder) Pass() NodeID { return b.add(New(KindPass)) }

// Param builds a function parameter with an optional annotation.
func (b *Builder) Param(name string, annotation string) NodeID {
	n := New(KindParam)
	n.Name = name
	if annotation != "" {
		n.Annotation = b.Name(annotation)
	}
	return b.t.Add(n)
}

// Def builds a function definition.
func (b *Builder) Def(name string, params []NodeID, body ...NodeID) NodeID {
	n := New(KindFunctionDef)
	n.Name = name
	n.Elts = params
	n.Body = b.Block(body...)
	return b.add(n)
}

// Decorate attaches decorators to a function definition.
func (b *Builder) Decorate(def NodeID, decorators ...NodeID) NodeID {
	n := *b.t.Node(def)
	n.Decorators = append(n.Decorators, decorators...)
	b.t.Set(def, n)
	return def
}

// With builds `with value as alias:`; alias may be empty.
func (b *Builder) With(value NodeID, alias string, body ...NodeID) NodeID {
	n := New(KindWith)
	n.Value = value
	if alias != "" {
		n.Target = b.Name(alias)
	}
	n.Body = b.Block(body...)
	return b.add(n)
}

// Call builds a call with positional arguments.
func (b *Builder) Call(fn NodeID, args ...NodeID) NodeID {
	n := New(KindCall)
	n.Func = fn
	n.Elts = args
	return b.t.Add(n)
}

// CallKw builds a call with positional and keyword arguments.
func (b *Builder) CallKw(fn NodeID, args []NodeID, keywords ...NodeID) NodeID {
	n := New(KindCall)
	n.Func = fn
	n.Elts = args
	n.Keywords = keywords
	return b.t.Add(n)
}

// Kw builds a keyword argument.
func (b *Builder) Kw(name string, value NodeID) NodeID {
	n := New(KindKeyword)
	n.Name = name
	n.Value = value
	return b.t.Add(n)
}

// Attr builds value.name.
func (b *Builder) Attr(value NodeID, name string) NodeID {
	n := New(KindAttribute)
	n.Value = value
	n.Name = name
	return b.t.Add(n)
}

// Dotted builds a Name/Attribute chain from "a.b.c".
func (b *Builder) Dotted(path ...string) NodeID {
	id := b.Name(path[0])
	for _, p := range path[1:] {
		id = b.Attr(id, p)
	}
	return id
}

// Index builds value[index].
func (b *Builder) Index(value, index NodeID) NodeID {
	n := New(KindSubscript)
	n.Value = value
	n.Index = index
	return b.t.Add(n)
}

// Bin builds a binary arithmetic operation.
func (b *Builder) Bin(op Op, left, right NodeID) NodeID {
	n := New(KindBinOp)
	n.Op = op
	n.Left = left
	n.Right = right
	return b.t.Add(n)
}

// Cmp builds a single comparison.
func (b *Builder) Cmp(op Op, left, right NodeID) NodeID {
	n := New(KindCompare)
	n.Op = op
	n.Left = left
	n.Right = right
	return b.t.Add(n)
}

// Unary builds a unary operation.
func (b *Builder) Unary(op Op, value NodeID) NodeID {
	n := New(KindUnaryOp)
	n.Op = op
	n.Value = value
	return b.t.Add(n)
}

// BoolOp builds an and/or chain.
func (b *Builder) BoolOp(op Op, values ...NodeID) NodeID {
	n := New(KindBoolOp)
	n.Op = op
	n.Elts = values
	return b.t.Add(n)
}

// IfExp builds `body if test else orelse`.
func (b *Builder) IfExp(test, body, orelse NodeID) NodeID {
	n := New(KindIfExp)
	n.Test = test
	n.Body = body
	n.Else = orelse
	return b.t.Add(n)
}

// Tuple builds a tuple display.
func (b *Builder) Tuple(elts ...NodeID) NodeID {
	n := New(KindTuple)
	n.Elts = elts
	return b.t.Add(n)
}

// List builds a list display.
func (b *Builder) List(elts ...NodeID) NodeID {
	n := New(KindList)
	n.Elts = elts
	return b.t.Add(n)
}
