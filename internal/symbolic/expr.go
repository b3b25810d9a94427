package symbolic

import (
	"math"
	"strconv"
	"strings"
)

// Type is the sort of a symbol.
type Type uint8

const (
	Real Type = iota
	Int
	Bool
)

func (t Type) String() string {
	switch t {
	case Real:
		return "Real"
	case Int:
		return "Int"
	case Bool:
		return "Bool"
	default:
		return "?"
	}
}

// Expr is a symbolic expression. String renders the wire grammar.
type Expr interface {
	isExpr()
	String() string
}

// Symbol is a named unknown of a given type.
type Symbol struct {
	Name string
	Type Type
}

func (Symbol) isExpr() {}
func (s Symbol) String() string {
	return s.Type.String() + "(" + s.Name + ")"
}

// Constant is a literal. Value holds its canonical text: an integer, a
// float in shortest form with a decimal point, True, False or a bare
// string.
type Constant struct {
	Value string
}

func (Constant) isExpr() {}
func (c Constant) String() string {
	return "Constant(" + c.Value + ")"
}

// Float returns the numeric value of c. True and False are 1 and 0.
func (c Constant) Float() (float64, bool) {
	switch c.Value {
	case "True":
		return 1, true
	case "False":
		return 0, true
	}
	v, err := strconv.ParseFloat(c.Value, 64)
	return v, err == nil
}

// Truth returns the boolean value of c.
func (c Constant) Truth() (bool, bool) {
	switch c.Value {
	case "True":
		return true, true
	case "False":
		return false, true
	}
	return false, false
}

// Operation applies an operator or function to arguments.
type Operation struct {
	Op   string
	Args []Expr
}

func (Operation) isExpr() {}
func (o Operation) String() string {
	var b strings.Builder
	b.WriteString(o.Op)
	b.WriteByte('(')
	for i, arg := range o.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(arg.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Operators of the wire grammar.
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpPow = "^"
	OpAnd = "&"
	OpOr  = "|"
	OpNot = "!"
	OpEq  = "=="
	OpNeq = "!="
	OpGt  = ">"
	OpGte = ">="
	OpLt  = "<"
	OpLte = "<="
)

// Helper functions to construct expressions

// Sym creates a symbol.
func Sym(name string, t Type) Expr { return Symbol{Name: name, Type: t} }

// Num creates a numeric constant.
func Num(v float64) Expr {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return Constant{Value: strconv.FormatInt(int64(v), 10)}
	}
	return Constant{Value: FormatFloat(v)}
}

// FormatFloat renders v the way a float literal prints: 1.0, 0.5, 1e-07.
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// BoolConst creates True or False.
func BoolConst(v bool) Expr {
	if v {
		return Constant{Value: "True"}
	}
	return Constant{Value: "False"}
}

// Op creates an operation.
func Op(op string, args ...Expr) Expr { return Operation{Op: op, Args: args} }

// Not negates e, cancelling a double negation.
func Not(e Expr) Expr {
	if o, ok := e.(Operation); ok && o.Op == OpNot && len(o.Args) == 1 {
		return o.Args[0]
	}
	return Operation{Op: OpNot, Args: []Expr{e}}
}

// And conjoins its arguments; a single argument is returned as is and
// none yields True.
func And(args ...Expr) Expr {
	switch len(args) {
	case 0:
		return BoolConst(true)
	case 1:
		return args[0]
	}
	return Operation{Op: OpAnd, Args: args}
}

// Or disjoins its arguments; a single argument is returned as is and none
// yields False.
func Or(args ...Expr) Expr {
	switch len(args) {
	case 0:
		return BoolConst(false)
	case 1:
		return args[0]
	}
	return Operation{Op: OpOr, Args: args}
}

// Implies builds !a | b.
func Implies(a, b Expr) Expr { return Or(Not(a), b) }

// Equal reports structural equality. Numeric constants compare by value.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Symbol:
		y, ok := b.(Symbol)
		return ok && x == y
	case Constant:
		y, ok := b.(Constant)
		if !ok {
			return false
		}
		if x.Value == y.Value {
			return true
		}
		_, xb := x.Truth()
		_, yb := y.Truth()
		if xb || yb {
			return false
		}
		fx, okx := x.Float()
		fy, oky := y.Float()
		return okx && oky && fx == fy
	case Operation:
		y, ok := b.(Operation)
		if !ok || x.Op != y.Op || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders e in infix form for messages.
func Format(e Expr) string {
	switch x := e.(type) {
	case Symbol:
		return x.Name
	case Constant:
		return x.Value
	case Operation:
		switch len(x.Args) {
		case 1:
			return x.Op + Format(x.Args[0])
		case 2:
			return "(" + Format(x.Args[0]) + " " + x.Op + " " + Format(x.Args[1]) + ")"
		}
		parts := make([]string, len(x.Args))
		for i, a := range x.Args {
			parts[i] = Format(a)
		}
		return x.Op + "(" + strings.Join(parts, ", ") + ")"
	}
	return "?"
}

// Symbols returns the symbols of e in first-occurrence order.
func Symbols(e Expr) []Symbol {
	var out []Symbol
	seen := map[Symbol]bool{}
	var visit func(Expr)
	visit = func(e Expr) {
		switch x := e.(type) {
		case Symbol:
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		case Operation:
			for _, a := range x.Args {
				visit(a)
			}
		}
	}
	visit(e)
	return out
}
