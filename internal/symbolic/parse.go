package symbolic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for input outside the wire grammar.
var ErrSyntax = errors.New("symbolic: invalid expression")

// Parse reads the wire grammar
//
//	expr ::= Constant(v) | Real(name) | Int(name) | Bool(name) | op(expr,...,expr)
//
// with no whitespace between tokens. String of the result reproduces s.
func Parse(s string) (Expr, error) {
	p := &parser{src: s}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(s) {
		return nil, p.errorf("trailing input %q", s[p.pos:])
	}
	return e, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) expr() (Expr, error) {
	open := strings.IndexByte(p.src[p.pos:], '(')
	if open < 0 {
		return nil, p.errorf("expected '('")
	}
	head := p.src[p.pos : p.pos+open]
	if head == "" || strings.ContainsAny(head, ",)") {
		return nil, p.errorf("missing operator")
	}
	p.pos += open + 1

	switch head {
	case "Constant", "Real", "Int", "Bool":
		end := strings.IndexByte(p.src[p.pos:], ')')
		if end < 0 {
			return nil, p.errorf("unterminated %s", head)
		}
		lit := p.src[p.pos : p.pos+end]
		p.pos += end + 1
		switch head {
		case "Constant":
			return Constant{Value: lit}, nil
		case "Real":
			return Symbol{Name: lit, Type: Real}, nil
		case "Int":
			return Symbol{Name: lit, Type: Int}, nil
		}
		return Symbol{Name: lit, Type: Bool}, nil
	}

	op := Operation{Op: head}
	if p.peek() == ')' {
		p.pos++
		return op, nil
	}
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		op.Args = append(op.Args, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return op, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}
