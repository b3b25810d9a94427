package preprocess

import (
	"math"
	"strconv"

	"github.com/gnoverse/pplint/internal/syntax"
)

// unroll replaces `for i in range(...)` loops whose bounds are integer
// literals and whose trip count is at most limit by one copy of the body
// per iteration, with i substituted by its value, followed by `i = last`
// since the variable stays bound after the loop. Loops that cannot be
// unrolled exactly (break/continue, rebinding i, nested definitions) are
// left alone and analyzed as loops. Inner loops are unrolled first.
func (p *pass) unroll(limit int) {
	t := p.t
	loops := t.Find(t.Root, true, func(id syntax.NodeID) bool {
		return t.Kind(id) == syntax.KindFor
	})
	for i := len(loops) - 1; i >= 0; i-- {
		loop := loops[i]
		values, ok := p.tripValues(loop, limit)
		if !ok {
			continue
		}
		block := t.Parent(loop)
		var out []syntax.NodeID
		for _, s := range t.Node(block).Elts {
			if s != loop {
				out = append(out, s)
				continue
			}
			out = append(out, p.unrolled(loop, values)...)
		}
		t.SetStatements(block, out)
	}
}

func (p *pass) unrolled(loop syntax.NodeID, values []int64) []syntax.NodeID {
	t := p.t
	n := *t.Node(loop)
	name := t.Node(n.Target).Name
	body := append([]syntax.NodeID(nil), t.Node(n.Body).Elts...)
	var out []syntax.NodeID
	for _, v := range values {
		for _, s := range body {
			out = append(out, t.CloneWith(s, func(id syntax.NodeID) syntax.NodeID {
				c := t.Node(id)
				if c.Kind != syntax.KindName || c.Name != name {
					return syntax.NoNode
				}
				return p.intConstant(v, c.Span)
			}))
		}
	}
	if len(values) > 0 {
		last := values[len(values)-1]
		out = append(out, p.assign(p.name(name, n.Span), p.intConstant(last, n.Span), n.Span))
	}
	return out
}

func (p *pass) intConstant(v int64, span syntax.Span) syntax.NodeID {
	k := syntax.New(syntax.KindConstant)
	k.Const = syntax.ConstInt
	k.Literal = strconv.FormatInt(v, 10)
	k.Span = span
	k.Synthetic = true
	return p.t.Add(k)
}

// tripValues returns the successive values of the loop variable, or false
// when the loop is not unrollable within limit.
func (p *pass) tripValues(loop syntax.NodeID, limit int) ([]int64, bool) {
	t := p.t
	n := t.Node(loop)
	if t.Kind(n.Target) != syntax.KindName || t.CallName(n.Iter) != "range" {
		return nil, false
	}
	call := t.Node(n.Iter)
	if len(call.Keywords) > 0 || len(call.Elts) == 0 || len(call.Elts) > 3 {
		return nil, false
	}
	args := make([]int64, 0, 3)
	for _, a := range call.Elts {
		v, ok := intLiteral(t, a)
		if !ok {
			return nil, false
		}
		args = append(args, v)
	}
	start, stop, step := int64(0), args[0], int64(1)
	if len(args) > 1 {
		start, stop = args[0], args[1]
	}
	if len(args) > 2 {
		step = args[2]
	}
	if step == 0 {
		return nil, false
	}
	count := int64(0)
	if step > 0 && stop > start {
		count = (stop - start + step - 1) / step
	} else if step < 0 && stop < start {
		count = (start - stop - step - 1) / -step
	}
	if count > int64(limit) || !p.unrollableBody(loop) {
		return nil, false
	}
	values := make([]int64, count)
	for i := range values {
		values[i] = start + int64(i)*step
	}
	return values, true
}

// unrollableBody rejects bodies whose copies would not be equivalent to
// the loop: jumps out of this loop, definitions, and writes to the loop
// variable.
func (p *pass) unrollableBody(loop syntax.NodeID) bool {
	t := p.t
	n := t.Node(loop)
	name := t.Node(n.Target).Name
	ok := true
	t.Walk(n.Body, func(id syntax.NodeID) bool {
		c := t.Node(id)
		switch c.Kind {
		case syntax.KindFunctionDef:
			ok = false
		case syntax.KindBreak, syntax.KindContinue:
			if t.Enclosing(id, syntax.KindFor, syntax.KindWhile) == loop {
				ok = false
			}
		case syntax.KindAssign:
			if tg := t.Node(id).Target; t.Kind(tg) == syntax.KindName && t.Node(tg).Name == name {
				ok = false
			}
		case syntax.KindFor, syntax.KindWith:
			if tg := c.Target; tg.Valid() && t.Kind(tg) == syntax.KindName && t.Node(tg).Name == name {
				ok = false
			}
		}
		return ok
	})
	return ok
}

func intLiteral(t *syntax.Tree, id syntax.NodeID) (int64, bool) {
	n := t.Node(id)
	switch n.Kind {
	case syntax.KindConstant:
		if n.Const != syntax.ConstInt {
			return 0, false
		}
		v, err := strconv.ParseInt(n.Literal, 0, 64)
		return v, err == nil
	case syntax.KindUnaryOp:
		v, ok := intLiteral(t, n.Value)
		switch {
		case !ok:
			return 0, false
		case n.Op == syntax.OpNeg && v != math.MinInt64:
			return -v, true
		case n.Op == syntax.OpPos:
			return v, true
		}
	}
	return 0, false
}
