package smt

import (
	"github.com/gnoverse/pplint/internal/symbolic"
)

type atomKind uint8

const (
	atomTheory atomKind = iota + 1
	atomBool
	atomOpaque
)

type atom struct {
	kind atomKind
	name string     // Boolean symbol
	cons constraint // theory atom, asserted when the variable is true
}

// encoder builds an equisatisfiable CNF of a formula. Theory atoms and
// Boolean symbols get one propositional variable each; everything the
// theory cannot interpret becomes an opaque variable.
type encoder struct {
	lz      linearizer
	nvars   int
	clauses [][]int
	atoms   map[int]atom
	keys    map[string]int
	trueVar int
	opaque  bool
}

func newEncoder() *encoder {
	e := &encoder{
		lz:    linearizer{types: map[string]symbolic.Type{}},
		atoms: map[int]atom{},
		keys:  map[string]int{},
	}
	e.trueVar = e.fresh()
	e.clauses = append(e.clauses, []int{e.trueVar})
	return e
}

func (e *encoder) fresh() int {
	e.nvars++
	return e.nvars
}

func (e *encoder) variable(key string, a atom) int {
	if v, ok := e.keys[key]; ok {
		return v
	}
	v := e.fresh()
	e.keys[key] = v
	e.atoms[v] = a
	if a.kind == atomOpaque {
		e.opaque = true
	}
	return v
}

func (e *encoder) constLit(b bool) int {
	if b {
		return e.trueVar
	}
	return -e.trueVar
}

// lit returns a literal equivalent to the truth of x.
func (e *encoder) lit(x symbolic.Expr) int {
	switch x := x.(type) {
	case symbolic.Constant:
		if b, ok := x.Truth(); ok {
			return e.constLit(b)
		}
		if f, ok := x.Float(); ok {
			return e.constLit(f != 0)
		}
		return e.opaqueLit(x)
	case symbolic.Symbol:
		if x.Type == symbolic.Bool {
			return e.variable("b:"+x.Name, atom{kind: atomBool, name: x.Name})
		}
		return -e.compare(symbolic.OpEq, x, symbolic.Num(0), x)
	case symbolic.Operation:
		switch x.Op {
		case symbolic.OpNot:
			if len(x.Args) == 1 {
				return -e.lit(x.Args[0])
			}
		case symbolic.OpAnd:
			return e.and(e.lits(x.Args))
		case symbolic.OpOr:
			return -e.and(negate(e.lits(x.Args)))
		case symbolic.OpEq, symbolic.OpNeq, symbolic.OpLt, symbolic.OpLte, symbolic.OpGt, symbolic.OpGte:
			if len(x.Args) == 2 {
				return e.compare(x.Op, x.Args[0], x.Args[1], x)
			}
		}
	}
	return e.opaqueLit(x)
}

func (e *encoder) lits(xs []symbolic.Expr) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = e.lit(x)
	}
	return out
}

func negate(lits []int) []int {
	out := make([]int, len(lits))
	for i, l := range lits {
		out[i] = -l
	}
	return out
}

func (e *encoder) opaqueLit(x symbolic.Expr) int {
	return e.variable("o:"+x.String(), atom{kind: atomOpaque})
}

// and introduces v <-> (l1 & ... & ln).
func (e *encoder) and(lits []int) int {
	switch len(lits) {
	case 0:
		return e.trueVar
	case 1:
		return lits[0]
	}
	v := e.fresh()
	long := []int{v}
	for _, l := range lits {
		e.clauses = append(e.clauses, []int{-v, l})
		long = append(long, -l)
	}
	e.clauses = append(e.clauses, long)
	return v
}

// iff introduces v <-> (a <-> b).
func (e *encoder) iff(a, b int) int {
	v := e.fresh()
	e.clauses = append(e.clauses,
		[]int{-v, -a, b}, []int{-v, a, -b},
		[]int{v, a, b}, []int{v, -a, -b},
	)
	return v
}

func boolean(x symbolic.Expr) bool {
	switch x := x.(type) {
	case symbolic.Symbol:
		return x.Type == symbolic.Bool
	case symbolic.Constant:
		_, ok := x.Truth()
		return ok
	case symbolic.Operation:
		switch x.Op {
		case symbolic.OpNot, symbolic.OpAnd, symbolic.OpOr, symbolic.OpEq, symbolic.OpNeq,
			symbolic.OpLt, symbolic.OpLte, symbolic.OpGt, symbolic.OpGte:
			return true
		}
	}
	return false
}

func (e *encoder) compare(op string, a, b, whole symbolic.Expr) int {
	if (op == symbolic.OpEq || op == symbolic.OpNeq) && (boolean(a) || boolean(b)) {
		l := e.iff(e.lit(a), e.lit(b))
		if op == symbolic.OpNeq {
			return -l
		}
		return l
	}
	la, okA := e.lz.linearize(a)
	lb, okB := e.lz.linearize(b)
	if !okA || !okB {
		return e.opaqueLit(whole)
	}
	d := la.sub(lb)
	switch op {
	case symbolic.OpLt:
		return e.theory(constraint{lin: d, strict: true})
	case symbolic.OpLte:
		return e.theory(constraint{lin: d})
	case symbolic.OpGt:
		return e.theory(constraint{lin: d.neg(), strict: true})
	case symbolic.OpGte:
		return e.theory(constraint{lin: d.neg()})
	}
	eq := e.and([]int{e.theory(constraint{lin: d}), e.theory(constraint{lin: d.neg()})})
	if op == symbolic.OpNeq {
		return -eq
	}
	return eq
}

func (e *encoder) theory(c constraint) int {
	if holds, ok := c.trivial(); ok {
		return e.constLit(holds)
	}
	// share a variable between an atom and its complement
	neg := c.negate()
	if v, ok := e.keys["t:"+neg.key()]; ok {
		return -v
	}
	return e.variable("t:"+c.key(), atom{kind: atomTheory, cons: c})
}
