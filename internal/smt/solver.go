// Package smt decides satisfiability of symbolic formulas over linear
// real and integer arithmetic. The propositional skeleton is solved by
// gophersat; each propositional model is checked against the arithmetic
// theory and refuted with a blocking clause until a consistent model is
// found or the skeleton becomes unsatisfiable.
package smt

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/crillab/gophersat/solver"

	"github.com/gnoverse/pplint/internal/symbolic"
)

const (
	DefaultMaxIterations  = 256
	DefaultMaxConstraints = 4096
)

// Solver checks formulas. The zero value is not usable; use New.
type Solver struct {
	MaxIterations  int
	MaxConstraints int
}

// New returns a solver with default limits.
func New() *Solver {
	return &Solver{MaxIterations: DefaultMaxIterations, MaxConstraints: DefaultMaxConstraints}
}

// Check decides whether formula has a model. Unsat answers are exact;
// a Sat answer whose model rests on atoms outside linear arithmetic is
// reported as Unknown.
func (s *Solver) Check(ctx context.Context, formula symbolic.Expr) Result {
	enc := newEncoder()
	root := enc.lit(formula)
	enc.clauses = append(enc.clauses, []int{root})
	fe := &feasibility{types: enc.lz.types, maxConstraints: s.MaxConstraints}

	for i := 0; i < s.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return UnknownResult(err.Error())
		}
		pb := solver.ParseSliceNb(enc.clauses, enc.nvars)
		sat := solver.New(pb)
		switch sat.Solve() {
		case solver.Unsat:
			return UnsatResult()
		case solver.Indet:
			return UnknownResult("propositional search gave up")
		}
		assignment := sat.Model()

		var asserted []int
		var cons []constraint
		for v := 1; v <= enc.nvars; v++ {
			a, ok := enc.atoms[v]
			if !ok || a.kind != atomTheory {
				continue
			}
			c := a.cons
			l := v
			if !assignment[v-1] {
				c, l = c.negate(), -v
			}
			asserted = append(asserted, l)
			cons = append(cons, c)
		}

		values, err := fe.solve(cons)
		switch {
		case errors.Is(err, errInfeasible):
			core := s.minimize(fe, asserted, cons)
			enc.clauses = append(enc.clauses, negate(core))
			continue
		case err != nil:
			return UnknownResult(err.Error())
		}
		if enc.opaque {
			return UnknownResult("formula contains non-linear terms")
		}
		return SatResult(model(enc, assignment, values))
	}
	return UnknownResult(fmt.Sprintf("no answer after %d iterations", s.MaxIterations))
}

// minimize drops literals from a theory conflict while the remainder
// stays infeasible. Chunks are dropped first, halving the chunk size down
// to single literals, so large conflicts shrink in few theory calls.
func (s *Solver) minimize(fe *feasibility, lits []int, cons []constraint) []int {
	for size := len(lits) / 2; size >= 1; size /= 2 {
		for i := 0; i < len(lits); {
			end := min(i+size, len(lits))
			rest := make([]constraint, 0, len(cons)-(end-i))
			rest = append(rest, cons[:i]...)
			rest = append(rest, cons[end:]...)
			if _, err := fe.solve(rest); errors.Is(err, errInfeasible) {
				lits = append(lits[:i:i], lits[end:]...)
				cons = rest
				continue
			}
			i = end
		}
	}
	return lits
}

func model(enc *encoder, assignment []bool, values map[string]*big.Rat) map[string]float64 {
	out := make(map[string]float64, len(values)+len(enc.lz.types))
	for name := range enc.lz.types {
		out[name] = 0
	}
	for name, v := range values {
		f, _ := v.Float64()
		out[name] = f
	}
	for v, a := range enc.atoms {
		if a.kind != atomBool {
			continue
		}
		out[a.name] = 0
		if assignment[v-1] {
			out[a.name] = 1
		}
	}
	return out
}
