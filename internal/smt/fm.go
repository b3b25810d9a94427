package smt

import (
	"errors"
	"math/big"
	"sort"

	"github.com/gnoverse/pplint/internal/symbolic"
)

var (
	errInfeasible  = errors.New("infeasible")
	errTooLarge    = errors.New("constraint set too large")
	errIntegrality = errors.New("no integer assignment found")
)

// constraint is lin < 0 when strict, lin <= 0 otherwise.
type constraint struct {
	lin    linear
	strict bool
}

func (c constraint) key() string {
	if c.strict {
		return c.lin.String() + "<0"
	}
	return c.lin.String() + "<=0"
}

// negate returns the complement: !(l <= 0) is -l < 0, !(l < 0) is -l <= 0.
func (c constraint) negate() constraint {
	return constraint{lin: c.lin.neg(), strict: !c.strict}
}

// trivial reports whether c has no variables, and if so whether it holds.
func (c constraint) trivial() (holds, ok bool) {
	if !c.lin.isConst() {
		return false, false
	}
	s := c.lin.c.Sign()
	if c.strict {
		return s < 0, true
	}
	return s <= 0, true
}

// tighten rewrites a constraint over integer variables with integral
// coefficients divided by their gcd and the constant rounded, turning
// strict bounds into non-strict ones.
func tighten(c constraint, types map[string]symbolic.Type) constraint {
	if c.lin.isConst() {
		return c
	}
	for v := range c.lin.coef {
		if types[v] != symbolic.Int {
			return c
		}
	}
	// scale to integral coefficients
	lcm := big.NewInt(1)
	for _, q := range c.lin.coef {
		lcm = lcmInt(lcm, q.Denom())
	}
	lin := c.lin.scale(new(big.Rat).SetInt(lcm))
	gcd := new(big.Int)
	for _, q := range lin.coef {
		gcd.GCD(nil, nil, gcd, new(big.Int).Abs(q.Num()))
	}
	// sum a*x + k < 0  <=>  sum a*x + k' <= 0 with k' = floor(k)+1 over integers
	k := new(big.Rat).Set(lin.c)
	if c.strict {
		k = new(big.Rat).SetInt(floorRat(k))
		k.Add(k, big.NewRat(1, 1))
	}
	g := new(big.Rat).SetInt(gcd)
	out := lin.scale(new(big.Rat).Inv(g))
	out.c = new(big.Rat).SetInt(ceilRat(new(big.Rat).Quo(k, g)))
	return constraint{lin: out}
}

func lcmInt(a, b *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, a, b)
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, g)
}

func floorRat(r *big.Rat) *big.Int {
	q := new(big.Int)
	q.DivMod(r.Num(), r.Denom(), new(big.Int))
	return q
}

func ceilRat(r *big.Rat) *big.Int {
	q := floorRat(r)
	if !r.IsInt() {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// feasibility decides a conjunction of linear constraints by
// Fourier-Motzkin elimination and builds a model by back-substitution.
type feasibility struct {
	types          map[string]symbolic.Type
	maxConstraints int
}

func (f *feasibility) solve(cons []constraint) (map[string]*big.Rat, error) {
	order := eliminationOrder(cons)
	levels := make([][]constraint, 0, len(order)+1)

	current, err := f.normalize(cons)
	if err != nil {
		return nil, err
	}
	for _, x := range order {
		levels = append(levels, current)
		var pos, neg, rest []constraint
		for _, c := range current {
			q, ok := c.lin.coef[x]
			switch {
			case !ok:
				rest = append(rest, c)
			case q.Sign() > 0:
				pos = append(pos, c)
			default:
				neg = append(neg, c)
			}
		}
		if len(rest)+len(pos)*len(neg) > f.maxConstraints {
			return nil, errTooLarge
		}
		for _, p := range pos {
			for _, n := range neg {
				a := p.lin.coef[x]
				b := new(big.Rat).Neg(n.lin.coef[x])
				combined := p.lin.scale(b).add(n.lin.scale(a))
				delete(combined.coef, x)
				rest = append(rest, constraint{lin: combined, strict: p.strict || n.strict})
			}
		}
		if current, err = f.normalize(rest); err != nil {
			return nil, err
		}
	}

	model := make(map[string]*big.Rat, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		v, err := f.pick(order[i], levels[i], model)
		if err != nil {
			return nil, err
		}
		model[order[i]] = v
	}
	return model, nil
}

// normalize drops duplicate and trivially true constraints and fails on
// a trivially false one.
func (f *feasibility) normalize(cons []constraint) ([]constraint, error) {
	seen := make(map[string]bool, len(cons))
	out := cons[:0:0]
	for _, c := range cons {
		c = tighten(c, f.types)
		if holds, ok := c.trivial(); ok {
			if !holds {
				return nil, errInfeasible
			}
			continue
		}
		k := c.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out, nil
}

// eliminationOrder eliminates the variables with the fewest occurrences
// first.
func eliminationOrder(cons []constraint) []string {
	count := map[string]int{}
	for _, c := range cons {
		for v := range c.lin.coef {
			count[v]++
		}
	}
	order := make([]string, 0, len(count))
	for v := range count {
		order = append(order, v)
	}
	sort.Slice(order, func(i, j int) bool {
		if count[order[i]] != count[order[j]] {
			return count[order[i]] < count[order[j]]
		}
		return order[i] < order[j]
	})
	return order
}

type bound struct {
	value  *big.Rat
	strict bool
}

// pick chooses a value for x satisfying every constraint of its level
// given the values already chosen for the variables eliminated after it.
func (f *feasibility) pick(x string, cons []constraint, model map[string]*big.Rat) (*big.Rat, error) {
	var lo, hi *bound
	for _, c := range cons {
		a, ok := c.lin.coef[x]
		if !ok {
			continue
		}
		// a*x + rest (<|<=) 0
		rest := new(big.Rat).Set(c.lin.c)
		for v, q := range c.lin.coef {
			if v == x {
				continue
			}
			val, ok := model[v]
			if !ok {
				val = new(big.Rat)
			}
			rest.Add(rest, new(big.Rat).Mul(q, val))
		}
		limit := new(big.Rat).Quo(new(big.Rat).Neg(rest), a)
		b := &bound{value: limit, strict: c.strict}
		if a.Sign() > 0 {
			hi = tighter(hi, b, -1)
		} else {
			lo = tighter(lo, b, 1)
		}
	}
	return choose(lo, hi, f.types[x] == symbolic.Int)
}

// tighter keeps the more restrictive of two bounds; dir is 1 for lower
// bounds and -1 for upper bounds.
func tighter(cur, b *bound, dir int) *bound {
	if cur == nil {
		return b
	}
	switch cmp := b.value.Cmp(cur.value) * dir; {
	case cmp > 0:
		return b
	case cmp == 0 && b.strict:
		return b
	}
	return cur
}

func satisfies(v *big.Rat, lo, hi *bound) bool {
	if lo != nil {
		c := v.Cmp(lo.value)
		if c < 0 || (c == 0 && lo.strict) {
			return false
		}
	}
	if hi != nil {
		c := v.Cmp(hi.value)
		if c > 0 || (c == 0 && hi.strict) {
			return false
		}
	}
	return true
}

// choose prefers zero, then the smallest integer above the lower bound,
// then the largest integer below the upper bound and finally, for reals,
// the midpoint.
func choose(lo, hi *bound, integral bool) (*big.Rat, error) {
	zero := new(big.Rat)
	if satisfies(zero, lo, hi) {
		return zero, nil
	}
	if lo != nil {
		c := new(big.Rat).SetInt(floorRat(lo.value))
		c.Add(c, big.NewRat(1, 1))
		if lo.value.IsInt() && !lo.strict {
			c.Set(lo.value)
		}
		if satisfies(c, lo, hi) {
			return c, nil
		}
	}
	if hi != nil {
		c := new(big.Rat).SetInt(ceilRat(hi.value))
		c.Sub(c, big.NewRat(1, 1))
		if hi.value.IsInt() && !hi.strict {
			c.Set(hi.value)
		}
		if satisfies(c, lo, hi) {
			return c, nil
		}
	}
	if integral {
		return nil, errIntegrality
	}
	switch {
	case lo != nil && hi != nil:
		if lo.value.Cmp(hi.value) == 0 {
			return new(big.Rat).Set(lo.value), nil
		}
		mid := new(big.Rat).Add(lo.value, hi.value)
		return mid.Quo(mid, big.NewRat(2, 1)), nil
	case lo != nil:
		return new(big.Rat).Add(lo.value, big.NewRat(1, 1)), nil
	case hi != nil:
		return new(big.Rat).Sub(hi.value, big.NewRat(1, 1)), nil
	}
	return zero, nil
}
