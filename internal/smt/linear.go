package smt

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/gnoverse/pplint/internal/symbolic"
)

// maxExponent bounds constant powers folded during linearization.
const maxExponent = 64

// linear is the affine form sum(coef[x] * x) + c. Zero coefficients are
// never stored.
type linear struct {
	coef map[string]*big.Rat
	c    *big.Rat
}

func constLinear(c *big.Rat) linear {
	return linear{coef: map[string]*big.Rat{}, c: c}
}

func varLinear(name string) linear {
	return linear{coef: map[string]*big.Rat{name: big.NewRat(1, 1)}, c: new(big.Rat)}
}

func (l linear) isConst() bool { return len(l.coef) == 0 }

func (l linear) clone() linear {
	out := linear{coef: make(map[string]*big.Rat, len(l.coef)), c: new(big.Rat).Set(l.c)}
	for k, v := range l.coef {
		out.coef[k] = new(big.Rat).Set(v)
	}
	return out
}

func (l linear) add(o linear) linear {
	out := l.clone()
	out.c.Add(out.c, o.c)
	for k, v := range o.coef {
		if cur, ok := out.coef[k]; ok {
			cur.Add(cur, v)
			if cur.Sign() == 0 {
				delete(out.coef, k)
			}
			continue
		}
		out.coef[k] = new(big.Rat).Set(v)
	}
	return out
}

func (l linear) scale(k *big.Rat) linear {
	if k.Sign() == 0 {
		return constLinear(new(big.Rat))
	}
	out := l.clone()
	out.c.Mul(out.c, k)
	for _, v := range out.coef {
		v.Mul(v, k)
	}
	return out
}

func (l linear) neg() linear { return l.scale(big.NewRat(-1, 1)) }

func (l linear) sub(o linear) linear { return l.add(o.neg()) }

// vars returns the variables of l in sorted order.
func (l linear) vars() []string {
	out := make([]string, 0, len(l.coef))
	for k := range l.coef {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (l linear) String() string {
	var b strings.Builder
	for _, v := range l.vars() {
		b.WriteString(l.coef[v].RatString())
		b.WriteByte('*')
		b.WriteString(v)
		b.WriteByte('+')
	}
	b.WriteString(l.c.RatString())
	return b.String()
}

// linearizer turns arithmetic expressions into affine forms and records
// the sort of every variable it meets.
type linearizer struct {
	types map[string]symbolic.Type
}

func (lz *linearizer) linearize(e symbolic.Expr) (linear, bool) {
	switch x := e.(type) {
	case symbolic.Symbol:
		if x.Type == symbolic.Bool {
			return linear{}, false
		}
		if prev, ok := lz.types[x.Name]; !ok || prev != symbolic.Int {
			lz.types[x.Name] = x.Type
		}
		return varLinear(x.Name), true
	case symbolic.Constant:
		r, ok := rational(x)
		if !ok {
			return linear{}, false
		}
		return constLinear(r), true
	case symbolic.Operation:
		return lz.operation(x)
	}
	return linear{}, false
}

func (lz *linearizer) operation(o symbolic.Operation) (linear, bool) {
	args := make([]linear, len(o.Args))
	for i, a := range o.Args {
		l, ok := lz.linearize(a)
		if !ok {
			return linear{}, false
		}
		args[i] = l
	}
	switch o.Op {
	case symbolic.OpAdd:
		if len(args) == 0 {
			return linear{}, false
		}
		out := args[0]
		for _, a := range args[1:] {
			out = out.add(a)
		}
		return out, true
	case symbolic.OpSub:
		switch len(args) {
		case 0:
			return linear{}, false
		case 1:
			return args[0].neg(), true
		}
		out := args[0]
		for _, a := range args[1:] {
			out = out.sub(a)
		}
		return out, true
	case symbolic.OpMul:
		if len(args) == 0 {
			return linear{}, false
		}
		out := args[0]
		for _, a := range args[1:] {
			switch {
			case a.isConst():
				out = out.scale(a.c)
			case out.isConst():
				out = a.scale(out.c)
			default:
				return linear{}, false
			}
		}
		return out, true
	case symbolic.OpDiv:
		if len(args) != 2 || !args[1].isConst() || args[1].c.Sign() == 0 {
			return linear{}, false
		}
		return args[0].scale(new(big.Rat).Inv(args[1].c)), true
	case symbolic.OpPow:
		if len(args) != 2 || !args[1].isConst() || !args[1].c.IsInt() {
			return linear{}, false
		}
		n := args[1].c.Num()
		if !n.IsInt64() || n.Int64() > maxExponent || n.Int64() < -maxExponent {
			return linear{}, false
		}
		k := n.Int64()
		switch {
		case k == 1:
			return args[0], true
		case k == 0:
			return constLinear(big.NewRat(1, 1)), true
		case !args[0].isConst():
			return linear{}, false
		}
		return power(args[0].c, k)
	}
	return linear{}, false
}

func power(base *big.Rat, k int64) (linear, bool) {
	if k < 0 {
		if base.Sign() == 0 {
			return linear{}, false
		}
		base = new(big.Rat).Inv(base)
		k = -k
	}
	out := big.NewRat(1, 1)
	for i := int64(0); i < k; i++ {
		out.Mul(out, base)
	}
	return constLinear(out), true
}

// rational returns the exact value of a finite numeric constant. True and
// False count as 1 and 0.
func rational(c symbolic.Constant) (*big.Rat, bool) {
	if v, ok := c.Truth(); ok {
		if v {
			return big.NewRat(1, 1), true
		}
		return new(big.Rat), true
	}
	if r, ok := new(big.Rat).SetString(c.Value); ok {
		return r, true
	}
	f, ok := c.Float()
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, false
	}
	return new(big.Rat).SetFloat64(f), true
}
