// Package interval implements closed intervals over the extended reals and
// an abstract interpreter that bounds the value of an expression.
package interval

import (
	"errors"
	"math"
	"strconv"
)

// ErrZeroDivision is returned when dividing by the point interval [0, 0].
var ErrZeroDivision = errors.New("interval: division by zero")

// Interval is the closed range [Low, High]. Bounds may be infinite; Low is
// never greater than High.
type Interval struct {
	Low  float64
	High float64
}

// New returns [low, high], swapping the bounds if needed.
func New(low, high float64) Interval {
	if low > high {
		low, high = high, low
	}
	return Interval{Low: low, High: high}
}

// Point returns [v, v].
func Point(v float64) Interval { return Interval{Low: v, High: v} }

// Top returns (-inf, inf).
func Top() Interval { return Interval{Low: math.Inf(-1), High: math.Inf(1)} }

// IsTop reports whether i is unbounded on both sides.
func (i Interval) IsTop() bool { return math.IsInf(i.Low, -1) && math.IsInf(i.High, 1) }

// IsPoint reports whether i holds a single value.
func (i Interval) IsPoint() bool { return i.Low == i.High }

// Contains reports whether v lies in i.
func (i Interval) Contains(v float64) bool { return i.Low <= v && v <= i.High }

// IsSubset reports whether every value of i lies in o.
func (i Interval) IsSubset(o Interval) bool { return o.Low <= i.Low && i.High <= o.High }

func (i Interval) String() string {
	return "[" + formatBound(i.Low) + ", " + formatBound(i.High) + "]"
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func Add(x, y Interval) Interval { return New(x.Low+y.Low, x.High+y.High) }

func Sub(x, y Interval) Interval { return New(x.Low-y.High, x.High-y.Low) }

func Neg(x Interval) Interval { return Interval{Low: -x.High, High: -x.Low} }

// Mul takes the hull of the four corner products. Corners that are NaN
// (zero times infinity) are ignored.
func Mul(x, y Interval) Interval {
	return hull(x.Low*y.Low, x.Low*y.High, x.High*y.Low, x.High*y.High)
}

// Div multiplies x by the reciprocal of y. A denominator touching zero on
// one side yields a half-unbounded reciprocal; one straddling zero yields
// (-inf, inf).
func Div(x, y Interval) (Interval, error) {
	var r Interval
	switch {
	case y.Low == 0 && y.High == 0:
		return Interval{}, ErrZeroDivision
	case y.Low > 0 || y.High < 0:
		r = New(1/y.High, 1/y.Low)
	case y.Low == 0:
		r = Interval{Low: 1 / y.High, High: math.Inf(1)}
	case y.High == 0:
		r = Interval{Low: math.Inf(-1), High: 1 / y.Low}
	default:
		return Top(), nil
	}
	return Mul(x, r), nil
}

// FloorDiv is Div with both bounds rounded down.
func FloorDiv(x, y Interval) (Interval, error) {
	q, err := Div(x, y)
	if err != nil {
		return q, err
	}
	return Interval{Low: math.Floor(q.Low), High: math.Floor(q.High)}, nil
}

// Mod bounds Python's modulo, whose result takes the sign of the divisor.
func Mod(x, y Interval) Interval {
	switch {
	case y.Low > 0:
		if x.Low >= 0 && x.High < y.Low {
			return x
		}
		return Interval{Low: 0, High: y.High}
	case y.High < 0:
		return Interval{Low: y.Low, High: 0}
	}
	return Top()
}

// Pow raises x to the power y. A point integer exponent is exact: odd
// powers are monotone and even powers clamp at zero when x straddles it.
// Other exponents take the exp/log hull of the corners, which requires a
// non-negative base.
func Pow(x, y Interval) Interval {
	if y.IsPoint() && y.Low == math.Trunc(y.Low) && !math.IsInf(y.Low, 0) {
		return powInt(x, int(y.Low))
	}
	if x.Low < 0 {
		return Top()
	}
	return hull(
		math.Pow(x.Low, y.Low), math.Pow(x.Low, y.High),
		math.Pow(x.High, y.Low), math.Pow(x.High, y.High),
	)
}

func powInt(x Interval, n int) Interval {
	switch {
	case n == 0:
		return Point(1)
	case n < 0:
		r, err := Div(Point(1), powInt(x, -n))
		if err != nil {
			return Top()
		}
		return r
	}
	lo, hi := math.Pow(x.Low, float64(n)), math.Pow(x.High, float64(n))
	switch {
	case n%2 == 1, x.Low >= 0:
		return New(lo, hi)
	case x.High <= 0:
		return New(hi, lo)
	}
	return Interval{Low: 0, High: math.Max(lo, hi)}
}

func Min(x, y Interval) Interval {
	return Interval{Low: math.Min(x.Low, y.Low), High: math.Min(x.High, y.High)}
}

func Max(x, y Interval) Interval {
	return Interval{Low: math.Max(x.Low, y.Low), High: math.Max(x.High, y.High)}
}

// Sqrt clamps negative bounds to zero.
func Sqrt(x Interval) Interval {
	return Interval{Low: math.Sqrt(math.Max(x.Low, 0)), High: math.Sqrt(math.Max(x.High, 0))}
}

// Log maps non-positive bounds to -inf.
func Log(x Interval) Interval {
	return Interval{Low: logBound(x.Low), High: logBound(x.High)}
}

func logBound(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return math.Log(v)
}

func Exp(x Interval) Interval { return Interval{Low: math.Exp(x.Low), High: math.Exp(x.High)} }

func Abs(x Interval) Interval {
	switch {
	case x.Low >= 0:
		return x
	case x.High <= 0:
		return Neg(x)
	}
	return Interval{Low: 0, High: math.Max(-x.Low, x.High)}
}

// Monotone applies an increasing function to both bounds.
func Monotone(x Interval, f func(float64) float64) Interval {
	return Interval{Low: f(x.Low), High: f(x.High)}
}

// Union returns the smallest interval containing x and y.
func Union(x, y Interval) Interval {
	return Interval{Low: math.Min(x.Low, y.Low), High: math.Max(x.High, y.High)}
}

// Bool is the range of a comparison or other truth value.
func Bool() Interval { return Interval{Low: 0, High: 1} }

func hull(vs ...float64) Interval {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo > hi {
		return Point(0)
	}
	return Interval{Low: lo, High: hi}
}
