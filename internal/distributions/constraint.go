package distributions

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gnoverse/pplint/internal/interval"
)

// Kind is the variant of a constraint.
type Kind string

const (
	GreaterThan           Kind = "greater_than"
	GreaterEqThan         Kind = "greater_eq"
	Interval              Kind = "interval"
	Real                  Kind = "real"
	DiscreteInterval      Kind = "discrete_interval"
	DiscreteGreaterEqThan Kind = "discrete_greater_eq"
	Integer               Kind = "integer"
	Simplex               Kind = "simplex"
	PositiveDefinite      Kind = "positive_definite"
	Matrix                Kind = "matrix"
	Vector                Kind = "vector"
	Ordered               Kind = "ordered"
	Unconstrained         Kind = "unconstrained"
)

// IsDiscrete reports whether the constraint ranges over integers.
func (k Kind) IsDiscrete() bool {
	switch k {
	case DiscreteInterval, DiscreteGreaterEqThan, Integer:
		return true
	}
	return false
}

// Bound is a numeric bound or, when Param is set, the value of another
// parameter of the same distribution.
type Bound struct {
	Value float64
	Param string
}

// Num returns a numeric bound.
func Num(v float64) *Bound { return &Bound{Value: v} }

// ParamBound returns a bound given by a parameter.
func ParamBound(name string) *Bound { return &Bound{Param: name} }

func (b *Bound) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: bound must be a scalar", n.Line)
	}
	if n.Tag == "!!int" || n.Tag == "!!float" {
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*b = Bound{Value: v}
		return nil
	}
	*b = Bound{Param: n.Value}
	return nil
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Param != "" {
		return json.Marshal(b.Param)
	}
	return json.Marshal(b.Value)
}

func (b *Bound) String() string {
	if b.Param != "" {
		return b.Param
	}
	return strconv.FormatFloat(b.Value, 'g', -1, 64)
}

// Constraint is a parameter domain or a support. Low and High are nil
// where the variant has no such bound.
type Constraint struct {
	Kind Kind   `yaml:"kind" json:"kind"`
	Low  *Bound `yaml:"low,omitempty" json:"low,omitempty"`
	High *Bound `yaml:"high,omitempty" json:"high,omitempty"`
}

// Resolver gives the value range of a parameter named in a bound.
type Resolver func(param string) (interval.Interval, bool)

// ToInterval converts c to a closed interval. Strict bounds are widened
// to their limit. Bounds naming a parameter are resolved with resolve:
// a lower bound takes the low end of the parameter's range and an upper
// bound the high end. Variants without an interval form, and bounds that
// cannot be resolved, report false.
func ToInterval(c Constraint, resolve Resolver) (interval.Interval, bool) {
	switch c.Kind {
	case GreaterThan, GreaterEqThan, DiscreteGreaterEqThan:
		lo, ok := resolveBound(c.Low, resolve, false)
		return interval.Interval{Low: lo, High: math.Inf(1)}, ok
	case Real, Integer:
		return interval.Top(), true
	case Interval, DiscreteInterval:
		lo, okLo := resolveBound(c.Low, resolve, false)
		hi, okHi := resolveBound(c.High, resolve, true)
		if !okLo || !okHi {
			return interval.Interval{}, false
		}
		return interval.New(lo, hi), true
	}
	return interval.Interval{}, false
}

func resolveBound(b *Bound, resolve Resolver, upper bool) (float64, bool) {
	switch {
	case b == nil && upper:
		return math.Inf(1), true
	case b == nil:
		return math.Inf(-1), true
	case b.Param == "":
		return b.Value, true
	case resolve == nil:
		return 0, false
	}
	r, ok := resolve(b.Param)
	if !ok {
		return 0, false
	}
	if upper {
		return r.High, true
	}
	return r.Low, true
}

// HasInterval reports whether c has an interval form.
func (c Constraint) HasInterval() bool {
	switch c.Kind {
	case GreaterThan, GreaterEqThan, DiscreteGreaterEqThan, Real, Integer, Interval, DiscreteInterval:
		return true
	}
	return false
}

// String renders c as a closed range, e.g. [0, inf] or [0, ..., n].
func (c Constraint) String() string {
	if !c.HasInterval() {
		return displayNames[c.Kind]
	}
	lo, hi := "-inf", "inf"
	if c.Low != nil {
		lo = c.Low.String()
	}
	if c.High != nil {
		hi = c.High.String()
	}
	if c.Kind.IsDiscrete() {
		return "[" + lo + ", ..., " + hi + "]"
	}
	return "[" + lo + ", " + hi + "]"
}

var displayNames = map[Kind]string{
	Simplex:          "Simplex",
	PositiveDefinite: "PositiveDefinite",
	Matrix:           "Matrix",
	Vector:           "Vector",
	Ordered:          "Ordered",
	Unconstrained:    "Unconstrained",
}
