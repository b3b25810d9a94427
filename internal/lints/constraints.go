package lints

import (
	"errors"
	"fmt"

	"github.com/gnoverse/pplint/internal/distributions"
	"github.com/gnoverse/pplint/internal/interval"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

// VerifyConstraints compares the value range of every distribution
// argument in the model with the domain of its parameter.
//
// Random variables are abstracted by their support. Supports are resolved
// in source order, so a support bounded by a parameter sees the supports
// of the variables defined before it.
func VerifyConstraints(s *session.Session) ([]Finding, error) {
	model, err := s.FindModel()
	if err != nil {
		return nil, err
	}
	rvs := s.VariablesIn(model.Node)

	v := interval.Valuation{}
	for _, rv := range rvs {
		props, ok := s.Properties(rv)
		if !ok || rv.Symbol == "" {
			continue
		}
		support, ok := distributions.ToInterval(props.Support, paramResolver(s, rv, v))
		if !ok {
			continue
		}
		// a variable defined on several paths covers all of its supports
		if prev, ok := v.Get(rv.Symbol); ok {
			support = interval.Union(prev, support)
		}
		v.Set(rv.Symbol, support)
	}

	var out []Finding
	for _, rv := range rvs {
		props, ok := s.Properties(rv)
		if !ok {
			continue
		}
		for _, p := range rv.Distribution.Params {
			c, ok := props.Constraint(p.Name)
			if !ok {
				continue
			}
			domain, ok := distributions.ToInterval(c, paramResolver(s, rv, v))
			if !ok {
				continue
			}
			est := estimate(s, p.Node, v)
			if est.Low >= domain.Low && est.High <= domain.High {
				continue
			}
			out = append(out, Finding{
				Kind: "ConstraintViolation",
				Name: rv.Name,
				Node: p.Node,
				Message: fmt.Sprintf("Parameter %s of %s distribution has constraint %s, but values are estimated to be in %s.",
					p.Name, rv.Distribution.Name, domain, est),
				Note: s.Syntax().Source(rv.Node),
			})
		}
	}
	return out, nil
}

// paramResolver bounds a parameter named in a constraint by the value
// range of the argument passed for it.
func paramResolver(s *session.Session, rv ppl.RandomVariable, v interval.Valuation) distributions.Resolver {
	return func(name string) (interval.Interval, bool) {
		p, ok := rv.Distribution.Param(name)
		if !ok {
			return interval.Interval{}, false
		}
		return estimate(s, p.Node, v), true
	}
}

// estimate bounds id under v. A certain division by zero is unbounded.
func estimate(s *session.Session, id syntax.NodeID, v interval.Valuation) interval.Interval {
	x, err := s.Range(id, v)
	if errors.Is(err, interval.ErrZeroDivision) {
		return interval.Top()
	}
	return x
}
