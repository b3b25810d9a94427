package lints

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gnoverse/pplint/internal/distributions"
	"github.com/gnoverse/pplint/internal/interval"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/smt"
	"github.com/gnoverse/pplint/internal/symbolic"
	"github.com/gnoverse/pplint/internal/syntax"
)

// guideCheck holds what ValidateGuide derives once per program.
type guideCheck struct {
	ctx    context.Context
	s      *session.Session
	solver *smt.Solver

	pc      map[syntax.NodeID]symbolic.Expr
	support map[syntax.NodeID]symbolic.Expr

	// unbounded marks definitions whose paths could not all be enumerated
	unbounded map[syntax.NodeID]bool
}

// ValidateGuide checks that the guide is absolutely continuous with
// respect to the model: whenever the model samples a random variable with
// some value, the guide can sample the same value on the same path.
//
// Every random variable is replaced by a symbol named after it, so the
// path conditions of model and guide talk about the same unknowns.
// Observed variables of the model are never sampled by the guide and are
// left out.
//
// When model or guide has too many paths to enumerate, its variables get
// an UnknownAbsoluteContinuity finding instead of the path checks.
func ValidateGuide(ctx context.Context, s *session.Session, solver *smt.Solver) ([]Finding, error) {
	model, err := s.FindModel()
	if err != nil {
		return nil, err
	}
	guide, err := s.FindGuide()
	if err != nil {
		return nil, err
	}

	masks := map[syntax.NodeID]symbolic.Expr{}
	for _, rv := range s.Variables() {
		masks[rv.Node] = symbolOf(s, rv)
	}
	var modelRVs []ppl.RandomVariable
	for _, rv := range s.VariablesIn(model.Node) {
		if !rv.Observed {
			modelRVs = append(modelRVs, rv)
		}
	}
	guideRVs := s.VariablesIn(guide.Node)

	c := &guideCheck{
		ctx:     ctx,
		s:       s,
		solver:  solver,
		pc:        map[syntax.NodeID]symbolic.Expr{},
		support:   map[syntax.NodeID]symbolic.Expr{},
		unbounded: map[syntax.NodeID]bool{},
	}
	for _, side := range []struct {
		root syntax.NodeID
		rvs  []ppl.RandomVariable
	}{{model.Node, modelRVs}, {guide.Node, guideRVs}} {
		pcs, err := s.Conditions(side.root, nodesOf(side.rvs), masks)
		if errors.Is(err, symbolic.ErrPathLimit) {
			for _, rv := range side.rvs {
				c.pc[rv.Node] = symbolic.BoolConst(true)
				c.support[rv.Node] = c.supportConstraint(rv)
				c.unbounded[rv.Node] = true
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, rv := range side.rvs {
			c.pc[rv.Node] = pcs[rv.Node]
			c.support[rv.Node] = c.supportConstraint(rv)
		}
	}

	modelNames, modelByName := groupByName(modelRVs)
	guideNames, guideByName := groupByName(guideRVs)

	var out []Finding
	out = append(out, c.disjointness("model", modelNames, modelByName)...)
	out = append(out, c.disjointness("guide", guideNames, guideByName)...)

	for _, name := range modelNames {
		inModel := modelByName[name]
		inGuide, ok := guideByName[name]
		if !ok {
			out = append(out, Finding{
				Kind:    "AbsoluteContinuityViolation",
				Name:    name,
				Node:    inModel[0].Node,
				Message: fmt.Sprintf("Sampling %s in model does not imply sampling in guide.", name),
				Note:    "No sample statement in guide.",
			})
			continue
		}
		if mismatches := c.typeMismatches(name, inModel, inGuide); len(mismatches) > 0 {
			out = append(out, mismatches...)
			continue
		}
		out = append(out, c.implication(name, inModel, inGuide)...)
	}

	for _, name := range modelNames {
		inGuide, ok := guideByName[name]
		if !ok {
			continue
		}
		for _, m := range modelByName[name] {
			for _, g := range inGuide {
				out = append(out, c.supportMismatch(name, m, g)...)
			}
		}
	}
	return out, nil
}

// disjointness reports pairs of sample statements for the same name that
// can execute on one path and draw a common value.
func (c *guideCheck) disjointness(fn string, names []string, byName map[string][]ppl.RandomVariable) []Finding {
	t := c.s.Syntax()
	var out []Finding
	for _, name := range names {
		stmts := byName[name]
		for i := 0; i < len(stmts); i++ {
			for j := i + 1; j < len(stmts); j++ {
				a, b := stmts[i], stmts[j]
				if c.unbounded[a.Node] || c.unbounded[b.Node] {
					continue
				}
				res := c.solver.Check(c.ctx, symbolic.And(
					c.pc[a.Node], c.support[a.Node], c.pc[b.Node], c.support[b.Node]))
				if res.Status != smt.Sat {
					continue
				}
				out = append(out, Finding{
					Kind:    "OverlappingSampleStatements",
					Name:    name,
					Node:    b.Node,
					Message: fmt.Sprintf("Sample statements for %s in %s may be executed at the same time.", name, fn),
					Note: fmt.Sprintf("%s in path %s and %s in path %s",
						t.Source(a.Node), symbolic.Format(c.pc[a.Node]), t.Source(b.Node), symbolic.Format(c.pc[b.Node])),
				})
			}
		}
	}
	return out
}

// typeMismatches compares the distribution types of all definitions of a
// name pairwise. An unknown distribution has a type of its own.
func (c *guideCheck) typeMismatches(name string, inModel, inGuide []ppl.RandomVariable) []Finding {
	t := c.s.Syntax()
	all := append(append([]ppl.RandomVariable(nil), inModel...), inGuide...)
	var out []Finding
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if typeOf(c.s, a) == typeOf(c.s, b) {
				continue
			}
			out = append(out, Finding{
				Kind:    "SupportTypeMismatch",
				Name:    name,
				Node:    b.Node,
				Message: fmt.Sprintf("Type of %s is not type of %s (or could not be inferred).", t.Source(a.Node), t.Source(b.Node)),
				Note:    fmt.Sprintf("at %s ∧ %s", symbolic.Format(c.pc[a.Node]), symbolic.Format(c.pc[b.Node])),
			})
		}
	}
	return out
}

// implication proves that sampling name in the model, within the
// support, implies sampling it in the guide within the guide's support.
func (c *guideCheck) implication(name string, inModel, inGuide []ppl.RandomVariable) []Finding {
	for _, rv := range append(append([]ppl.RandomVariable(nil), inModel...), inGuide...) {
		if c.unbounded[rv.Node] {
			return []Finding{{
				Kind:    "UnknownAbsoluteContinuity",
				Name:    name,
				Node:    inModel[0].Node,
				Message: fmt.Sprintf("Could not prove or disprove that sampling %s in model implies sampling in guide.", name),
				Note:    symbolic.ErrPathLimit.Error(),
			}}
		}
	}
	sampled := func(rvs []ppl.RandomVariable) symbolic.Expr {
		var paths []symbolic.Expr
		for _, rv := range rvs {
			paths = append(paths, symbolic.And(c.pc[rv.Node], c.support[rv.Node]))
		}
		return symbolic.Or(paths...)
	}
	impl := symbolic.Implies(sampled(inModel), sampled(inGuide))
	res := c.solver.Check(c.ctx, symbolic.Not(impl))
	switch res.Status {
	case smt.Sat:
		return []Finding{{
			Kind:    "AbsoluteContinuityViolation",
			Name:    name,
			Node:    inModel[0].Node,
			Message: fmt.Sprintf("Sampling %s in model does not imply sampling in guide.", name),
			Note:    "Counterexample: " + res.ModelString(),
		}}
	case smt.Unknown:
		return []Finding{{
			Kind:    "UnknownAbsoluteContinuity",
			Name:    name,
			Node:    inModel[0].Node,
			Message: fmt.Sprintf("Could not prove or disprove that sampling %s in model implies sampling in guide.", name),
			Note:    res.Reason,
		}}
	}
	return nil
}

// supportMismatch reports a model definition whose support is not
// covered by a guide definition that can run on the same path.
func (c *guideCheck) supportMismatch(name string, m, g ppl.RandomVariable) []Finding {
	if c.unbounded[m.Node] || c.unbounded[g.Node] {
		return nil
	}
	res := c.solver.Check(c.ctx, symbolic.And(c.pc[m.Node], c.pc[g.Node]))
	if res.Status != smt.Sat {
		return nil
	}
	mt, gt := typeOf(c.s, m), typeOf(c.s, g)
	if mt == "" || mt != gt {
		return nil
	}
	ms, ok := supportInterval(c.s, m)
	if !ok {
		return nil
	}
	gs, ok := supportInterval(c.s, g)
	if !ok || ms.IsSubset(gs) {
		return nil
	}
	t := c.s.Syntax()
	return []Finding{{
		Kind:    "SupportIntervalMismatch",
		Name:    name,
		Node:    g.Node,
		Message: fmt.Sprintf("Support %s of model variable %s is not a subset of support %s of guide variable %s.", ms, t.Source(m.Node), gs, t.Source(g.Node)),
		Note:    fmt.Sprintf("at %s ∧ %s", symbolic.Format(c.pc[m.Node]), symbolic.Format(c.pc[g.Node])),
	}}
}

// supportConstraint bounds the symbol of rv by its support; True when the
// support is unknown or has no interval form.
func (c *guideCheck) supportConstraint(rv ppl.RandomVariable) symbolic.Expr {
	x, ok := supportInterval(c.s, rv)
	if !ok {
		return symbolic.BoolConst(true)
	}
	sym := symbolOf(c.s, rv)
	var conds []symbolic.Expr
	if !math.IsInf(x.High, 1) {
		conds = append(conds, symbolic.Op(symbolic.OpLte, sym, symbolic.Num(x.High)))
	}
	if !math.IsInf(x.Low, -1) {
		conds = append(conds, symbolic.Op(symbolic.OpLte, symbolic.Num(x.Low), sym))
	}
	return symbolic.And(conds...)
}

// supportInterval resolves the support of rv. Bounds given by parameters
// take the value range of the argument, estimated without assumptions.
func supportInterval(s *session.Session, rv ppl.RandomVariable) (interval.Interval, bool) {
	props, ok := s.Properties(rv)
	if !ok {
		return interval.Interval{}, false
	}
	return distributions.ToInterval(props.Support, paramResolver(s, rv, interval.Valuation{}))
}

func typeOf(s *session.Session, rv ppl.RandomVariable) distributions.Type {
	props, ok := s.Properties(rv)
	if !ok {
		return ""
	}
	return props.Type
}

// symbolOf is the unknown standing for the value of rv: an integer for a
// discrete distribution, a real otherwise.
func symbolOf(s *session.Session, rv ppl.RandomVariable) symbolic.Expr {
	if props, ok := s.Properties(rv); ok && props.IsDiscrete() {
		return symbolic.Sym(rv.Name, symbolic.Int)
	}
	return symbolic.Sym(rv.Name, symbolic.Real)
}

func nodesOf(rvs []ppl.RandomVariable) []syntax.NodeID {
	out := make([]syntax.NodeID, len(rvs))
	for i, rv := range rvs {
		out[i] = rv.Node
	}
	return out
}
