package lints

import (
	"fmt"
	"strings"

	"github.com/gnoverse/pplint/internal/analysis/callgraph"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

const unboundedNote = "This may lead to an unbounded number of random variables which is not supported by HMC/NUTS."

// CheckHMC reports what keeps HMC/NUTS from sampling a program: discrete
// distributions, random variables under stochastic control flow and
// traces whose set of random variables is not static.
func CheckHMC(s *session.Session) ([]Finding, error) {
	model, err := s.FindModel()
	if err != nil {
		return nil, err
	}
	t := s.Syntax()
	rvs := s.Variables()
	set := indexVariables(rvs)

	var out []Finding
	for _, rv := range rvs {
		if props, ok := s.Properties(rv); ok && props.IsDiscrete() {
			out = append(out, Finding{
				Kind:    "ContinuousDistributionViolation",
				Name:    rv.Name,
				Node:    rv.Distribution.Node,
				Message: fmt.Sprintf("%s distribution is discrete, which is not supported by HMC/NUTS.", rv.Distribution.Name),
			})
		}
	}

	for _, rv := range rvs {
		var deps []string
		randomDependencies(s, set, rv.Node, false, func(dep syntax.NodeID, control bool) {
			if control {
				deps = append(deps, t.Source(dep))
			}
		})
		if len(deps) == 0 {
			continue
		}
		out = append(out, Finding{
			Kind:    "RandomControlDependentWarning",
			Name:    rv.Name,
			Node:    rv.Node,
			Message: fmt.Sprintf("Random variable is control dependent on %s.", strings.Join(deps, "; ")),
			Note:    "Random control dependencies may cause discontinuities in the posterior distribution, which are challenging for HMC/NUTS.",
		})
	}

	stochastic := func(test syntax.NodeID) bool {
		found := false
		randomDependencies(s, set, test, true, func(syntax.NodeID, bool) { found = true })
		return found
	}
	names, groups := groupByName(rvs)
	for _, name := range names {
		group := groups[name]
		if len(group) > 1 {
			out = append(out, Finding{
				Kind:    "MultipleDefinitionsWarning",
				Name:    name,
				Node:    group[1].Node,
				Message: fmt.Sprintf("Multiple definitions (%d) for random variable with name %s.", len(group), name),
			})
		}
		definedUnder := func(block syntax.NodeID) bool {
			for _, rv := range group {
				if s.Tree.IsAncestor(block, rv.Node) {
					return true
				}
			}
			return false
		}

		for _, rv := range group {
			for _, c := range s.Controls(rv.Node) {
				switch c.Kind {
				case "if":
					if !stochastic(c.Test) {
						continue
					}
					var missing []string
					if len(c.Arms) < 2 {
						missing = append(missing, "else")
					} else {
						if !definedUnder(c.Arms[0]) {
							missing = append(missing, "if")
						}
						if !definedUnder(c.Arms[1]) {
							missing = append(missing, "else")
						}
					}
					for _, branch := range missing {
						out = append(out, Finding{
							Kind:    "MissingInBranchWarning",
							Name:    rv.Name,
							Node:    rv.Node,
							Message: fmt.Sprintf("Random variable with name %s is not defined in the %s branch.", rv.Name, branch),
							Note:    fmt.Sprintf("If condition %s may be stochastic.", t.Source(c.Test)),
						})
					}
				case "for":
					if !stochastic(c.Test) {
						continue
					}
					out = append(out, Finding{
						Kind:    "StochasticForLoopRangeWarning",
						Name:    rv.Name,
						Node:    rv.Node,
						Message: fmt.Sprintf("Random variable appears in for loop with potentially stochastic range %q.", t.Source(c.Test)),
						Note:    unboundedNote,
					})
				case "while":
					out = append(out, Finding{
						Kind:    "DefinitionInWhileLoopWarning",
						Name:    rv.Name,
						Node:    rv.Node,
						Message: "Random variable appears in while loop body.",
						Note:    unboundedNote,
					})
				}
			}
		}
	}

	g := s.CallGraphFrom(model.Node)
	recursive := callgraph.UnderRecursion(g)
	reported := map[syntax.NodeID]bool{}
	for _, fn := range g.Callers() {
		if !recursive.Has(int(fn)) {
			continue
		}
		for _, rv := range s.VariablesIn(fn) {
			if reported[rv.Node] {
				continue
			}
			reported[rv.Node] = true
			out = append(out, Finding{
				Kind:    "SampleInRecursiveCallWarning",
				Name:    rv.Name,
				Node:    rv.Node,
				Message: fmt.Sprintf("Random variable appears in potentially recursive call of %s.", t.Node(fn).Name),
				Note:    unboundedNote,
			})
		}
	}
	return out, nil
}
