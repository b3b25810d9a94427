// Package lints implements the checks run over an analyzed probabilistic
// program: the model graph, distribution parameter constraints, HMC/NUTS
// assumptions and guide validation.
package lints

import (
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Finding is one diagnostic of a check.
type Finding struct {
	// Kind names the diagnostic, e.g. "MissingInBranchWarning".
	Kind string
	// Name is the random variable the finding is about.
	Name string
	// Node is where the finding is reported.
	Node    syntax.NodeID
	Message string
	// Note carries secondary detail such as a counterexample.
	Note string
}

// variableSet indexes random variables by their definition.
type variableSet map[syntax.NodeID]ppl.RandomVariable

func indexVariables(rvs []ppl.RandomVariable) variableSet {
	out := make(variableSet, len(rvs))
	for _, rv := range rvs {
		out[rv.Node] = rv
	}
	return out
}

// groupByName groups random variables by name, keeping first-seen order of
// names and source order within a group.
func groupByName(rvs []ppl.RandomVariable) ([]string, map[string][]ppl.RandomVariable) {
	var names []string
	groups := map[string][]ppl.RandomVariable{}
	for _, rv := range rvs {
		if _, ok := groups[rv.Name]; !ok {
			names = append(names, rv.Name)
		}
		groups[rv.Name] = append(groups[rv.Name], rv)
	}
	return names, groups
}

// randomDependencies walks the data dependencies of start transitively,
// stopping at random variables, and follows the tests of enclosing
// control statements. visit is called once per random variable reached,
// with control set when it was reached through a control test.
func randomDependencies(s *session.Session, rvs variableSet, start syntax.NodeID, control bool, visit func(dep syntax.NodeID, control bool)) {
	type item struct {
		node    syntax.NodeID
		control bool
	}
	seen := map[syntax.NodeID]bool{}
	queued := map[item]bool{}
	queue := []item{{start, control}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		for _, dep := range s.Flow.DataDependencies(it.node) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if _, ok := rvs[dep]; ok {
				visit(dep, it.control)
				continue
			}
			next := item{dep, it.control}
			if !queued[next] {
				queued[next] = true
				queue = append(queue, next)
			}
		}
		for _, c := range s.Controls(it.node) {
			next := item{c.Test, true}
			if !queued[next] {
				queued[next] = true
				queue = append(queue, next)
			}
		}
	}
}

// reachableFromModel keeps the random variables defined under the model
// or under a function the model may call.
func reachableFromModel(s *session.Session, model ppl.Model) []ppl.RandomVariable {
	g := s.CallGraphFrom(model.Node)
	callers := g.Callers()
	var out []ppl.RandomVariable
	for _, rv := range s.Variables() {
		for _, c := range callers {
			if s.Tree.IsAncestor(c, rv.Node) {
				out = append(out, rv)
				break
			}
		}
	}
	return out
}
