package ppl

import (
	"strings"

	"github.com/gnoverse/pplint/internal/preprocess"
	"github.com/gnoverse/pplint/internal/syntax"
)

func init() { register(BeanMachine{}) }

// BeanMachine recognizes functions decorated with @bm.random_variable or
// @bm.functional. The whole module is the model; observations are given
// by a module-level `observations` dictionary.
type BeanMachine struct{}

func (BeanMachine) Name() string { return "beanmachine" }

func (BeanMachine) IsRandomVariableDefinition(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	if n.Kind != syntax.KindFunctionDef || len(n.Decorators) == 0 {
		return false
	}
	switch t.DottedName(n.Decorators[0]) {
	case "random_variable", "bm.random_variable", "bm.functional":
		return true
	}
	return false
}

// RandomVariableName renders the signature, e.g. `mu(i)`.
func (BeanMachine) RandomVariableName(t *syntax.Tree, def syntax.NodeID) string {
	n := t.Node(def)
	params := make([]string, len(n.Elts))
	for i, p := range n.Elts {
		params[i] = t.Node(p).Name
	}
	return n.Name + "(" + strings.Join(params, ", ") + ")"
}

func (BeanMachine) AddressNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	return def
}

// IsObserved looks for a top-level `observations = {f(...): v}` entry or
// an `observations[f(...)] = v` assignment naming the function.
func (BeanMachine) IsObserved(t *syntax.Tree, def syntax.NodeID) bool {
	name := t.Node(def).Name
	for _, s := range t.Node(t.Node(t.Root).Body).Elts {
		n := t.Node(s)
		if n.Kind != syntax.KindAssign {
			continue
		}
		target := t.Node(n.Target)
		switch {
		case target.Kind == syntax.KindName && target.Name == "observations" && t.Kind(n.Value) == syntax.KindDict:
			elts := t.Node(n.Value).Elts
			for i := 0; i < len(elts); i += 2 {
				if t.Kind(elts[i]) == syntax.KindCall && t.CallName(elts[i]) == name {
					return true
				}
			}
		case target.Kind == syntax.KindSubscript && t.DottedName(target.Value) == "observations":
			if t.Kind(target.Index) == syntax.KindCall && t.CallName(target.Index) == name {
				return true
			}
		}
	}
	return false
}

// DistributionNode is the value of the single return statement, or the
// body when there is more than one.
func (BeanMachine) DistributionNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	body := t.Node(def).Body
	returns := t.Find(body, false, func(id syntax.NodeID) bool {
		return t.Kind(id) == syntax.KindReturn
	})
	if len(returns) == 1 && t.Node(returns[0]).Value.Valid() {
		return t.Node(returns[0]).Value
	}
	return body
}

func (BeanMachine) Distribution(t *syntax.Tree, dist syntax.NodeID) (string, []Param) {
	return torchDistribution(t, dist)
}

func (BeanMachine) IsModel(t *syntax.Tree, id syntax.NodeID) bool {
	return t.Kind(id) == syntax.KindModule
}

func (BeanMachine) ModelName(*syntax.Tree, syntax.NodeID) string { return "model" }

// Preprocess never hoists: definitions are functions, not calls.
func (BeanMachine) Preprocess(t *syntax.Tree, opts preprocess.Options) {
	opts.IsRandomVariableCall = nil
	preprocess.Run(t, opts)
}
