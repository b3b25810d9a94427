package ppl

import (
	"github.com/gnoverse/pplint/internal/preprocess"
	"github.com/gnoverse/pplint/internal/syntax"
)

func init() { register(Pyro{}) }

// Pyro recognizes `x = pyro.sample("x", dist.D(...))` definitions. Models
// and guides are plain functions.
type Pyro struct{}

func (Pyro) Name() string { return "pyro" }

func (Pyro) isSampleCall(t *syntax.Tree, call syntax.NodeID) bool {
	switch t.CallName(call) {
	case "pyro.sample", "sample":
		return true
	}
	return false
}

func (p Pyro) IsRandomVariableDefinition(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	return n.Kind == syntax.KindAssign && p.isSampleCall(t, n.Value)
}

func (Pyro) RandomVariableName(t *syntax.Tree, def syntax.NodeID) string {
	return addressName(t, arg(t, t.Node(def).Value, 0))
}

func (Pyro) AddressNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	return arg(t, t.Node(def).Value, 0)
}

func (Pyro) IsObserved(t *syntax.Tree, def syntax.NodeID) bool {
	return hasKeyword(t, t.Node(def).Value, "obs")
}

func (Pyro) DistributionNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID {
	call := t.Node(def).Value
	if d := arg(t, call, 1); d.Valid() {
		return d
	}
	return t.Keyword(call, "fn")
}

func (Pyro) Distribution(t *syntax.Tree, dist syntax.NodeID) (string, []Param) {
	return torchDistribution(t, dist)
}

func (Pyro) IsModel(t *syntax.Tree, id syntax.NodeID) bool {
	return t.Kind(id) == syntax.KindFunctionDef
}

func (Pyro) ModelName(t *syntax.Tree, id syntax.NodeID) string {
	return t.Node(id).Name
}

func (p Pyro) Preprocess(t *syntax.Tree, opts preprocess.Options) {
	opts.IsRandomVariableCall = p.isSampleCall
	preprocess.Run(t, opts)
}
