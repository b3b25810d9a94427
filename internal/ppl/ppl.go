// Package ppl recognizes the constructs of probabilistic programming
// frameworks: random-variable definitions, their distributions and the
// model and guide they belong to.
package ppl

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gnoverse/pplint/internal/preprocess"
	"github.com/gnoverse/pplint/internal/syntax"
)

var (
	ErrNoModel        = errors.New("no model definition found")
	ErrMultipleModels = errors.New("multiple model definitions found")
	ErrUnknownPPL     = errors.New("unknown probabilistic programming framework")
)

// Adapter is the contract a framework front-end fulfils. Every method
// works on the normalized tree after Preprocess.
type Adapter interface {
	Name() string
	// IsRandomVariableDefinition reports whether the statement id defines
	// a random variable.
	IsRandomVariableDefinition(t *syntax.Tree, id syntax.NodeID) bool
	RandomVariableName(t *syntax.Tree, def syntax.NodeID) string
	AddressNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID
	IsObserved(t *syntax.Tree, def syntax.NodeID) bool
	DistributionNode(t *syntax.Tree, def syntax.NodeID) syntax.NodeID
	Distribution(t *syntax.Tree, dist syntax.NodeID) (string, []Param)
	IsModel(t *syntax.Tree, id syntax.NodeID) bool
	ModelName(t *syntax.Tree, id syntax.NodeID) string
	// Preprocess normalizes framework sugar and runs the generic passes.
	Preprocess(t *syntax.Tree, opts preprocess.Options)
}

// Param is a distribution argument under its canonical name.
type Param struct {
	Name string
	Node syntax.NodeID
}

// Distribution is the distribution expression of a random variable.
type Distribution struct {
	Name   string
	Node   syntax.NodeID
	Params []Param
}

// Param returns the argument bound to the canonical name.
func (d Distribution) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// RandomVariable is one definition site.
type RandomVariable struct {
	Node    syntax.NodeID
	Name    string
	Address syntax.NodeID
	// Symbol is the program variable holding the value: the assignment
	// target, or the function name for function-style definitions.
	Symbol       string
	Distribution Distribution
	Observed     bool
}

// Model is a model or guide definition.
type Model struct {
	Name string
	Node syntax.NodeID
}

var adapters = map[string]Adapter{}

func register(a Adapter) { adapters[a.Name()] = a }

// Lookup returns the adapter registered under name.
func Lookup(name string) (Adapter, error) {
	a, ok := adapters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPPL, name)
	}
	return a, nil
}

// Names lists the registered adapters.
func Names() []string {
	out := make([]string, 0, len(adapters))
	for n := range adapters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Detect guesses the framework from the source text.
func Detect(src []byte) (Adapter, error) {
	s := string(src)
	switch {
	case strings.Contains(s, "pyro"):
		return adapters["pyro"], nil
	case strings.Contains(s, "pymc"):
		return adapters["pymc"], nil
	case strings.Contains(s, "beanmachine"):
		return adapters["beanmachine"], nil
	}
	return nil, ErrUnknownPPL
}

// RandomVariables returns every random-variable definition in source
// order.
func RandomVariables(t *syntax.Tree, a Adapter) []RandomVariable {
	defs := t.Find(t.Root, true, func(id syntax.NodeID) bool {
		return a.IsRandomVariableDefinition(t, id)
	})
	out := make([]RandomVariable, 0, len(defs))
	for _, def := range defs {
		dist := a.DistributionNode(t, def)
		name, params := "Unknown", []Param(nil)
		if dist.Valid() {
			name, params = a.Distribution(t, dist)
		}
		out = append(out, RandomVariable{
			Node:         def,
			Name:         a.RandomVariableName(t, def),
			Address:      a.AddressNode(t, def),
			Symbol:       programVariable(t, def),
			Distribution: Distribution{Name: name, Node: dist, Params: params},
			Observed:     a.IsObserved(t, def),
		})
	}
	return out
}

func programVariable(t *syntax.Tree, def syntax.NodeID) string {
	n := t.Node(def)
	switch n.Kind {
	case syntax.KindAssign:
		if t.Kind(n.Target) == syntax.KindName {
			return t.Node(n.Target).Name
		}
	case syntax.KindFunctionDef:
		return n.Name
	}
	return ""
}

// FindModel returns the model definition. A module-level `model = name`
// selects the definition by name; the default name is "model".
func FindModel(t *syntax.Tree, a Adapter) (Model, error) {
	return find(t, a, "model")
}

// FindGuide returns the guide definition, selected like the model.
func FindGuide(t *syntax.Tree, a Adapter) (Model, error) {
	return find(t, a, "guide")
}

func find(t *syntax.Tree, a Adapter, keyword string) (Model, error) {
	name := keyword
	for _, s := range t.Node(t.Node(t.Root).Body).Elts {
		n := t.Node(s)
		if n.Kind != syntax.KindAssign || t.Kind(n.Target) != syntax.KindName || t.Kind(n.Value) != syntax.KindName {
			continue
		}
		if t.Node(n.Target).Name == keyword {
			name = t.Node(n.Value).Name
			break
		}
	}

	found := t.Find(t.Root, true, func(id syntax.NodeID) bool {
		return a.IsModel(t, id) && a.ModelName(t, id) == name
	})
	switch len(found) {
	case 0:
		return Model{}, fmt.Errorf("%w: %s %q", ErrNoModel, keyword, name)
	case 1:
		return Model{Name: name, Node: found[0]}, nil
	}
	return Model{}, fmt.Errorf("%w: %s %q", ErrMultipleModels, keyword, name)
}

// addressName renders a sample-site address: string literals without
// quotes, anything else as source.
func addressName(t *syntax.Tree, id syntax.NodeID) string {
	if !id.Valid() {
		return ""
	}
	n := t.Node(id)
	switch {
	case n.Kind == syntax.KindConstant && n.Const == syntax.ConstString:
		return n.Literal
	case n.Kind == syntax.KindOpaque:
		return n.Literal
	}
	return t.Unparse(id)
}

func hasKeyword(t *syntax.Tree, call syntax.NodeID, name string) bool {
	return t.Kind(call) == syntax.KindCall && t.Keyword(call, name).Valid()
}

func arg(t *syntax.Tree, call syntax.NodeID, i int) syntax.NodeID {
	if t.Kind(call) != syntax.KindCall {
		return syntax.NoNode
	}
	if args := t.Node(call).Elts; i < len(args) {
		return args[i]
	}
	return syntax.NoNode
}

// lastName returns the last component of a call's dotted callee.
func lastName(t *syntax.Tree, call syntax.NodeID) string {
	name := t.CallName(call)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
