package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/analysis/callgraph"
	"github.com/gnoverse/pplint/internal/interval"
	"github.com/gnoverse/pplint/internal/symbolic"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Control is an enclosing if, while or for statement of a node.
type Control struct {
	Node syntax.NodeID
	Kind string
	// Test is the condition of an if or while, the iterable of a for.
	Test syntax.NodeID
	// Arms are the bodies: the then and else blocks of an if with an else
	// branch, the single body otherwise.
	Arms []syntax.NodeID
}

// Controls returns the control parents of id in source order, so an
// enclosing statement comes before the statements nested in it.
func (s *Session) Controls(id syntax.NodeID) []Control {
	t := s.Syntax()
	var out []Control
	for _, p := range s.Flow.ControlParents(id) {
		n := t.Node(p)
		c := Control{Node: p, Arms: []syntax.NodeID{n.Body}}
		switch n.Kind {
		case syntax.KindIf:
			c.Kind, c.Test = "if", n.Test
			if n.Else.Valid() {
				c.Arms = append(c.Arms, n.Else)
			}
		case syntax.KindWhile:
			c.Kind, c.Test = "while", n.Test
		case syntax.KindFor:
			c.Kind, c.Test = "for", n.Iter
		default:
			continue
		}
		out = append(out, c)
	}
	return out
}

// Valuation builds the interval facts of assumptions. A definition is
// keyed by the variable it binds.
func (s *Session) Valuation(assumptions []Assumption) (interval.Valuation, error) {
	v := interval.Valuation{}
	for _, a := range assumptions {
		id, err := s.Resolve(a.Node)
		if err != nil {
			return nil, err
		}
		x, err := a.Interval.Parse()
		if err != nil {
			return nil, fmt.Errorf("assumption for %s: %w", a.Node.NodeID, err)
		}
		if name := s.Tree.NameOf(id); name != "" {
			v.Set(name, x)
		}
	}
	return v, nil
}

// Range bounds the value of id under v.
func (s *Session) Range(id syntax.NodeID, v interval.Valuation) (interval.Interval, error) {
	x, warnings, err := s.Ranges.Eval(id, v)
	for _, w := range warnings {
		s.logger.Debug("imprecise range", zap.String("file", s.Filename), zap.Stringer("warning", w))
	}
	return x, err
}

// Conditions returns the path conditions of targets within root, with
// the definitions in masks replaced by their symbols.
func (s *Session) Conditions(root syntax.NodeID, targets []syntax.NodeID, masks map[syntax.NodeID]symbolic.Expr) (map[syntax.NodeID]symbolic.Expr, error) {
	return symbolic.PathConditions(s.Tree, root, targets, masks)
}

// CallGraphFrom returns the call graph reachable from root.
func (s *Session) CallGraphFrom(root syntax.NodeID) callgraph.Graph {
	return callgraph.From(s.Tree, s.Calls, root)
}

// Model returns the model definition.
func (s *Session) Model() (Model, error) {
	m, err := s.FindModel()
	if err != nil {
		return Model{}, err
	}
	return s.wireModel(m), nil
}

// Guide returns the guide definition.
func (s *Session) Guide() (Model, error) {
	m, err := s.FindGuide()
	if err != nil {
		return Model{}, err
	}
	return s.wireModel(m), nil
}

// RandomVariables returns every random variable of the file.
func (s *Session) RandomVariables() []RandomVariable {
	out := make([]RandomVariable, len(s.rvs))
	for i, rv := range s.rvs {
		out[i] = s.wireVariable(rv)
	}
	return out
}

// DataDependencies returns the definitions node reads from.
func (s *Session) DataDependencies(node SyntaxNode) ([]SyntaxNode, error) {
	id, err := s.Resolve(node)
	if err != nil {
		return nil, err
	}
	return s.nodes(s.Flow.DataDependencies(id)), nil
}

// ControlParents returns the control dependencies of node.
func (s *Session) ControlParents(node SyntaxNode) ([]ControlDependency, error) {
	id, err := s.Resolve(node)
	if err != nil {
		return nil, err
	}
	controls := s.Controls(id)
	out := make([]ControlDependency, len(controls))
	for i, c := range controls {
		out[i] = ControlDependency{
			Node:        s.Node(c.Node),
			Kind:        c.Kind,
			ControlNode: s.Node(c.Test),
			Body:        s.nodes(c.Arms),
		}
	}
	return out, nil
}

// EstimateValueRange bounds expr given the value ranges in assumptions.
func (s *Session) EstimateValueRange(expr SyntaxNode, assumptions []Assumption) (Interval, error) {
	id, err := s.Resolve(expr)
	if err != nil {
		return Interval{}, err
	}
	v, err := s.Valuation(assumptions)
	if err != nil {
		return Interval{}, err
	}
	x, err := s.Range(id, v)
	if err != nil {
		return Interval{}, err
	}
	return WireInterval(x), nil
}

// CallGraph returns the functions reachable from root and their callees.
func (s *Session) CallGraph(root SyntaxNode) ([]CallGraphNode, error) {
	id, err := s.Resolve(root)
	if err != nil {
		return nil, err
	}
	g := s.CallGraphFrom(id)
	callers := g.Callers()
	out := make([]CallGraphNode, len(callers))
	for i, c := range callers {
		out[i] = CallGraphNode{Caller: s.Node(c), Called: s.nodes(g[c])}
	}
	return out, nil
}

// PathConditions returns the path condition of each node within root,
// in the order of nodes.
func (s *Session) PathConditions(root SyntaxNode, nodes []SyntaxNode, assumptions []SymbolAssumption) ([]SymbolicExpression, error) {
	rid, err := s.Resolve(root)
	if err != nil {
		return nil, err
	}
	targets := make([]syntax.NodeID, len(nodes))
	for i, n := range nodes {
		if targets[i], err = s.Resolve(n); err != nil {
			return nil, err
		}
	}
	masks := make(map[syntax.NodeID]symbolic.Expr, len(assumptions))
	for _, a := range assumptions {
		id, err := s.Resolve(a.Node)
		if err != nil {
			return nil, err
		}
		e, err := symbolic.Parse(a.Expr.Expr)
		if err != nil {
			return nil, fmt.Errorf("assumption for %s: %w", a.Node.NodeID, err)
		}
		masks[id] = e
	}
	pcs, err := s.Conditions(rid, targets, masks)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolicExpression, len(targets))
	for i, id := range targets {
		out[i] = SymbolicExpression{Expr: pcs[id].String()}
	}
	return out, nil
}
