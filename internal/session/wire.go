package session

import (
	"math"
	"strconv"

	"github.com/gnoverse/pplint/internal/interval"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/syntax"
)

// SyntaxNode is the external view of a tree node. LastByte is exclusive.
type SyntaxNode struct {
	NodeID     string `json:"node_id"`
	FirstByte  int    `json:"first_byte"`
	LastByte   int    `json:"last_byte"`
	SourceText string `json:"source_text"`
}

// Contains reports whether o lies within n's byte range.
func (n SyntaxNode) Contains(o SyntaxNode) bool {
	return n.FirstByte <= o.FirstByte && o.LastByte <= n.LastByte
}

type Model struct {
	Name string     `json:"name"`
	Node SyntaxNode `json:"node"`
}

type DistributionParam struct {
	Name string     `json:"name"`
	Node SyntaxNode `json:"node"`
}

type Distribution struct {
	Name   string              `json:"name"`
	Node   SyntaxNode          `json:"node"`
	Params []DistributionParam `json:"params"`
}

type RandomVariable struct {
	Node         SyntaxNode   `json:"node"`
	Name         string       `json:"name"`
	AddressNode  SyntaxNode   `json:"address_node"`
	Distribution Distribution `json:"distribution"`
	IsObserved   bool         `json:"is_observed"`
}

// ControlDependency describes an enclosing if, while or for statement.
// ControlNode is the test or the iterable; Body holds the arms.
type ControlDependency struct {
	Node        SyntaxNode   `json:"node"`
	Kind        string       `json:"kind"`
	ControlNode SyntaxNode   `json:"control_node"`
	Body        []SyntaxNode `json:"body"`
}

type CallGraphNode struct {
	Caller SyntaxNode   `json:"caller"`
	Called []SyntaxNode `json:"called"`
}

// Interval carries bounds as decimal strings; "inf" and "-inf" are
// allowed.
type Interval struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

type SymbolicExpression struct {
	Expr string `json:"expr"`
}

// Assumption fixes the value range of a definition.
type Assumption struct {
	Node     SyntaxNode `json:"node"`
	Interval Interval   `json:"interval"`
}

// SymbolAssumption replaces the value of a definition by a symbol.
type SymbolAssumption struct {
	Node SyntaxNode         `json:"node"`
	Expr SymbolicExpression `json:"expr"`
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

// WireInterval converts an interval to its wire form.
func WireInterval(i interval.Interval) Interval {
	return Interval{Low: formatBound(i.Low), High: formatBound(i.High)}
}

// Parse converts the wire form back.
func (i Interval) Parse() (interval.Interval, error) {
	lo, err := strconv.ParseFloat(i.Low, 64)
	if err != nil {
		return interval.Interval{}, err
	}
	hi, err := strconv.ParseFloat(i.High, 64)
	if err != nil {
		return interval.Interval{}, err
	}
	return interval.New(lo, hi), nil
}

// Node converts id to its wire form.
func (s *Session) Node(id syntax.NodeID) SyntaxNode {
	if !id.Valid() {
		return SyntaxNode{}
	}
	t := s.Syntax()
	span := t.Node(id).Span
	return SyntaxNode{
		NodeID:     syntax.IDString(id),
		FirstByte:  span.StartByte,
		LastByte:   span.EndByte,
		SourceText: t.Source(id),
	}
}

func (s *Session) nodes(ids []syntax.NodeID) []SyntaxNode {
	out := make([]SyntaxNode, len(ids))
	for i, id := range ids {
		out[i] = s.Node(id)
	}
	return out
}

// Resolve maps a wire node back to its id.
func (s *Session) Resolve(n SyntaxNode) (syntax.NodeID, error) {
	return s.Syntax().Lookup(n.NodeID)
}

func (s *Session) wireModel(m ppl.Model) Model {
	return Model{Name: m.Name, Node: s.Node(m.Node)}
}

func (s *Session) wireVariable(rv ppl.RandomVariable) RandomVariable {
	params := make([]DistributionParam, len(rv.Distribution.Params))
	for i, p := range rv.Distribution.Params {
		params[i] = DistributionParam{Name: p.Name, Node: s.Node(p.Node)}
	}
	return RandomVariable{
		Node:        s.Node(rv.Node),
		Name:        rv.Name,
		AddressNode: s.Node(rv.Address),
		Distribution: Distribution{
			Name:   rv.Distribution.Name,
			Node:   s.Node(rv.Distribution.Node),
			Params: params,
		},
		IsObserved: rv.Observed,
	}
}
