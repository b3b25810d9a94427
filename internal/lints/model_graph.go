package lints

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

// Plate groups the random variables defined inside one for loop. The
// global plate has no loop.
type Plate struct {
	Loop      syntax.NodeID
	Variables []syntax.NodeID
	Plates    []*Plate
}

func (p *Plate) addVariable(id syntax.NodeID) {
	for _, v := range p.Variables {
		if v == id {
			return
		}
	}
	p.Variables = append(p.Variables, id)
}

func (p *Plate) addPlate(sub *Plate) {
	for _, q := range p.Plates {
		if q == sub {
			return
		}
	}
	p.Plates = append(p.Plates, sub)
}

func (p *Plate) removeVariable(id syntax.NodeID) {
	out := p.Variables[:0]
	for _, v := range p.Variables {
		if v != id {
			out = append(out, v)
		}
	}
	p.Variables = out
}

// Edge is a dependency between two random variables.
type Edge struct {
	From, To syntax.NodeID
}

// ModelGraph is the graphical model of a program: random variables,
// the dependencies among them and their loop plates.
type ModelGraph struct {
	// Order lists the random variables in source order.
	Order     []syntax.NodeID
	Variables map[syntax.NodeID]ppl.RandomVariable
	Edges     []Edge
	Global    *Plate

	plates map[syntax.NodeID]*Plate
}

// BuildModelGraph derives the model graph of the variables reachable
// from the model. An edge X -> Y means the value of Y's definition
// depends on X, directly or through intermediate computations, including
// the tests of the control statements enclosing them.
func BuildModelGraph(s *session.Session) (*ModelGraph, error) {
	model, err := s.FindModel()
	if err != nil {
		return nil, err
	}
	rvs := reachableFromModel(s, model)
	g := &ModelGraph{
		Variables: indexVariables(rvs),
		Global:    &Plate{Loop: syntax.NoNode},
		plates:    map[syntax.NodeID]*Plate{},
	}
	for _, rv := range rvs {
		g.Order = append(g.Order, rv.Node)
	}

	for _, rv := range rvs {
		randomDependencies(s, g.Variables, rv.Node, false, func(dep syntax.NodeID, _ bool) {
			g.Edges = append(g.Edges, Edge{From: dep, To: rv.Node})
		})
	}

	for _, rv := range rvs {
		current := g.Global
		for _, c := range s.Controls(rv.Node) {
			if c.Kind != "for" {
				continue
			}
			p, ok := g.plates[c.Node]
			if !ok {
				p = &Plate{Loop: c.Node}
				g.plates[c.Node] = p
			}
			current.addPlate(p)
			current = p
		}
		current.addVariable(rv.Node)
	}
	return g, nil
}

// Plate returns the plate of a for loop.
func (g *ModelGraph) Plate(loop syntax.NodeID) (*Plate, bool) {
	p, ok := g.plates[loop]
	return p, ok
}

// Parents returns the random variables id depends on directly.
func (g *ModelGraph) Parents(id syntax.NodeID) []syntax.NodeID {
	var out []syntax.NodeID
	for _, e := range g.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

// MergeByName collapses random variables sharing a name and a
// distribution into their first definition. Edges are redirected and
// deduplicated.
func (g *ModelGraph) MergeByName() {
	var rvs []ppl.RandomVariable
	for _, id := range g.Order {
		rvs = append(rvs, g.Variables[id])
	}
	names, groups := groupByName(rvs)
	replace := map[syntax.NodeID]syntax.NodeID{}
	for _, name := range names {
		group := groups[name]
		keep := group[0]
		same := len(group) > 1
		for _, rv := range group[1:] {
			if rv.Distribution.Name != keep.Distribution.Name {
				same = false
			}
		}
		if !same {
			continue
		}
		for _, rv := range group[1:] {
			replace[rv.Node] = keep.Node
		}
	}
	if len(replace) == 0 {
		return
	}

	order := g.Order[:0]
	for _, id := range g.Order {
		if _, gone := replace[id]; gone {
			delete(g.Variables, id)
			continue
		}
		order = append(order, id)
	}
	g.Order = order

	seen := map[Edge]bool{}
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if r, ok := replace[e.From]; ok {
			e.From = r
		}
		if r, ok := replace[e.To]; ok {
			e.To = r
		}
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}
	g.Edges = edges

	g.Global.eachPlate(func(p *Plate) {
		for id := range replace {
			p.removeVariable(id)
		}
	})
}

func (p *Plate) eachPlate(fn func(*Plate)) {
	fn(p)
	for _, q := range p.Plates {
		q.eachPlate(fn)
	}
}

// PrintDot writes g in Graphviz format. Plates become clusters labelled
// with their loop header; observed variables are filled.
func (g *ModelGraph) PrintDot(w io.Writer, t *syntax.Tree) {
	quote := func(s string) string { return strings.ReplaceAll(s, `"`, `'`) }
	var cluster func(p *Plate, indent string)
	cluster = func(p *Plate, indent string) {
		for _, id := range p.Variables {
			rv := g.Variables[id]
			label := quote(fmt.Sprintf("%s\\n~ %s", rv.Name, rv.Distribution.Name))
			style := ""
			if rv.Observed {
				style = `, style="filled", fillcolor="gray"`
			}
			fmt.Fprintf(w, "%s%q [label=\"%s\"%s];\n", indent, syntax.IDString(id), label, style)
		}
		for _, q := range p.Plates {
			fmt.Fprintf(w, "%ssubgraph \"cluster_%s\" {\n", indent, syntax.IDString(q.Loop))
			header := t.Node(q.Loop)
			fmt.Fprintf(w, "%s\tlabel=\"%s\";\n", indent, quote(t.Source(header.Target)+" in "+t.Source(header.Iter)))
			cluster(q, indent+"\t")
			fmt.Fprintf(w, "%s}\n", indent)
		}
	}

	fmt.Fprintf(w, "digraph model {\n")
	cluster(g.Global, "\t")
	for _, e := range g.Edges {
		fmt.Fprintf(w, "\t%q -> %q;\n", syntax.IDString(e.From), syntax.IDString(e.To))
	}
	fmt.Fprintf(w, "}\n")
}
