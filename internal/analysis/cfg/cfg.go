package cfg

import (
	"errors"
	"fmt"

	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// ErrInvariant is returned when a built graph violates a structural invariant.
var ErrInvariant = errors.New("cfg invariant violated")

// Kind tags a CFG node.
type Kind uint8

const (
	Start Kind = iota
	End
	Assign
	Branch
	Join
	Return
	Break
	Continue
	FuncStart
	FuncArg
	FuncJoin
	Expr
	LoopIter
)

var kindNames = [...]string{
	Start:     "Start",
	End:       "End",
	Assign:    "Assign",
	Branch:    "Branch",
	Join:      "Join",
	Return:    "Return",
	Break:     "Break",
	Continue:  "Continue",
	FuncStart: "FuncStart",
	FuncArg:   "FuncArg",
	FuncJoin:  "FuncJoin",
	Expr:      "Expr",
	LoopIter:  "LoopIter",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is a vertex of a Graph.
//
// Syntax is the statement the node stands for: the Assign, Expr, Return,
// Break or Continue statement; the If, While or For statement for Branch,
// Join and LoopIter; the Param for FuncArg; the FunctionDef (or the module)
// for Start, End, FuncStart, FuncJoin and implicit returns.
type Node struct {
	ID       int
	Kind     Kind
	Syntax   syntax.NodeID
	Implicit bool // an implicit `return None`
	Parents  []*Node
	Children []*Node
	// Pair links a Branch to its Join and back.
	Pair *Node
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}

// Graph is the CFG of the module top level or of one function.
type Graph struct {
	// Root is the Module or FunctionDef the graph was built from.
	Root  syntax.NodeID
	Start *Node
	End   *Node
	Nodes []*Node
}

// Program holds every graph of a tree and maps syntax nodes to the CFG
// nodes that represent them.
type Program struct {
	Tree      *scope.Tree
	Top       *Graph
	Functions map[syntax.NodeID]*Graph

	stmt  map[syntax.NodeID]*Node
	iter  map[syntax.NodeID]*Node
	arg   map[syntax.NodeID]*Node
	graph map[*Node]*Graph
}

// Graphs returns the top-level graph followed by the function graphs in
// source order.
func (p *Program) Graphs() []*Graph {
	out := []*Graph{p.Top}
	for _, f := range p.Tree.Functions {
		if g, ok := p.Functions[f.Node]; ok {
			out = append(out, g)
		}
	}
	return out
}

// NodeFor returns the CFG node of a statement: the node itself for simple
// statements, the Branch for if, while and for, and FuncStart for a
// function definition.
func (p *Program) NodeFor(stmt syntax.NodeID) *Node {
	if g, ok := p.Functions[stmt]; ok {
		return g.Start
	}
	return p.stmt[stmt]
}

// LoopIter returns the LoopIter node of a for statement.
func (p *Program) LoopIter(forStmt syntax.NodeID) *Node { return p.iter[forStmt] }

// Arg returns the FuncArg node of a parameter.
func (p *Program) Arg(param syntax.NodeID) *Node { return p.arg[param] }

// GraphOf returns the graph n belongs to.
func (p *Program) GraphOf(n *Node) *Graph { return p.graph[n] }

// Locate returns the CFG node at which the syntax node id is evaluated: the
// FuncArg of a parameter, the Branch of an if/while test or a for iterable,
// the LoopIter of a for target, else the node of the enclosing statement.
func (p *Program) Locate(id syntax.NodeID) *Node {
	t := p.Tree
	child := syntax.NoNode
	for n := id; n.Valid(); child, n = n, t.Parent(n) {
		node := t.Node(n)
		switch node.Kind {
		case syntax.KindParam:
			return p.arg[n]
		case syntax.KindIf, syntax.KindWhile:
			if child == syntax.NoNode || child == node.Test {
				return p.stmt[n]
			}
		case syntax.KindFor:
			switch child {
			case syntax.NoNode, node.Iter:
				return p.stmt[n]
			case node.Target:
				return p.iter[n]
			}
		case syntax.KindFunctionDef:
			if g, ok := p.Functions[n]; ok && child != node.Body {
				return g.Start
			}
		case syntax.KindAssign, syntax.KindExprStmt, syntax.KindReturn, syntax.KindBreak,
			syntax.KindContinue, syntax.KindPass, syntax.KindImport:
			return p.stmt[n]
		}
	}
	return nil
}

// IsBranchOrJoin reports whether n may have several parents.
func (n *Node) IsBranchOrJoin() bool {
	return n.Kind == Branch || n.Kind == Join || n.Kind == FuncJoin
}
