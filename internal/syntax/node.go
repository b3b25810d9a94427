package syntax

import "fmt"

// NodeID addresses a node inside a Tree's arena.
type NodeID int32

// NoNode marks an absent child or the parent of the root.
const NoNode NodeID = -1

// Valid reports whether id refers to a node.
func (id NodeID) Valid() bool { return id >= 0 }

// Kind is the closed set of node variants of the normalized tree.
type Kind uint8

const (
	// statements
	KindModule Kind = iota
	KindBlock
	KindFunctionDef
	KindParam
	KindAssign
	KindExprStmt
	KindIf
	KindWhile
	KindFor
	KindReturn
	KindBreak
	KindContinue
	KindPass
	KindWith
	KindImport

	// expressions
	KindName
	KindConstant
	KindCall
	KindKeyword
	KindAttribute
	KindSubscript
	KindBinOp
	KindUnaryOp
	KindBoolOp
	KindCompare
	KindIfExp
	KindTuple
	KindList
	KindDict
	KindOpaque

	kindCount
)

var kindNames = [...]string{
	KindModule:      "Module",
	KindBlock:       "Block",
	KindFunctionDef: "FunctionDef",
	KindParam:       "Param",
	KindAssign:      "Assign",
	KindExprStmt:    "Expr",
	KindIf:          "If",
	KindWhile:       "While",
	KindFor:         "For",
	KindReturn:      "Return",
	KindBreak:       "Break",
	KindContinue:    "Continue",
	KindPass:        "Pass",
	KindWith:        "With",
	KindImport:      "Import",
	KindName:        "Name",
	KindConstant:    "Constant",
	KindCall:        "Call",
	KindKeyword:     "Keyword",
	KindAttribute:   "Attribute",
	KindSubscript:   "Subscript",
	KindBinOp:       "BinOp",
	KindUnaryOp:     "UnaryOp",
	KindBoolOp:      "BoolOp",
	KindCompare:     "Compare",
	KindIfExp:       "IfExp",
	KindTuple:       "Tuple",
	KindList:        "List",
	KindDict:        "Dict",
	KindOpaque:      "Opaque",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsStatement reports whether nodes of kind k occupy a statement position.
func (k Kind) IsStatement() bool { return k <= KindImport }

// ConstKind distinguishes literal constants.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstFloat
	ConstString
	ConstBool
)

// Op is a Python operator in its source spelling.
type Op string

const (
	OpAdd      Op = "+"
	OpSub      Op = "-"
	OpMul      Op = "*"
	OpDiv      Op = "/"
	OpFloorDiv Op = "//"
	OpMod      Op = "%"
	OpPow      Op = "**"
	OpMatMul   Op = "@"
	OpBitAnd   Op = "&"
	OpBitOr    Op = "|"
	OpBitXor   Op = "^"
	OpLShift   Op = "<<"
	OpRShift   Op = ">>"

	OpNeg    Op = "neg"
	OpPos    Op = "pos"
	OpNot    Op = "not"
	OpInvert Op = "~"

	OpAnd Op = "and"
	OpOr  Op = "or"

	OpEq    Op = "=="
	OpNotEq Op = "!="
	OpLt    Op = "<"
	OpLtE   Op = "<="
	OpGt    Op = ">"
	OpGtE   Op = ">="
	OpIs    Op = "is"
	OpIsNot Op = "is not"
	OpIn    Op = "in"
	OpNotIn Op = "not in"
)

// Position is a 1-based line and column (in bytes).
type Position struct {
	Line   int
	Column int
}

// Span locates a node in the source it was lowered from. Nodes synthesized
// during preprocessing inherit the span of the node they were derived from.
type Span struct {
	StartByte int
	EndByte   int
	Start     Position
	End       Position
}

// Node is one entry of the arena. Which role fields are meaningful depends on
// Kind; unused roles hold NoNode.
//
//	Module       Body
//	Block        Elts (statements)
//	FunctionDef  Name, Decorators, Elts (params), Body
//	Param        Name, Annotation, Default
//	Assign       Target, Value; a chained `a = b = v` keeps all targets in
//	             Elts with Target empty until preprocessing splits it
//	Expr         Value
//	If           Test, Body, Else (NoNode without else)
//	While        Test, Body
//	For          Target, Iter, Body
//	Return       Value (NoNode for a bare return)
//	With         Value (context expression), Target (optional alias), Body
//	Name         Name
//	Constant     Const, Literal
//	Call         Func, Elts (positional args), Keywords
//	Keyword      Name, Value
//	Attribute    Value, Name
//	Subscript    Value, Index
//	BinOp        Op, Left, Right
//	UnaryOp      Op, Value
//	BoolOp       Op, Elts
//	Compare      Op, Left, Right
//	IfExp        Body, Test, Else
//	Tuple, List  Elts
//	Dict         Elts (key, value, key, value, ...)
//	Opaque       Literal (source text), Elts (readable sub-expressions)
type Node struct {
	Kind   Kind
	Parent NodeID
	Span   Span
	// Synthetic nodes were created by preprocessing; their span points at
	// the construct they were derived from.
	Synthetic bool

	Name    string
	Literal string
	Const   ConstKind
	Op      Op

	Test       NodeID
	Body       NodeID
	Else       NodeID
	Target     NodeID
	Value      NodeID
	Iter       NodeID
	Func       NodeID
	Left       NodeID
	Right      NodeID
	Index      NodeID
	Annotation NodeID
	Default    NodeID

	Elts       []NodeID
	Keywords   []NodeID
	Decorators []NodeID
}

// New returns a node of kind k with every role slot empty.
func New(k Kind) Node {
	return Node{
		Kind:       k,
		Parent:     NoNode,
		Test:       NoNode,
		Body:       NoNode,
		Else:       NoNode,
		Target:     NoNode,
		Value:      NoNode,
		Iter:       NoNode,
		Func:       NoNode,
		Left:       NoNode,
		Right:      NoNode,
		Index:      NoNode,
		Annotation: NoNode,
		Default:    NoNode,
	}
}

// Children returns the node's children in source order.
func (n *Node) Children() []NodeID {
	var out []NodeID
	add := func(ids ...NodeID) {
		for _, id := range ids {
			if id.Valid() {
				out = append(out, id)
			}
		}
	}
	switch n.Kind {
	case KindModule:
		add(n.Body)
	case KindBlock, KindTuple, KindList, KindDict, KindBoolOp, KindOpaque:
		add(n.Elts...)
	case KindFunctionDef:
		add(n.Decorators...)
		add(n.Elts...)
		add(n.Body)
	case KindParam:
		add(n.Annotation, n.Default)
	case KindAssign:
		add(n.Elts...)
		add(n.Target, n.Value)
	case KindExprStmt, KindReturn, KindKeyword, KindAttribute, KindUnaryOp:
		add(n.Value)
	case KindIf, KindWhile:
		add(n.Test, n.Body, n.Else)
	case KindFor:
		add(n.Target, n.Iter, n.Body)
	case KindWith:
		add(n.Value, n.Target, n.Body)
	case KindCall:
		add(n.Func)
		add(n.Elts...)
		add(n.Keywords...)
	case KindSubscript:
		add(n.Value, n.Index)
	case KindBinOp, KindCompare:
		add(n.Left, n.Right)
	case KindIfExp:
		add(n.Body, n.Test, n.Else)
	case KindBreak, KindContinue, KindPass, KindImport, KindName, KindConstant:
	}
	return out
}
