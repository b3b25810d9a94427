package syntax

import (
	"strconv"
	"strings"
)

// Unparse renders id back to Python source. Statement lists are rendered
// on one line separated by "; ", which is enough for diagnostics.
func (t *Tree) Unparse(id NodeID) string {
	var b strings.Builder
	t.unparse(&b, id)
	return b.String()
}

func (t *Tree) unparse(b *strings.Builder, id NodeID) {
	if !id.Valid() {
		return
	}
	n := t.Node(id)
	list := func(ids []NodeID, sep string) {
		for i, c := range ids {
			if i > 0 {
				b.WriteString(sep)
			}
			t.unparse(b, c)
		}
	}
	switch n.Kind {
	case KindModule:
		t.unparse(b, n.Body)
	case KindBlock:
		list(n.Elts, "; ")
	case KindFunctionDef:
		b.WriteString("def " + n.Name + "(")
		list(n.Elts, ", ")
		b.WriteString("): ")
		t.unparse(b, n.Body)
	case KindParam:
		b.WriteString(n.Name)
		if n.Annotation.Valid() {
			b.WriteString(": ")
			t.unparse(b, n.Annotation)
		}
		if n.Default.Valid() {
			b.WriteString("=")
			t.unparse(b, n.Default)
		}
	case KindAssign:
		list(n.Elts, " = ")
		if len(n.Elts) > 0 && n.Target.Valid() {
			b.WriteString(" = ")
		}
		t.unparse(b, n.Target)
		b.WriteString(" = ")
		t.unparse(b, n.Value)
	case KindExprStmt:
		t.unparse(b, n.Value)
	case KindIf:
		b.WriteString("if ")
		t.unparse(b, n.Test)
		b.WriteString(": ")
		t.unparse(b, n.Body)
		if n.Else.Valid() {
			b.WriteString(" else: ")
			t.unparse(b, n.Else)
		}
	case KindWhile:
		b.WriteString("while ")
		t.unparse(b, n.Test)
		b.WriteString(": ")
		t.unparse(b, n.Body)
	case KindFor:
		b.WriteString("for ")
		t.unparse(b, n.Target)
		b.WriteString(" in ")
		t.unparse(b, n.Iter)
		b.WriteString(": ")
		t.unparse(b, n.Body)
	case KindReturn:
		b.WriteString("return")
		if n.Value.Valid() {
			b.WriteString(" ")
			t.unparse(b, n.Value)
		}
	case KindBreak:
		b.WriteString("break")
	case KindContinue:
		b.WriteString("continue")
	case KindPass:
		b.WriteString("pass")
	case KindWith:
		b.WriteString("with ")
		t.unparse(b, n.Value)
		if n.Target.Valid() {
			b.WriteString(" as ")
			t.unparse(b, n.Target)
		}
		b.WriteString(": ")
		t.unparse(b, n.Body)
	case KindImport, KindOpaque:
		b.WriteString(n.Literal)
	case KindName:
		b.WriteString(n.Name)
	case KindConstant:
		switch n.Const {
		case ConstString:
			b.WriteString(strconv.Quote(n.Literal))
		case ConstNone:
			b.WriteString("None")
		default:
			b.WriteString(n.Literal)
		}
	case KindCall:
		t.unparse(b, n.Func)
		b.WriteString("(")
		list(n.Elts, ", ")
		if len(n.Elts) > 0 && len(n.Keywords) > 0 {
			b.WriteString(", ")
		}
		list(n.Keywords, ", ")
		b.WriteString(")")
	case KindKeyword:
		b.WriteString(n.Name + "=")
		t.unparse(b, n.Value)
	case KindAttribute:
		t.unparse(b, n.Value)
		b.WriteString("." + n.Name)
	case KindSubscript:
		t.unparse(b, n.Value)
		b.WriteString("[")
		t.unparse(b, n.Index)
		b.WriteString("]")
	case KindBinOp, KindCompare:
		b.WriteString("(")
		t.unparse(b, n.Left)
		b.WriteString(" " + string(n.Op) + " ")
		t.unparse(b, n.Right)
		b.WriteString(")")
	case KindUnaryOp:
		switch n.Op {
		case OpNeg:
			b.WriteString("-")
		case OpPos:
			b.WriteString("+")
		case OpNot:
			b.WriteString("not ")
		default:
			b.WriteString(string(n.Op))
		}
		t.unparse(b, n.Value)
	case KindBoolOp:
		b.WriteString("(")
		list(n.Elts, " "+string(n.Op)+" ")
		b.WriteString(")")
	case KindIfExp:
		t.unparse(b, n.Body)
		b.WriteString(" if ")
		t.unparse(b, n.Test)
		b.WriteString(" else ")
		t.unparse(b, n.Else)
	case KindTuple:
		b.WriteString("(")
		list(n.Elts, ", ")
		if len(n.Elts) == 1 {
			b.WriteString(",")
		}
		b.WriteString(")")
	case KindList:
		b.WriteString("[")
		list(n.Elts, ", ")
		b.WriteString("]")
	case KindDict:
		b.WriteString("{")
		for i := 0; i+1 < len(n.Elts); i += 2 {
			if i > 0 {
				b.WriteString(", ")
			}
			t.unparse(b, n.Elts[i])
			b.WriteString(": ")
			t.unparse(b, n.Elts[i+1])
		}
		b.WriteString("}")
	}
}
