package syntax

import (
	"strconv"
	"strings"
)

// Number returns the value of a numeric or boolean literal, looking
// through unary plus and minus. Strings, None and complex literals are not
// numbers.
func (t *Tree) Number(id NodeID) (float64, bool) {
	n := &t.nodes[id]
	switch n.Kind {
	case KindUnaryOp:
		v, ok := t.Number(n.Value)
		switch {
		case !ok:
			return 0, false
		case n.Op == OpNeg:
			return -v, true
		case n.Op == OpPos:
			return v, true
		}
		return 0, false
	case KindConstant:
	default:
		return 0, false
	}
	lit := strings.ReplaceAll(n.Literal, "_", "")
	switch n.Const {
	case ConstBool:
		if lit == "True" {
			return 1, true
		}
		return 0, true
	case ConstInt:
		if v, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return float64(v), true
		}
		v, err := strconv.ParseFloat(lit, 64)
		return v, err == nil
	case ConstFloat:
		v, err := strconv.ParseFloat(lit, 64)
		return v, err == nil
	}
	return 0, false
}
