package symbolic

import (
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// CombinePaths disjoins path conditions after merging pairs that differ
// only in the sign of one test at the same position:
//
//	(A & B & ...) | (!A & B & ...)  =>  B & ...
//
// It is not a complete minimizer. Empty conditions (always reached) make
// the result True.
func CombinePaths(paths [][]Expr) Expr {
	var merged [][]Expr
	for _, path := range paths {
		pc := append([]Expr(nil), path...)
		for changed := true; changed; {
			changed = false
			for i, other := range merged {
				if len(other) != len(pc) {
					continue
				}
				matching, index := 0, -1
				for j := range pc {
					if Equal(pc[j], Not(other[j])) {
						index = j
					}
					if Equal(pc[j], other[j]) {
						matching++
					}
				}
				if matching == len(pc)-1 && index >= 0 {
					merged = append(merged[:i], merged[i+1:]...)
					pc = append(pc[:index], pc[index+1:]...)
					changed = true
					break
				}
			}
		}
		merged = append(merged, pc)
	}

	var disjuncts []Expr
	for _, pc := range merged {
		if len(pc) == 0 {
			return BoolConst(true)
		}
		disjuncts = append(disjuncts, And(pc...))
	}
	if len(disjuncts) == 0 {
		return BoolConst(true)
	}
	return Or(disjuncts...)
}

// PathConditions returns, for every target, the condition under which
// executing root reaches it.
func PathConditions(tree *scope.Tree, root syntax.NodeID, targets []syntax.NodeID, masks map[syntax.NodeID]Expr) (map[syntax.NodeID]Expr, error) {
	paths, err := NewEvaluator(tree, masks).Paths(root, targets)
	if err != nil {
		return nil, err
	}
	out := make(map[syntax.NodeID]Expr, len(paths))
	for id, pcs := range paths {
		out[id] = CombinePaths(pcs)
	}
	return out, nil
}
