package symbolic

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// ErrPathLimit is returned when a subtree has more execution paths than
// the evaluator is allowed to enumerate.
var ErrPathLimit = errors.New("symbolic: path limit exceeded")

// DefaultMaxPaths bounds path enumeration.
const DefaultMaxPaths = 1 << 14

var binaryOps = map[syntax.Op]string{
	syntax.OpAdd:   OpAdd,
	syntax.OpSub:   OpSub,
	syntax.OpMul:   OpMul,
	syntax.OpDiv:   OpDiv,
	syntax.OpPow:   OpPow,
	syntax.OpAnd:   OpAnd,
	syntax.OpOr:    OpOr,
	syntax.OpEq:    OpEq,
	syntax.OpNotEq: OpNeq,
	syntax.OpGt:    OpGt,
	syntax.OpGtE:   OpGte,
	syntax.OpLt:    OpLt,
	syntax.OpLtE:   OpLte,
}

// Evaluator enumerates the execution paths of a subtree. Each path is
// driven to completion; at an if whose test is undecided the path forks,
// the copy taking the then arm and the original the else arm. Loop bodies
// are walked once without adding a condition.
type Evaluator struct {
	tree     *scope.Tree
	masks    map[syntax.NodeID]Expr
	MaxPaths int
}

// NewEvaluator returns an evaluator that replaces the value of every node
// in masks by its symbol. A masked Assign binds its target to the symbol;
// a masked FunctionDef stands for the value of every call to it.
func NewEvaluator(tree *scope.Tree, masks map[syntax.NodeID]Expr) *Evaluator {
	return &Evaluator{tree: tree, masks: masks, MaxPaths: DefaultMaxPaths}
}

type frame struct {
	stmts []syntax.NodeID
	next  int
	loop  bool
}

// state is one path under construction.
type state struct {
	frames []frame
	pc     []Expr
	env    *Env
	visits []syntax.NodeID
}

func (s *state) fork() *state {
	return &state{
		frames: append([]frame(nil), s.frames...),
		pc:     append([]Expr(nil), s.pc...),
		env:    s.env.Clone(),
		visits: append([]syntax.NodeID(nil), s.visits...),
	}
}

// Paths returns, for every target, the conditions of the complete paths
// through root that visit it, once per visit, in the order the paths
// complete. Else arms complete before then arms.
func (ev *Evaluator) Paths(root syntax.NodeID, targets []syntax.NodeID) (map[syntax.NodeID][][]Expr, error) {
	want := make(map[syntax.NodeID]bool, len(targets))
	out := make(map[syntax.NodeID][][]Expr, len(targets))
	for _, id := range targets {
		want[id] = true
		out[id] = nil
	}
	w := &walk{ev: ev, targets: want}

	stack := []*state{w.initial(root)}
	done := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		w.run(s, func(f *state) { stack = append(stack, f) })
		if done++; ev.MaxPaths > 0 && done > ev.MaxPaths {
			return nil, ErrPathLimit
		}
		for _, v := range s.visits {
			out[v] = append(out[v], s.pc)
		}
	}
	return out, nil
}

type walk struct {
	ev      *Evaluator
	targets map[syntax.NodeID]bool
}

func (w *walk) initial(root syntax.NodeID) *state {
	t := w.ev.tree
	s := &state{env: NewEnv()}
	w.visit(s, root)
	n := t.Node(root)
	switch n.Kind {
	case syntax.KindFunctionDef:
		for _, p := range n.Elts {
			name := t.Node(p).Name
			s.env.Set(name, Sym(name, annotationType(t.Tree, p)))
		}
		w.push(s, n.Body, false)
	case syntax.KindModule:
		w.push(s, n.Body, false)
	default:
		s.frames = append(s.frames, frame{stmts: []syntax.NodeID{root}})
	}
	return s
}

func annotationType(t *syntax.Tree, param syntax.NodeID) Type {
	ann := t.Node(param).Annotation
	if !ann.Valid() || t.Kind(ann) != syntax.KindName {
		return Real
	}
	switch t.Node(ann).Name {
	case "bool":
		return Bool
	case "int":
		return Int
	}
	return Real
}

func (w *walk) push(s *state, block syntax.NodeID, loop bool) {
	s.frames = append(s.frames, frame{stmts: w.ev.tree.Node(block).Elts, loop: loop})
}

func (w *walk) visit(s *state, id syntax.NodeID) {
	if w.targets[id] {
		s.visits = append(s.visits, id)
	}
}

func (w *walk) run(s *state, fork func(*state)) {
	for len(s.frames) > 0 {
		top := len(s.frames) - 1
		if s.frames[top].next >= len(s.frames[top].stmts) {
			s.frames = s.frames[:top]
			continue
		}
		id := s.frames[top].stmts[s.frames[top].next]
		s.frames[top].next++
		w.stmt(s, id, fork)
	}
}

func (w *walk) stmt(s *state, id syntax.NodeID, fork func(*state)) {
	t := w.ev.tree
	n := t.Node(id)
	w.visit(s, id)
	if m, ok := w.ev.masks[id]; ok {
		if n.Kind == syntax.KindAssign {
			w.bind(s, id, m)
		}
		return
	}

	switch n.Kind {
	case syntax.KindAssign:
		w.bind(s, id, w.expr(s, n.Value))
	case syntax.KindExprStmt:
		w.expr(s, n.Value)
	case syntax.KindReturn:
		if n.Value.Valid() {
			w.expr(s, n.Value)
		}
		s.frames = nil
	case syntax.KindIf:
		test := w.expr(s, n.Test)
		then := s.fork()
		then.pc = append(then.pc, test)
		w.push(then, n.Body, false)
		fork(then)
		s.pc = append(s.pc, Not(test))
		if n.Else.Valid() {
			w.push(s, n.Else, false)
		}
	case syntax.KindWhile:
		w.expr(s, n.Test)
		w.push(s, n.Body, true)
	case syntax.KindFor:
		w.expr(s, n.Iter)
		if tg := n.Target; t.Kind(tg) == syntax.KindName {
			name := t.Node(tg).Name
			typ := Real
			if t.CallName(n.Iter) == "range" {
				typ = Int
			}
			s.env.Set(name, Sym(name, typ))
		}
		w.push(s, n.Body, true)
	case syntax.KindBreak, syntax.KindContinue:
		for i := len(s.frames) - 1; i >= 0; i-- {
			if s.frames[i].loop {
				s.frames = s.frames[:i]
				return
			}
		}
		s.frames = nil
	case syntax.KindWith:
		w.expr(s, n.Value)
		if tg := n.Target; tg.Valid() && t.Kind(tg) == syntax.KindName {
			name := t.Node(tg).Name
			s.env.Set(name, Sym(name, Real))
		}
		w.push(s, n.Body, false)
	}
}

// bind records the value of an assignment's name targets. Writes through
// a subscript or attribute leave the environment unchanged.
func (w *walk) bind(s *state, asg syntax.NodeID, val Expr) {
	t := w.ev.tree
	n := t.Node(asg)
	targets := n.Elts
	if n.Target.Valid() {
		targets = []syntax.NodeID{n.Target}
	}
	for _, tg := range targets {
		if t.Kind(tg) == syntax.KindName {
			s.env.Set(t.Node(tg).Name, val)
		}
	}
}

func (w *walk) expr(s *state, id syntax.NodeID) Expr {
	t := w.ev.tree
	n := t.Node(id)
	w.visit(s, id)
	if m, ok := w.ev.masks[id]; ok {
		return m
	}

	switch n.Kind {
	case syntax.KindConstant:
		return constant(t.Tree, id)
	case syntax.KindName:
		if v := s.env.Get(n.Name); v != nil {
			return v
		}
		return Sym(n.Name, Real)
	case syntax.KindAttribute:
		w.expr(s, n.Value)
		name := t.DottedName(id)
		if name == "" {
			name = n.Name
		}
		return Sym(name, Real)
	case syntax.KindUnaryOp:
		x := w.expr(s, n.Value)
		switch n.Op {
		case syntax.OpNot:
			return Not(x)
		case syntax.OpPos:
			return x
		case syntax.OpNeg:
			return Op(OpSub, x)
		}
		return Op(string(n.Op), x)
	case syntax.KindBinOp, syntax.KindCompare:
		l, r := w.expr(s, n.Left), w.expr(s, n.Right)
		return Op(operator(n.Op), l, r)
	case syntax.KindBoolOp:
		return Op(operator(n.Op), w.exprs(s, n.Elts)...)
	case syntax.KindIfExp:
		c := w.expr(s, n.Test)
		a, b := w.expr(s, n.Body), w.expr(s, n.Else)
		return Op("ite", c, a, b)
	case syntax.KindSubscript:
		return Op("getitem", w.expr(s, n.Value), w.expr(s, n.Index))
	case syntax.KindCall:
		return w.call(s, id)
	case syntax.KindKeyword:
		return w.expr(s, n.Value)
	}
	return Op(strings.ToLower(n.Kind.String()), w.exprs(s, n.Elts)...)
}

func (w *walk) exprs(s *state, ids []syntax.NodeID) []Expr {
	out := make([]Expr, len(ids))
	for i, id := range ids {
		out[i] = w.expr(s, id)
	}
	return out
}

// call maps a call to an operation named after the callee's last
// component over its positional arguments. Keyword arguments are walked
// for target visits only.
func (w *walk) call(s *state, id syntax.NodeID) Expr {
	t := w.ev.tree
	n := t.Node(id)
	args := w.exprs(s, n.Elts)
	for _, kw := range n.Keywords {
		w.expr(s, kw)
	}
	if f, ok := t.Callee(id); ok {
		if m, ok := w.ev.masks[f.Node]; ok {
			return m
		}
	}
	name := "call"
	switch fn := t.Node(n.Func); fn.Kind {
	case syntax.KindName, syntax.KindAttribute:
		name = fn.Name
	}
	return Op(name, args...)
}

func operator(op syntax.Op) string {
	if s, ok := binaryOps[op]; ok {
		return s
	}
	return string(op)
}

func constant(t *syntax.Tree, id syntax.NodeID) Expr {
	n := t.Node(id)
	switch n.Const {
	case syntax.ConstInt:
		if v, ok := t.Number(id); ok {
			return Constant{Value: strconv.FormatFloat(v, 'f', -1, 64)}
		}
	case syntax.ConstFloat:
		if v, ok := t.Number(id); ok {
			return Constant{Value: FormatFloat(v)}
		}
	case syntax.ConstBool:
		return Constant{Value: n.Literal}
	case syntax.ConstNone:
		return Constant{Value: "None"}
	}
	return Constant{Value: n.Literal}
}
