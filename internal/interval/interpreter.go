package interval

import (
	"fmt"
	"math"

	"github.com/gnoverse/pplint/internal/analysis/dataflow"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

// DefaultMaxDepth bounds how many definitions deep a name is resolved.
const DefaultMaxDepth = 64

// Warning reports a spot where the interpreter gave up precision.
type Warning struct {
	Node    syntax.NodeID
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s: %s", syntax.IDString(w.Node), w.Message) }

// Interpreter bounds expressions of one program. Containers are not
// tracked element-wise: an array's interval covers all its elements.
type Interpreter struct {
	df       *dataflow.Analyzer
	tree     *scope.Tree
	MaxDepth int
}

// NewInterpreter returns an interpreter resolving names through df.
func NewInterpreter(df *dataflow.Analyzer) *Interpreter {
	return &Interpreter{df: df, tree: df.Program().Tree, MaxDepth: DefaultMaxDepth}
}

// Eval bounds the value of node. Names bound in v are taken as facts;
// other names are resolved through their reaching definitions, functions
// through the union of their returns, parameters through the arguments at
// every call site. The only error is a division by the point zero.
func (in *Interpreter) Eval(node syntax.NodeID, v Valuation) (Interval, []Warning, error) {
	e := &evaluation{
		in:        in,
		v:         v,
		defs:      make(map[syntax.NodeID]Interval),
		summaries: make(map[syntax.NodeID]Interval),
		active:    make(map[syntax.NodeID]bool),
	}
	i, err := e.eval(node)
	return i, e.warnings, err
}

// evaluation is the state of one Eval call.
type evaluation struct {
	in        *Interpreter
	v         Valuation
	defs      map[syntax.NodeID]Interval
	summaries map[syntax.NodeID]Interval
	active    map[syntax.NodeID]bool
	depth     int
	warnings  []Warning
}

func (e *evaluation) warn(id syntax.NodeID, format string, args ...any) Interval {
	e.warnings = append(e.warnings, Warning{Node: id, Message: fmt.Sprintf(format, args...)})
	return Top()
}

func (e *evaluation) eval(id syntax.NodeID) (Interval, error) {
	t := e.in.tree
	n := t.Node(id)
	switch n.Kind {
	case syntax.KindConstant:
		if v, ok := t.Number(id); ok {
			return Point(v), nil
		}
		return e.warn(id, "non-numeric constant %s", n.Literal), nil
	case syntax.KindName:
		return e.name(id)
	case syntax.KindSubscript:
		return e.eval(n.Value)
	case syntax.KindAttribute:
		return e.attribute(id)
	case syntax.KindBinOp:
		return e.binary(id)
	case syntax.KindUnaryOp:
		x, err := e.eval(n.Value)
		if err != nil {
			return x, err
		}
		switch n.Op {
		case syntax.OpNeg:
			return Neg(x), nil
		case syntax.OpPos:
			return x, nil
		case syntax.OpNot:
			return Bool(), nil
		}
		return e.warn(id, "unsupported operator %s", n.Op), nil
	case syntax.KindCompare:
		return Bool(), nil
	case syntax.KindBoolOp:
		return e.union(n.Elts)
	case syntax.KindIfExp:
		return e.union([]syntax.NodeID{n.Body, n.Else})
	case syntax.KindTuple, syntax.KindList:
		if len(n.Elts) == 0 {
			return e.warn(id, "empty sequence"), nil
		}
		return e.union(n.Elts)
	case syntax.KindCall:
		return e.call(id)
	case syntax.KindExprStmt, syntax.KindReturn:
		if !n.Value.Valid() {
			return e.warn(id, "no value"), nil
		}
		return e.eval(n.Value)
	case syntax.KindAssign:
		return e.eval(n.Value)
	case syntax.KindFunctionDef:
		return e.summary(id), nil
	case syntax.KindParam:
		return e.definition(id)
	}
	return e.warn(id, "cannot bound %s", n.Kind), nil
}

func (e *evaluation) union(ids []syntax.NodeID) (Interval, error) {
	var out Interval
	for k, id := range ids {
		x, err := e.eval(id)
		if err != nil {
			return x, err
		}
		if k == 0 {
			out = x
		} else {
			out = Union(out, x)
		}
	}
	return out, nil
}

// name resolves an identifier: a bound fact, a user function's summary, or
// the union of its reaching definitions.
func (e *evaluation) name(id syntax.NodeID) (Interval, error) {
	t := e.in.tree
	name := t.Node(id).Name
	if x, ok := e.v.Get(name); ok {
		return x, nil
	}
	if f, ok := t.FunctionNamed(name, t.Resolve(id)); ok {
		return e.summary(f.Node), nil
	}
	var defs []syntax.NodeID
	for _, d := range e.in.df.DataDependencies(id) {
		if t.Kind(d) != syntax.KindFunctionDef && t.NameOf(d) == name {
			defs = append(defs, d)
		}
	}
	if len(defs) == 0 {
		return e.warn(id, "unknown symbol %s", name), nil
	}
	var out Interval
	for k, d := range defs {
		x, err := e.definition(d)
		if err != nil {
			return x, err
		}
		if k == 0 {
			out = x
		} else {
			out = Union(out, x)
		}
	}
	return out, nil
}

// definition bounds the value a definition binds, memoized per Eval. A
// definition reached again while it is being resolved (a loop-carried
// value) is unbounded.
func (e *evaluation) definition(def syntax.NodeID) (Interval, error) {
	if x, ok := e.defs[def]; ok {
		return x, nil
	}
	if e.active[def] {
		return Top(), nil
	}
	if e.depth >= e.in.MaxDepth {
		return e.warn(def, "resolution depth exceeded"), nil
	}
	e.active[def] = true
	e.depth++
	defer func() {
		delete(e.active, def)
		e.depth--
	}()

	t := e.in.tree
	n := t.Node(def)
	var (
		x   Interval
		err error
	)
	switch n.Kind {
	case syntax.KindAssign:
		x, err = e.eval(n.Value)
	case syntax.KindParam:
		x, err = e.param(def)
	case syntax.KindFor:
		x, err = e.loopVariable(def)
	default:
		x = e.warn(def, "cannot bound definition %s", n.Kind)
	}
	if err != nil {
		return x, err
	}
	e.defs[def] = x
	return x, nil
}

func (e *evaluation) param(p syntax.NodeID) (Interval, error) {
	t := e.in.tree
	ids := e.in.df.Arguments(p)
	if d := t.Node(p).Default; d.Valid() {
		ids = append(ids, d)
	}
	if len(ids) == 0 {
		return e.warn(p, "parameter %s has no call site", t.Node(p).Name), nil
	}
	return e.union(ids)
}

// loopVariable bounds the target of a for loop from its iterable. A
// range(start, stop) yields [start, stop-1] for a positive step.
func (e *evaluation) loopVariable(loop syntax.NodeID) (Interval, error) {
	t := e.in.tree
	iter := t.Node(loop).Iter
	if t.CallName(iter) != "range" {
		return e.eval(iter)
	}
	args := t.Node(iter).Elts
	xs := make([]Interval, len(args))
	for k, a := range args {
		x, err := e.eval(a)
		if err != nil {
			return x, err
		}
		xs[k] = x
	}
	switch len(xs) {
	case 1:
		return New(0, math.Max(0, xs[0].High-1)), nil
	case 2:
		return New(xs[0].Low, math.Max(xs[0].Low, xs[1].High-1)), nil
	case 3:
		if xs[2].Low > 0 {
			return New(xs[0].Low, math.Max(xs[0].Low, xs[1].High-1)), nil
		}
		return Union(xs[0], xs[1]), nil
	}
	return e.warn(iter, "malformed range"), nil
}

// summary is the union of the values fn may return, ignoring arguments.
func (e *evaluation) summary(fn syntax.NodeID) Interval {
	if x, ok := e.summaries[fn]; ok {
		return x
	}
	if e.active[fn] {
		return Top()
	}
	e.active[fn] = true
	defer delete(e.active, fn)

	t := e.in.tree
	var (
		out   Interval
		found bool
	)
	for _, ret := range e.in.df.Returns(fn) {
		v := t.Node(ret).Value
		if !v.Valid() {
			continue
		}
		x, err := e.eval(v)
		if err != nil {
			x = Top()
		}
		if found {
			out = Union(out, x)
		} else {
			out, found = x, true
		}
	}
	if !found {
		out = e.warn(fn, "function %s returns no value", t.Node(fn).Name)
	}
	e.summaries[fn] = out
	return out
}

func (e *evaluation) attribute(id syntax.NodeID) (Interval, error) {
	t := e.in.tree
	if name := t.DottedName(id); name != "" {
		if x, ok := e.v.Get(name); ok {
			return x, nil
		}
	}
	switch t.Node(id).Name {
	case "pi":
		return Point(math.Pi), nil
	case "e":
		return Point(math.E), nil
	case "inf":
		return Point(math.Inf(1)), nil
	case "T":
		return e.eval(t.Node(id).Value)
	}
	return e.warn(id, "unknown attribute %s", t.Node(id).Name), nil
}

func (e *evaluation) binary(id syntax.NodeID) (Interval, error) {
	n := e.in.tree.Node(id)
	x, err := e.eval(n.Left)
	if err != nil {
		return x, err
	}
	y, err := e.eval(n.Right)
	if err != nil {
		return y, err
	}
	switch n.Op {
	case syntax.OpAdd:
		return Add(x, y), nil
	case syntax.OpSub:
		return Sub(x, y), nil
	case syntax.OpMul:
		return Mul(x, y), nil
	case syntax.OpDiv:
		return Div(x, y)
	case syntax.OpFloorDiv:
		return FloorDiv(x, y)
	case syntax.OpMod:
		return Mod(x, y), nil
	case syntax.OpPow:
		return Pow(x, y), nil
	}
	return e.warn(id, "unsupported operator %s", n.Op), nil
}

// call bounds a call. A method call on a value (x.exp()) passes the
// receiver as the first argument; a module function (np.exp) is looked up
// by its last component.
func (e *evaluation) call(id syntax.NodeID) (Interval, error) {
	t := e.in.tree
	n := t.Node(id)
	if name := t.CallName(id); name != "" {
		if x, ok := e.v.Get(name); ok {
			return x, nil
		}
	}
	if f, ok := t.Callee(id); ok {
		return e.summary(f.Node), nil
	}

	args := n.Elts
	var fname string
	switch fn := t.Node(n.Func); fn.Kind {
	case syntax.KindName:
		fname = fn.Name
	case syntax.KindAttribute:
		fname = fn.Name
		if base := scope.BaseName(t.Tree, fn.Value); base.Valid() {
			_, bound := e.v.Get(t.Node(base).Name)
			if bound || t.UserSymbols[t.Node(base).Name] {
				args = append([]syntax.NodeID{fn.Value}, args...)
			}
		}
	}
	impl, ok := builtins[fname]
	if !ok {
		return e.warn(id, "unknown call %s", t.Source(n.Func)), nil
	}
	if impl.arity > 0 && len(args) < impl.arity {
		return e.warn(id, "%s expects %d arguments", fname, impl.arity), nil
	}
	xs := make([]Interval, len(args))
	for k, a := range args {
		x, err := e.eval(a)
		if err != nil {
			return x, err
		}
		xs[k] = x
	}
	kw := func(names ...string) (Interval, bool, error) {
		for _, name := range names {
			if v := t.Keyword(id, name); v.Valid() {
				x, err := e.eval(v)
				return x, true, err
			}
		}
		return Interval{}, false, nil
	}
	return impl.fn(xs, kw)
}

type keywordFunc func(names ...string) (Interval, bool, error)

type builtin struct {
	arity int
	fn    func(xs []Interval, kw keywordFunc) (Interval, error)
}

func unary(f func(Interval) Interval) builtin {
	return builtin{arity: 1, fn: func(xs []Interval, _ keywordFunc) (Interval, error) {
		return f(xs[0]), nil
	}}
}

func fold(f func(x, y Interval) Interval) builtin {
	return builtin{arity: 1, fn: func(xs []Interval, _ keywordFunc) (Interval, error) {
		out := xs[0]
		for _, x := range xs[1:] {
			out = f(out, x)
		}
		return out, nil
	}}
}

func identity(x Interval) Interval { return x }

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

func softplus(v float64) float64 {
	if v > 30 {
		return v
	}
	return math.Log1p(math.Exp(v))
}

var builtins = map[string]builtin{
	"exp":       unary(Exp),
	"log":       unary(Log),
	"sqrt":      unary(Sqrt),
	"abs":       unary(Abs),
	"fabs":      unary(Abs),
	"square":    unary(func(x Interval) Interval { return Pow(x, Point(2)) }),
	"log1p":     unary(func(x Interval) Interval { return Log(Add(x, Point(1))) }),
	"expm1":     unary(func(x Interval) Interval { return Sub(Exp(x), Point(1)) }),
	"sigmoid":   unary(func(x Interval) Interval { return Monotone(x, sigmoid) }),
	"expit":     unary(func(x Interval) Interval { return Monotone(x, sigmoid) }),
	"invlogit":  unary(func(x Interval) Interval { return Monotone(x, sigmoid) }),
	"softplus":  unary(func(x Interval) Interval { return Monotone(x, softplus) }),
	"tanh":      unary(func(x Interval) Interval { return Monotone(x, math.Tanh) }),
	"floor":     unary(func(x Interval) Interval { return Monotone(x, math.Floor) }),
	"ceil":      unary(func(x Interval) Interval { return Monotone(x, math.Ceil) }),
	"sin":       unary(func(Interval) Interval { return New(-1, 1) }),
	"cos":       unary(func(Interval) Interval { return New(-1, 1) }),
	"float":     unary(identity),
	"int":       unary(func(x Interval) Interval { return Monotone(x, math.Trunc) }),
	"tensor":    unary(identity),
	"as_tensor": unary(identity),
	"array":     unary(identity),
	"asarray":   unary(identity),
	"mean":      unary(identity),
	"len":       unary(func(Interval) Interval { return Interval{Low: 0, High: math.Inf(1)} }),
	"min":       fold(Min),
	"minimum":   fold(Min),
	"max":       fold(Max),
	"maximum":   fold(Max),
	"pow": {arity: 2, fn: func(xs []Interval, _ keywordFunc) (Interval, error) {
		return Pow(xs[0], xs[1]), nil
	}},
	"power": {arity: 2, fn: func(xs []Interval, _ keywordFunc) (Interval, error) {
		return Pow(xs[0], xs[1]), nil
	}},
	"ifelse": {arity: 3, fn: branches},
	"switch": {arity: 3, fn: branches},
	"where":  {arity: 3, fn: branches},
	"clip":   {arity: 1, fn: clip},
	"clamp":  {arity: 1, fn: clip},
}

// branches unions both arms of ifelse(cond, a, b) without deciding cond.
func branches(xs []Interval, _ keywordFunc) (Interval, error) {
	return Union(xs[1], xs[2]), nil
}

// clip bounds clip(x, lo, hi), taking the bounds positionally or by the
// numpy and torch keyword names.
func clip(xs []Interval, kw keywordFunc) (Interval, error) {
	out := xs[0]
	lo, ok, err := Interval{}, len(xs) > 1, error(nil)
	if ok {
		lo = xs[1]
	} else if lo, ok, err = kw("min", "a_min"); err != nil {
		return lo, err
	}
	if ok {
		out = Max(out, lo)
	}
	hi, ok := Interval{}, len(xs) > 2
	if ok {
		hi = xs[2]
	} else if hi, ok, err = kw("max", "a_max"); err != nil {
		return hi, err
	}
	if ok {
		out = Min(out, hi)
	}
	return out, nil
}
