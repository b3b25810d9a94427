package symbolic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

func TestEquality(t *testing.T) {
	x, y := Sym("X", Real), Sym("Y", Real)
	assert.True(t, Equal(x, Sym("X", Real)))
	assert.False(t, Equal(x, Sym("X", Int)))
	assert.True(t, Equal(Not(Not(x)), x))
	assert.True(t, Equal(Op("f", x, y), Op("f", x, y)))
	assert.True(t, Equal(Not(Not(Op("f", x, y))), Op("f", x, y)))
	assert.False(t, Equal(Constant{Value: "X"}, x))
	assert.True(t, Equal(BoolConst(true), BoolConst(true)))
	assert.True(t, Equal(Num(1), Constant{Value: "1.0"}))
	assert.False(t, Equal(Num(1), BoolConst(true)))
}

func TestWireGrammar(t *testing.T) {
	tests := []string{
		"Constant(True)",
		"Real(x)",
		"Int(n)",
		"Bool(flag)",
		"!(==(Int(A),Constant(1)))",
		"|(&(!(>(Real(I),Constant(0))),<(Constant(0),*(Constant(2),Real(I)))),&(>(Real(I),Constant(0)),<(Constant(0),-(Real(I),Constant(1)))))",
		"-(Real(x))",
		"f()",
		"<=(Constant(0.5),Real(y))",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			e, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, s, e.String())
		})
	}

	e, err := Parse(">(Real(B),Constant(1))")
	require.NoError(t, err)
	assert.Equal(t, Op(OpGt, Sym("B", Real), Num(1)), e)
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "x", "Real(x", "+(Real(x)", "+(Real(x))junk", "(Real(x))", "+(Real(x);Real(y))"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrSyntax, s)
	}
}

func TestFormat(t *testing.T) {
	e := And(Not(Op(OpEq, Sym("A", Int), Num(1))), Sym("I", Bool))
	assert.Equal(t, "(!(A == 1) & I)", Format(e))
	assert.Equal(t, "f(x, y, z)", Format(Op("f", Sym("x", Real), Sym("y", Real), Sym("z", Real))))
}

func TestCombinePaths(t *testing.T) {
	a, b, c := Sym("a", Bool), Sym("b", Bool), Sym("c", Bool)

	assert.Equal(t, BoolConst(true), CombinePaths(nil))
	assert.Equal(t, BoolConst(true), CombinePaths([][]Expr{{}, {a}}))
	assert.Equal(t, b, CombinePaths([][]Expr{{a, b}, {Not(a), b}}))
	assert.Equal(t, a, CombinePaths([][]Expr{
		{a, Not(b)}, {a, b},
	}))
	assert.Equal(t, Or(And(a, b), And(Not(a), c)), CombinePaths([][]Expr{{a, b}, {Not(a), c}}))
}

func parse(t *testing.T, src string) (*scope.Tree, syntax.NodeID) {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "src.py", []byte(src))
	require.NoError(t, err)
	return scope.Build(tree), tree.Node(tree.Node(tree.Root).Body).Elts[0]
}

// at returns the statement at path inside fn; negative indices select the
// else arm.
func at(st *scope.Tree, fn syntax.NodeID, path ...int) syntax.NodeID {
	block := st.Node(fn).Body
	var id syntax.NodeID
	for i, k := range path {
		if k < 0 {
			block = st.Node(id).Else
			k = -k - 1
		}
		id = st.Node(block).Elts[k]
		if i+1 < len(path) && path[i+1] >= 0 {
			block = st.Node(id).Body
		}
	}
	return id
}

func TestPathConditions(t *testing.T) {
	st, fn := parse(t, `
def model(I: bool):
    A = pyro.sample('A', dist.Bernoulli(0.5))

    if A == 1:
        B = pyro.sample('B', dist.Normal(0., 1.))
    else:
        B = pyro.sample('B', dist.Gamma(1, 1))
        if B > 1 and I:
            pyro.sample('C', dist.Beta(1, 1))

    if B < 1 and I:
        pyro.sample('D', dist.Normal(0., 1.))
    if B < 2:
        pyro.sample('D', dist.Normal(0., 1.))
        pyro.sample('E', dist.Normal(0., 1.))
`)
	A := at(st, fn, 0)
	B1 := at(st, fn, 1, 0)
	B2 := at(st, fn, 1, -1)
	C := st.Node(at(st, fn, 1, -2, 0)).Value
	D1 := st.Node(at(st, fn, 2, 0)).Value
	D2 := at(st, fn, 3, 0)
	E := at(st, fn, 3, 1)
	masks := map[syntax.NodeID]Expr{
		A: Sym("A", Real), B1: Sym("B", Real), B2: Sym("B", Real),
		C: Sym("C", Real), D1: Sym("D", Real), D2: Sym("D", Real), E: Sym("E", Real),
	}
	nodes := []syntax.NodeID{A, B1, B2, C, D1, D2, E}

	paths, err := NewEvaluator(st, masks).Paths(fn, nodes)
	require.NoError(t, err)
	var counts []int
	for _, n := range nodes {
		counts = append(counts, len(paths[n]))
	}
	assert.Equal(t, []int{12, 4, 8, 4, 6, 6, 6}, counts)

	result, err := PathConditions(st, fn, nodes, masks)
	require.NoError(t, err)

	a, b, i := Sym("A", Real), Sym("B", Real), Sym("I", Bool)
	b1 := Op(OpEq, a, Num(1))
	assert.Equal(t, BoolConst(true), result[A])
	assert.True(t, Equal(b1, result[B1]))
	assert.True(t, Equal(Not(b1), result[B2]))
	assert.True(t, Equal(And(Not(b1), Op(OpAnd, Op(OpGt, b, Num(1)), i)), result[C]))
	assert.True(t, Equal(Op(OpAnd, Op(OpLt, b, Num(1)), i), result[D1]))
	assert.True(t, Equal(Op(OpLt, b, Num(2)), result[D2]))
	assert.True(t, Equal(Op(OpLt, b, Num(2)), result[E]))
}

func TestPathConditionsWire(t *testing.T) {
	st, fn := parse(t, `
def model(I):
    if I > 0:
        m = I-1
    else:
        m = 2*I

    if 0 < m:
        A = pyro.sample('A', dist.Bernoulli(0.5))
    else:
        B = pyro.sample('B', dist.Normal(0., 1.))
`)
	A := at(st, fn, 1, 0)
	B := at(st, fn, 1, -1)
	result, err := PathConditions(st, fn, []syntax.NodeID{A, B}, map[syntax.NodeID]Expr{
		A: Sym("A", Real), B: Sym("B", Real),
	})
	require.NoError(t, err)
	assert.Equal(t, "|(&(!(>(Real(I),Constant(0))),<(Constant(0),*(Constant(2),Real(I)))),&(>(Real(I),Constant(0)),<(Constant(0),-(Real(I),Constant(1)))))", result[A].String())
	assert.Equal(t, "|(&(!(>(Real(I),Constant(0))),!(<(Constant(0),*(Constant(2),Real(I))))),&(>(Real(I),Constant(0)),!(<(Constant(0),-(Real(I),Constant(1))))))", result[B].String())
}

func TestIfElseCondition(t *testing.T) {
	st, fn := parse(t, `
def f(a: bool):
    if a:
        x = 1
    else:
        y = 2
`)
	x, y := at(st, fn, 0, 0), at(st, fn, 0, -1)
	result, err := PathConditions(st, fn, []syntax.NodeID{x, y}, nil)
	require.NoError(t, err)
	assert.Equal(t, Sym("a", Bool), result[x])
	assert.Equal(t, Not(Sym("a", Bool)), result[y])
}

func TestEarlyReturnEndsPath(t *testing.T) {
	st, fn := parse(t, `
def f(a: bool):
    if a:
        return 0
    x = 1
`)
	x := at(st, fn, 1)
	result, err := PathConditions(st, fn, []syntax.NodeID{x}, nil)
	require.NoError(t, err)
	assert.Equal(t, Not(Sym("a", Bool)), result[x])
}

func TestPathLimit(t *testing.T) {
	st, fn := parse(t, `
def f(a, b, c):
    if a:
        pass
    if b:
        pass
    if c:
        pass
`)
	ev := NewEvaluator(st, nil)
	ev.MaxPaths = 4
	_, err := ev.Paths(fn, nil)
	assert.ErrorIs(t, err, ErrPathLimit)
}
