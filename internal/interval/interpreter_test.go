package interval

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/analysis/cfg"
	"github.com/gnoverse/pplint/internal/analysis/dataflow"
	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

func interpreter(t *testing.T, src string) (*Interpreter, []syntax.NodeID) {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "src.py", []byte(src))
	require.NoError(t, err)
	prog, err := cfg.Build(scope.Build(tree))
	require.NoError(t, err)
	return NewInterpreter(dataflow.New(prog)), tree.Node(tree.Node(tree.Root).Body).Elts
}

func TestEvalSequence(t *testing.T) {
	in, stmts := interpreter(t, "a = x + y\nb = a * z\nexp(b)\n")
	v := Valuation{"x": New(-1, 2), "y": New(2, 3), "z": Point(2)}

	got, warnings, err := in.Eval(stmts[2], v)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Exp(Mul(Add(v["x"], v["y"]), v["z"])), got)
}

func TestEvalBranchesUnion(t *testing.T) {
	in, stmts := interpreter(t, `
if c:
    a = x + y
else:
    a = x - y
b = a * z
exp(b)
`)
	x, y, z := New(-1, 2), New(2, 3), Point(2)
	v := Valuation{"x": x, "y": y, "z": z}

	got, _, err := in.Eval(stmts[2], v)
	require.NoError(t, err)
	assert.Equal(t, Exp(Mul(Union(Add(x, y), Sub(x, y)), z)), got)
}

func TestEvalConditionals(t *testing.T) {
	in, stmts := interpreter(t, `
a = pm.math.switch(c, 1, 5)
b = 2 if c else -2
d = a < b
`)
	got, _, err := in.Eval(stmts[0], nil)
	require.NoError(t, err)
	assert.Equal(t, New(1, 5), got)

	got, _, err = in.Eval(stmts[1], nil)
	require.NoError(t, err)
	assert.Equal(t, New(-2, 2), got)

	got, _, err = in.Eval(stmts[2], nil)
	require.NoError(t, err)
	assert.Equal(t, Bool(), got)
}

func TestEvalFunctions(t *testing.T) {
	in, stmts := interpreter(t, `
def scale(v):
    if v > 0:
        return v * 2
    return 0

def shift(u, k=1):
    return u + k

a = scale(3)
b = shift(1)
c = shift(2, k=4)
`)
	got, _, err := in.Eval(stmts[2], nil)
	require.NoError(t, err)
	assert.Equal(t, New(0, 6), got)

	got, _, err = in.Eval(stmts[3], nil)
	require.NoError(t, err)
	assert.Equal(t, New(2, 6), got, "parameters range over every call site and the default")
}

func TestEvalMasksCalls(t *testing.T) {
	in, stmts := interpreter(t, "mu()\nx.exp()\n")
	got, _, err := in.Eval(stmts[0], Valuation{"mu": New(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, New(0, 1), got)

	got, _, err = in.Eval(stmts[1], Valuation{"x": Point(0)})
	require.NoError(t, err)
	assert.Equal(t, Point(1), got)
}

func TestEvalUnknown(t *testing.T) {
	in, stmts := interpreter(t, "a = mystery(1)\nb = q\n")

	got, warnings, err := in.Eval(stmts[0], nil)
	require.NoError(t, err)
	assert.True(t, got.IsTop())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unknown call mystery")

	got, warnings, err = in.Eval(stmts[1], nil)
	require.NoError(t, err)
	assert.True(t, got.IsTop())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unknown symbol q")
}

func TestEvalLoops(t *testing.T) {
	in, stmts := interpreter(t, `
x = 0
while c:
    x = x + 1
y = x
for i in range(2, 10):
    z = i
`)
	got, _, err := in.Eval(stmts[2], nil)
	require.NoError(t, err)
	assert.True(t, got.IsTop(), "loop-carried values are unbounded")

	loop := in.tree.Node(stmts[3])
	got, _, err = in.Eval(in.tree.Node(loop.Body).Elts[0], nil)
	require.NoError(t, err)
	assert.Equal(t, New(2, 9), got)
}

func TestEvalDepthLimit(t *testing.T) {
	in, stmts := interpreter(t, "a = 1\nb = a\nc = b\nd = c\n")
	in.MaxDepth = 2
	got, warnings, err := in.Eval(stmts[3], nil)
	require.NoError(t, err)
	assert.True(t, got.IsTop())
	assert.NotEmpty(t, warnings)
}

func TestEvalZeroDivision(t *testing.T) {
	in, stmts := interpreter(t, "a = 1 / 0\nb = 1 / z\n")
	_, _, err := in.Eval(stmts[0], nil)
	assert.ErrorIs(t, err, ErrZeroDivision)

	got, _, err := in.Eval(stmts[1], Valuation{"z": New(0, 2)})
	require.NoError(t, err)
	assert.Equal(t, Interval{Low: 0.5, High: math.Inf(1)}, got)
}
