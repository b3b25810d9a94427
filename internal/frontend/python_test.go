package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return tree
}

func stmts(tree *syntax.Tree, block syntax.NodeID) []syntax.NodeID {
	return tree.Node(block).Elts
}

func TestParseAssignments(t *testing.T) {
	tree := parse(t, `
import pymc as pm
x = 1
a = b = x + 2.5
c, d = f(x, scale=2)
x += 1
`)
	body := stmts(tree, tree.Node(tree.Root).Body)
	require.Len(t, body, 5)

	assert.Equal(t, syntax.KindImport, tree.Kind(body[0]))

	x := tree.Node(body[1])
	assert.Equal(t, syntax.KindAssign, x.Kind)
	assert.Equal(t, "x", tree.Node(x.Target).Name)
	assert.Equal(t, "1", tree.Node(x.Value).Literal)
	assert.Equal(t, syntax.Position{Line: 3, Column: 1}, x.Span.Start)

	chained := tree.Node(body[2])
	assert.Equal(t, syntax.NoNode, chained.Target)
	require.Len(t, chained.Elts, 2)
	assert.Equal(t, "a", tree.Node(chained.Elts[0]).Name)
	assert.Equal(t, "b", tree.Node(chained.Elts[1]).Name)

	tuple := tree.Node(body[3])
	assert.Equal(t, syntax.KindTuple, tree.Kind(tuple.Target))
	call := tree.Node(tuple.Value)
	assert.Equal(t, syntax.KindCall, call.Kind)
	assert.Len(t, call.Elts, 1)
	assert.Len(t, call.Keywords, 1)

	aug := tree.Node(body[4])
	assert.Equal(t, "x = (x + 1)", tree.Unparse(body[4]))
	assert.Equal(t, syntax.OpAdd, tree.Node(aug.Value).Op)
}

func TestParseControlFlow(t *testing.T) {
	tree := parse(t, `
def model(n: int, flag: bool = True):
    total = 0
    for i in range(n):
        if i < 2:
            total = total + i
        elif i == 3:
            continue
        else:
            break
    while total > 0:
        total = total - 1
    return total
`)
	body := stmts(tree, tree.Node(tree.Root).Body)
	require.Len(t, body, 1)
	def := tree.Node(body[0])
	require.Equal(t, syntax.KindFunctionDef, def.Kind)
	assert.Equal(t, "model", def.Name)
	require.Len(t, def.Elts, 2)
	assert.Equal(t, "int", tree.Node(tree.Node(def.Elts[0]).Annotation).Name)
	assert.True(t, tree.Node(def.Elts[1]).Default.Valid())

	fbody := stmts(tree, def.Body)
	require.Len(t, fbody, 4)
	loop := tree.Node(fbody[1])
	assert.Equal(t, syntax.KindFor, loop.Kind)
	ifs := tree.Node(stmts(tree, loop.Body)[0])
	require.Equal(t, syntax.KindIf, ifs.Kind)
	elif := stmts(tree, ifs.Else)
	require.Len(t, elif, 1)
	nested := tree.Node(elif[0])
	assert.Equal(t, syntax.KindIf, nested.Kind)
	assert.Equal(t, syntax.KindContinue, tree.Kind(stmts(tree, nested.Body)[0]))
	assert.Equal(t, syntax.KindBreak, tree.Kind(stmts(tree, nested.Else)[0]))
	assert.Equal(t, syntax.KindWhile, tree.Kind(fbody[2]))
	assert.Equal(t, syntax.KindReturn, tree.Kind(fbody[3]))
}

func TestParseWithAndStrings(t *testing.T) {
	tree := parse(t, `
with pm.Model() as model:
    mu = pm.Normal("mu", 0, 1)
    y = pm.Normal(f"y_{mu}", mu, 1, observed=data)
`)
	body := stmts(tree, tree.Node(tree.Root).Body)
	require.Len(t, body, 1)
	w := tree.Node(body[0])
	require.Equal(t, syntax.KindWith, w.Kind)
	assert.Equal(t, "model", tree.Node(w.Target).Name)
	assert.Equal(t, "pm.Model", tree.CallName(w.Value))

	inner := stmts(tree, w.Body)
	require.Len(t, inner, 2)
	mu := tree.Node(tree.Node(inner[0]).Value)
	assert.Equal(t, "mu", tree.Node(mu.Elts[0]).Literal)

	y := tree.Node(tree.Node(inner[1]).Value)
	name := tree.Node(y.Elts[0])
	assert.Equal(t, syntax.KindOpaque, name.Kind)
	require.Len(t, name.Elts, 1)
	assert.Equal(t, "mu", tree.Node(name.Elts[0]).Name)
	assert.True(t, tree.Keyword(tree.Node(inner[1]).Value, "observed").Valid())
}

func TestParseComparisonChain(t *testing.T) {
	tree := parse(t, "z = 0 < x <= 1\n")
	asg := tree.Node(stmts(tree, tree.Node(tree.Root).Body)[0])
	chain := tree.Node(asg.Value)
	require.Equal(t, syntax.KindBoolOp, chain.Kind)
	assert.Equal(t, syntax.OpAnd, chain.Op)
	require.Len(t, chain.Elts, 2)
	assert.Equal(t, syntax.OpLt, tree.Node(chain.Elts[0]).Op)
	assert.Equal(t, syntax.OpLtE, tree.Node(chain.Elts[1]).Op)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(context.Background(), "bad.py", []byte("def f(:\n  pass\n"))
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = Parse(context.Background(), "cls.py", []byte("class A:\n    pass\n"))
	assert.ErrorIs(t, err, syntax.ErrUnsupported)
}
