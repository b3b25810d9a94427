package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/syntax"
)

const program = `
x = 1
def f(a):
    y = a + x
    w = y
    return y
def g():
    x = 2
    return x
z = f(x)
`

func build(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return Build(tree)
}

func TestAssignmentsAreOrdered(t *testing.T) {
	st := build(t, program)
	var names []string
	for i, a := range st.Assignments {
		assert.Equal(t, i, a.Seq)
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"x", "y", "w", "x", "z"}, names)

	require.Len(t, st.Functions, 2)
	assert.Equal(t, "f", st.Functions[0].Name)
	assert.Equal(t, st.Root, st.Functions[0].Scope)
	assert.Len(t, st.Functions[0].Params, 1)

	for _, s := range []string{"x", "y", "w", "z", "a", "f", "g"} {
		assert.True(t, st.UserSymbols[s], s)
	}
}

func TestResolution(t *testing.T) {
	st := build(t, program)
	globalX := st.Assignments[0]
	localX := st.Assignments[3]
	assert.Equal(t, st.Root, globalX.Scope)
	assert.Equal(t, st.Functions[1].Node, localX.Scope)
	assert.False(t, st.SameVariable(globalX.Node, localX.Node))

	y := st.Assignments[1]
	reads := st.Reads(y.Value)
	require.Len(t, reads, 2)
	assert.Equal(t, "a", st.Node(reads[0]).Name)
	assert.Equal(t, st.Functions[0].Node, st.Resolve(reads[0]))
	assert.True(t, st.SameVariable(reads[0], st.Functions[0].Params[0]))
	assert.True(t, st.SameVariable(reads[1], globalX.Node))

	z := st.Assignments[4]
	fn, ok := st.Callee(z.Value)
	require.True(t, ok)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, []syntax.NodeID{z.Value}, st.Calls(fn.Node))
	assert.Len(t, st.Definitions("x", st.Root), 1)
}

func TestIndexedWriteDefinesContainer(t *testing.T) {
	st := build(t, "y = [0, 0]\ny[1] = x\n")
	require.Len(t, st.Assignments, 2)
	w := st.Assignments[1]
	assert.Equal(t, "y", w.Name)
	reads := st.Reads(w.Node)
	var names []string
	for _, r := range reads {
		names = append(names, st.Node(r).Name)
	}
	assert.Equal(t, []string{"y"}, names)
}
