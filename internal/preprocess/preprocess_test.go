package preprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/syntax"
)

func run(t *testing.T, src string, opts Options) string {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	Run(tree, opts)
	return tree.Unparse(tree.Root)
}

func isSample(t *syntax.Tree, call syntax.NodeID) bool {
	return t.CallName(call) == "pyro.sample"
}

func TestDesugar(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "chained",
			src:  "a = b = f(1)\n",
			want: "a = f(1); b = a",
		},
		{
			name: "tuple",
			src:  "a, b = v\n",
			want: "__TMP__0 = v; a = __TMP__0[0]; b = __TMP__0[1]",
		},
		{
			name: "loop target",
			src:  "for k, v in items:\n    s = k\n",
			want: "for __TMP__0 in items: k = __TMP__0[0]; v = __TMP__0[1]; s = k",
		},
		{
			name: "fresh name avoids user symbol",
			src:  "__TMP__0 = 1\na, b = v\n",
			want: "__TMP__0 = 1; __TMP__1 = v; a = __TMP__1[0]; b = __TMP__1[1]",
		},
		{
			name: "single target untouched",
			src:  "a = 1\n",
			want: "a = 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, tt.src, Options{}))
		})
	}
}

func TestHoistRandomVariables(t *testing.T) {
	got := run(t, "pyro.sample(\"x\", d)\ny = f(pyro.sample(\"z\", d))\nw = pyro.sample(\"w\", d)\n",
		Options{IsRandomVariableCall: isSample})
	assert.Equal(t,
		`__TMP__0 = pyro.sample("x", d); __TMP__1 = pyro.sample("z", d); y = f(__TMP__1); w = pyro.sample("w", d)`,
		got)
}

func TestUnroll(t *testing.T) {
	src := "for i in range(3):\n    y[i] = i * 2\n"
	assert.Equal(t, "y[0] = (0 * 2); y[1] = (1 * 2); y[2] = (2 * 2); i = 2", run(t, src, Options{Unroll: 3}))
	assert.Equal(t, "for i in range(3): y[i] = (i * 2)", run(t, src, Options{Unroll: 2}))
	assert.Equal(t, "for i in range(3): y[i] = (i * 2)", run(t, src, Options{}))

	assert.Equal(t, "x = 4; x = 2; i = 2",
		run(t, "for i in range(4, 0, -2):\n    x = i\n", Options{Unroll: 5}))

	// the loop variable keeps its last value; an empty range binds nothing
	assert.Equal(t, "y = 0; y = 1; i = 1; z = i",
		run(t, "for i in range(2):\n    y = i\nz = i\n", Options{Unroll: 5}))
	assert.Equal(t, "z = 1",
		run(t, "for i in range(0):\n    y = i\nz = 1\n", Options{Unroll: 5}))

	jumps := "for i in range(2):\n    if c:\n        break\n"
	assert.Equal(t, "for i in range(2): if c: break", run(t, jumps, Options{Unroll: 5}))

	bounded := "for i in range(n):\n    x = i\n"
	assert.Equal(t, "for i in range(n): x = i", run(t, bounded, Options{Unroll: 5}))
}

func TestUniquifyCalls(t *testing.T) {
	src := `
def f(a):
    return a
x = f(1)
y = f(2)
`
	assert.Equal(t,
		"def f_0(a): return a; def f_1(a): return a; x = f_0(1); y = f_1(2)",
		run(t, src, Options{UniquifyCalls: true}))

	single := "def f(a):\n    return a\nx = f(1)\n"
	assert.Equal(t, "def f(a): return a; x = f(1)", run(t, single, Options{UniquifyCalls: true}))

	referenced := "def f(a):\n    return a\nx = f(1)\ny = f(2)\nmodel = f\n"
	assert.Equal(t,
		"def f(a): return a; def f_0(a): return a; def f_1(a): return a; x = f_0(1); y = f_1(2); model = f",
		run(t, referenced, Options{UniquifyCalls: true}))
}
