package cfg

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "src.py", []byte(src))
	require.NoError(t, err)
	p, err := Build(scope.Build(tree))
	require.NoError(t, err)
	return p
}

func kinds(g *Graph) []Kind {
	out := make([]Kind, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Kind
	}
	return out
}

func TestCFG(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		function string
		expected []Kind
	}{
		{
			name: "MultiStatement",
			src: `
x = 1
if x > 0:
    x = 2
else:
    x = 3
for i in range(10):
    x = x + i
`,
			expected: []Kind{Start, Assign, Branch, Join, Assign, Assign, Branch, Join, LoopIter, Assign, End},
		},
		{
			name: "Returns",
			src: `
def f(a, b):
    if a:
        return 1
    return b
`,
			function: "f",
			expected: []Kind{FuncStart, FuncArg, FuncArg, FuncJoin, Branch, Join, Return, Return, End},
		},
		{
			name:     "ImplicitReturn",
			src:      "def g():\n    pass\n",
			function: "g",
			expected: []Kind{FuncStart, FuncJoin, Expr, Return, End},
		},
		{
			name: "BreakContinue",
			src: `
while c:
    if d:
        break
    if e:
        continue
    x = 1
`,
			expected: []Kind{Start, Branch, Join, Branch, Join, Break, Branch, Join, Continue, Assign, End},
		},
		{
			name: "UnreachableTail",
			src: `
def h():
    return 1
    x = 2
`,
			function: "h",
			expected: []Kind{FuncStart, FuncJoin, Return, End},
		},
		{
			name:     "Empty",
			src:      "def k():\n    pass\n",
			expected: []Kind{Start, End},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, tt.src)
			g := p.Top
			if tt.function != "" {
				g = nil
				for _, f := range p.Tree.Functions {
					if f.Name == tt.function {
						g = p.Functions[f.Node]
					}
				}
				require.NotNil(t, g)
			}
			assert.Equal(t, tt.expected, kinds(g))
			assert.NoError(t, g.Verify())
		})
	}
}

func TestImplicitReturnMarked(t *testing.T) {
	p := build(t, "def g(a):\n    if a:\n        return 1\n")
	g := p.Functions[p.Tree.Functions[0].Node]
	var implicit []*Node
	for _, n := range g.Nodes {
		if n.Kind == Return && n.Implicit {
			implicit = append(implicit, n)
		}
	}
	require.Len(t, implicit, 1)
	assert.Equal(t, Join, implicit[0].Parents[0].Kind)
	assert.Equal(t, FuncJoin, implicit[0].Children[0].Kind)
}

func TestJumpOutsideTarget(t *testing.T) {
	tree, err := frontend.Parse(context.Background(), "src.py", []byte("x = 1\nbreak\n"))
	require.NoError(t, err)
	_, err = Build(scope.Build(tree))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestVerifyRejects(t *testing.T) {
	newGraph := func() (*Graph, func(Kind) *Node) {
		g := &Graph{Root: syntax.NoNode}
		add := func(k Kind) *Node {
			n := &Node{ID: len(g.Nodes), Kind: k, Syntax: syntax.NoNode}
			g.Nodes = append(g.Nodes, n)
			return n
		}
		return g, add
	}

	t.Run("Interleaved", func(t *testing.T) {
		g, add := newGraph()
		g.Start = add(Start)
		b1, b2, j1, j2 := add(Branch), add(Branch), add(Join), add(Join)
		b1.Pair, j1.Pair, b2.Pair, j2.Pair = j1, b1, j2, b2
		g.End = add(End)
		link(g.Start, b1)
		link(b1, b2)
		link(b1, j1)
		link(b2, j1)
		link(b2, j2)
		link(j1, j2)
		link(j2, g.End)
		assert.ErrorIs(t, g.Verify(), ErrInvariant)
	})

	t.Run("Asymmetric", func(t *testing.T) {
		g, add := newGraph()
		g.Start = add(Start)
		a := add(Assign)
		g.End = add(End)
		link(g.Start, a)
		a.Children = append(a.Children, g.End)
		assert.ErrorIs(t, g.Verify(), ErrInvariant)
	})

	t.Run("TwoParents", func(t *testing.T) {
		g, add := newGraph()
		g.Start = add(Start)
		br, join := add(Branch), add(Join)
		br.Pair, join.Pair = join, br
		a, c := add(Assign), add(Assign)
		g.End = add(End)
		link(g.Start, br)
		link(br, a)
		link(br, c)
		link(a, join)
		link(c, join)
		link(join, g.End)
		assert.NoError(t, g.Verify())

		link(br, g.End)
		assert.ErrorIs(t, g.Verify(), ErrInvariant)
	})
}

func TestLocate(t *testing.T) {
	p := build(t, `
def f(a):
    for i in range(a):
        y = i
    return y
`)
	tr := p.Tree
	f := tr.Functions[0]
	loop := tr.Node(f.Body).Elts[0]
	n := tr.Node(loop)

	assert.Equal(t, FuncArg, p.Locate(f.Params[0]).Kind)
	assert.Equal(t, Branch, p.Locate(n.Iter).Kind)
	assert.Equal(t, LoopIter, p.Locate(n.Target).Kind)
	assert.Same(t, p.LoopIter(loop), p.Locate(n.Target))

	body := tr.Node(n.Body).Elts[0]
	assert.Equal(t, Assign, p.Locate(tr.Node(body).Value).Kind)
	assert.Same(t, p.NodeFor(body), p.Locate(body))
	assert.Same(t, p.Functions[f.Node], p.GraphOf(p.NodeFor(body)))
}

func TestPrintDot(t *testing.T) {
	p := build(t, "x = 1\nif x:\n    y = 2\n")

	var buf bytes.Buffer
	p.Top.PrintDot(&buf, func(n *Node) string {
		if n.Kind == Assign {
			return p.Tree.Source(n.Syntax)
		}
		return ""
	})

	expected := `
digraph mgraph {
	mode="heir";
	splines="ortho";

	"Start 0" -> "Assign 1: x = 1"
	"Assign 1: x = 1" -> "Branch 2"
	"Branch 2" -> "Assign 4: y = 2"
	"Branch 2" -> "Join 3"
	"Join 3" -> "End 5"
	"Assign 4: y = 2" -> "Join 3"
}
`
	assert.Equal(t, normalizeDotOutput(expected), normalizeDotOutput(buf.String()))
}

func normalizeDotOutput(dot string) string {
	lines := strings.Split(dot, "\n")
	var normalized []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, "\n")
}
