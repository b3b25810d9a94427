package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/syntax"
)

const model = `
import pyro
import pyro.distributions as dist

def helper(x):
    return x * 2

def model(data):
    a = pyro.sample("a", dist.Uniform(0., 1.))
    b = helper(a)
    if a > 0.5:
        c = pyro.sample("c", dist.Normal(b, 1.))
    else:
        c = pyro.sample("c", dist.Normal(0., 1.))
    for i in range(3):
        d = pyro.sample("d", dist.Normal(c, 1.))
`

func open(t *testing.T) (*Store, Handle, *Session) {
	t.Helper()
	a, err := ppl.Lookup("pyro")
	require.NoError(t, err)
	store := NewStore(zap.NewNop())
	h, err := store.Open(context.Background(), "model.py", []byte(model), a, Options{})
	require.NoError(t, err)
	s, err := store.Get(h)
	require.NoError(t, err)
	return store, h, s
}

func variable(t *testing.T, s *Session, source string) RandomVariable {
	t.Helper()
	for _, rv := range s.RandomVariables() {
		if rv.Node.SourceText == source {
			return rv
		}
	}
	t.Fatalf("no random variable %q", source)
	return RandomVariable{}
}

func TestStore(t *testing.T) {
	store, h, _ := open(t)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Close(h))
	_, err := store.Get(h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, store.Close(h), ErrUnknownHandle)
	assert.Equal(t, 0, store.Len())
}

func TestModelAndVariables(t *testing.T) {
	_, _, s := open(t)
	m, err := s.Model()
	require.NoError(t, err)
	assert.Equal(t, "model", m.Name)
	assert.Contains(t, m.Node.SourceText, "def model(data):")

	_, err = s.Guide()
	assert.ErrorIs(t, err, ppl.ErrNoModel)

	rvs := s.RandomVariables()
	require.Len(t, rvs, 4)
	for _, rv := range rvs {
		assert.True(t, m.Node.Contains(rv.Node))
	}
	a := rvs[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, `"a"`, a.AddressNode.SourceText)
	assert.Equal(t, "Uniform", a.Distribution.Name)
	require.Len(t, a.Distribution.Params, 2)
	assert.Equal(t, "a", a.Distribution.Params[0].Name)
	assert.Equal(t, "0.", a.Distribution.Params[0].Node.SourceText)
}

func TestDataDependencies(t *testing.T) {
	_, _, s := open(t)
	c := variable(t, s, `c = pyro.sample("c", dist.Normal(b, 1.))`)
	deps, err := s.DataDependencies(c.Node)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "b = helper(a)", deps[0].SourceText)

	_, err = s.DataDependencies(SyntaxNode{NodeID: "node_999999"})
	assert.ErrorIs(t, err, syntax.ErrUnknownNode)
}

func TestControlParents(t *testing.T) {
	_, _, s := open(t)
	c := variable(t, s, `c = pyro.sample("c", dist.Normal(0., 1.))`)
	cps, err := s.ControlParents(c.Node)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "if", cps[0].Kind)
	assert.Equal(t, "a > 0.5", cps[0].ControlNode.SourceText)
	assert.Len(t, cps[0].Body, 2)
	assert.True(t, cps[0].Body[1].Contains(c.Node))

	d := variable(t, s, `d = pyro.sample("d", dist.Normal(c, 1.))`)
	cps, err = s.ControlParents(d.Node)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "for", cps[0].Kind)
	assert.Equal(t, "range(3)", cps[0].ControlNode.SourceText)
}

func TestEstimateValueRange(t *testing.T) {
	_, _, s := open(t)
	a := variable(t, s, `a = pyro.sample("a", dist.Uniform(0., 1.))`)
	c := variable(t, s, `c = pyro.sample("c", dist.Normal(b, 1.))`)
	loc := c.Distribution.Params[0].Node

	got, err := s.EstimateValueRange(loc, []Assumption{{Node: a.Node, Interval: Interval{Low: "0", High: "1"}}})
	require.NoError(t, err)
	assert.Equal(t, Interval{Low: "0", High: "2"}, got)

	got, err = s.EstimateValueRange(loc, nil)
	require.NoError(t, err)
	assert.Equal(t, Interval{Low: "-inf", High: "inf"}, got)

	_, err = s.EstimateValueRange(loc, []Assumption{{Node: a.Node, Interval: Interval{Low: "x", High: "1"}}})
	assert.Error(t, err)
}

func TestCallGraph(t *testing.T) {
	_, _, s := open(t)
	m, err := s.Model()
	require.NoError(t, err)
	cg, err := s.CallGraph(m.Node)
	require.NoError(t, err)
	require.Len(t, cg, 2)

	byCaller := map[string][]SyntaxNode{}
	for _, n := range cg {
		byCaller[n.Caller.NodeID] = n.Called
	}
	require.Len(t, byCaller[m.Node.NodeID], 1)
	assert.Contains(t, byCaller[m.Node.NodeID][0].SourceText, "def helper(x):")
}

func TestPathConditions(t *testing.T) {
	_, _, s := open(t)
	m, err := s.Model()
	require.NoError(t, err)
	a := variable(t, s, `a = pyro.sample("a", dist.Uniform(0., 1.))`)
	c1 := variable(t, s, `c = pyro.sample("c", dist.Normal(b, 1.))`)
	c2 := variable(t, s, `c = pyro.sample("c", dist.Normal(0., 1.))`)

	pcs, err := s.PathConditions(m.Node, []SyntaxNode{c1.Node, c2.Node, a.Node},
		[]SymbolAssumption{{Node: a.Node, Expr: SymbolicExpression{Expr: "Real(a)"}}})
	require.NoError(t, err)
	require.Len(t, pcs, 3)
	assert.Equal(t, ">(Real(a),Constant(0.5))", pcs[0].Expr)
	assert.Equal(t, "!(>(Real(a),Constant(0.5)))", pcs[1].Expr)
	assert.Equal(t, "Constant(True)", pcs[2].Expr)

	_, err = s.PathConditions(m.Node, nil, []SymbolAssumption{{Node: a.Node, Expr: SymbolicExpression{Expr: "Real(a"}}})
	assert.Error(t, err)
}

func TestWireJSON(t *testing.T) {
	_, _, s := open(t)
	rv := s.RandomVariables()[0]
	data, err := json.Marshal(rv)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, k := range []string{"node", "name", "address_node", "distribution", "is_observed"} {
		assert.Contains(t, fields, k)
	}
	node := fields["node"].(map[string]any)
	assert.Contains(t, node, "node_id")
	assert.Contains(t, node, "first_byte")
}
