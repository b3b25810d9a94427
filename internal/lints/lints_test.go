package lints

import (
	"bytes"
	"context"
	"fmt"
	"math/bits"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/smt"
	"github.com/gnoverse/pplint/internal/symbolic"
	"github.com/gnoverse/pplint/internal/syntax"
)

func build(t *testing.T, framework, src string) *session.Session {
	t.Helper()
	a, err := ppl.Lookup(framework)
	require.NoError(t, err)
	s, err := session.Build(context.Background(), "model.py", []byte(src), a, session.Options{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func ofKind(findings []Finding, kind string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func names(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Name
	}
	return out
}

func edgeNames(g *ModelGraph) [][2]string {
	var out [][2]string
	for _, e := range g.Edges {
		out = append(out, [2]string{g.Variables[e.From].Name, g.Variables[e.To].Name})
	}
	return out
}

func TestModelGraph(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		variables int
		edges     [][2]string
	}{
		{
			name: "chain",
			src: `
import pyro

def model():
    A = pyro.sample("A", dist.Normal(0., 1.))
    B = pyro.sample("B", dist.Normal(A, 1.))
    C = pyro.sample("C", dist.Normal(A + B, 1.))
`,
			variables: 3,
			edges:     [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}},
		},
		{
			name: "branch through intermediate",
			src: `
import pyro

def model():
    A = pyro.sample("A", dist.Bernoulli(0.5))
    B = pyro.sample("B", dist.Normal(0., 1.))
    if A:
        mu = B
    else:
        mu = -B

    C = pyro.sample("C", dist.Normal(mu, 1.))
`,
			variables: 3,
			edges:     [][2]string{{"B", "C"}, {"A", "C"}},
		},
		{
			name: "submodel",
			src: `
import pyro

def submodel():
    A = pyro.sample("A", dist.Normal(0., 1.))
    B = pyro.sample("B", dist.Normal(A, 1.))
    return B

def model():
    B = submodel()
    C = pyro.sample("C", dist.Normal(B, 1.))
`,
			variables: 3,
			edges:     [][2]string{{"A", "B"}, {"B", "C"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildModelGraph(build(t, "pyro", tt.src))
			require.NoError(t, err)
			assert.Len(t, g.Variables, tt.variables)
			assert.ElementsMatch(t, tt.edges, edgeNames(g))
		})
	}
}

func TestModelGraphMergeByName(t *testing.T) {
	g, err := BuildModelGraph(build(t, "pyro", `
import pyro

def model():
    A = pyro.sample("A", dist.Bernoulli(0.5))
    B = pyro.sample("B", dist.Normal(0., 1.))
    if A:
        C = pyro.sample("C", dist.Normal(B, 1.))
    else:
        C = pyro.sample("C", dist.Normal(-B, 1.))
`))
	require.NoError(t, err)
	assert.Len(t, g.Variables, 4)
	assert.Len(t, g.Edges, 4)

	g.MergeByName()
	assert.Len(t, g.Variables, 3)
	assert.Len(t, g.Order, 3)
	assert.ElementsMatch(t, [][2]string{{"A", "C"}, {"B", "C"}}, edgeNames(g))
	assert.Len(t, g.Global.Variables, 3)
}

func TestModelGraphPlates(t *testing.T) {
	s := build(t, "pyro", `
import pyro

def model(data):
    mu = pyro.sample("mu", dist.Normal(0., 1.))
    for i in range(3):
        for j in range(2):
            y = pyro.sample("y", dist.Normal(mu, 1.), obs=data)
`)
	g, err := BuildModelGraph(s)
	require.NoError(t, err)

	require.Len(t, g.Global.Variables, 1)
	assert.Equal(t, "mu", g.Variables[g.Global.Variables[0]].Name)
	require.Len(t, g.Global.Plates, 1)
	outer := g.Global.Plates[0]
	assert.Empty(t, outer.Variables)
	require.Len(t, outer.Plates, 1)
	inner := outer.Plates[0]
	require.Len(t, inner.Variables, 1)
	assert.Equal(t, "y", g.Variables[inner.Variables[0]].Name)

	p, ok := g.Plate(inner.Loop)
	assert.True(t, ok)
	assert.Same(t, inner, p)

	var buf bytes.Buffer
	g.PrintDot(&buf, s.Syntax())
	dot := buf.String()
	assert.Contains(t, dot, "digraph model {")
	assert.Contains(t, dot, `label="i in range(3)";`)
	assert.Contains(t, dot, `label="j in range(2)";`)
	assert.Contains(t, dot, `fillcolor="gray"`)
	assert.Contains(t, dot, "->")
}

func TestVerifyConstraints(t *testing.T) {
	t.Run("bernoulli probability", func(t *testing.T) {
		findings, err := VerifyConstraints(build(t, "pyro", `
import pyro

def model():
    p = pyro.sample("p", dist.Normal(0., 1.))
    B1 = pyro.sample("B1", dist.Bernoulli(p))
    B2 = pyro.sample("B2", dist.Bernoulli(1/(1 + p.exp())))
`))
		require.NoError(t, err)
		got := names(findings)
		assert.Contains(t, got, "B1")
		assert.NotContains(t, got, "B2")

		require.NotEmpty(t, findings)
		assert.Equal(t, "ConstraintViolation", findings[0].Kind)
		assert.Equal(t, "Parameter p of Bernoulli distribution has constraint [0, 1], but values are estimated to be in [-inf, inf].", findings[0].Message)
	})

	t.Run("joined branches", func(t *testing.T) {
		findings, err := VerifyConstraints(build(t, "pyro", `
import pyro

def model():
    A = pyro.sample("A", dist.Normal(0., 1.))
    B = pyro.sample("B", dist.Gamma(2., 2.))
    C = pyro.sample("C", dist.Bernoulli(2.))

    if C:
        s1 = A**2
        s2 = A
    else:
        s1 = B
        s2 = s1

    D = pyro.sample("D", dist.Normal(0., s1))
    E = pyro.sample("E", dist.Normal(0., s2))
`))
		require.NoError(t, err)
		got := names(findings)
		assert.Contains(t, got, "C")
		assert.Contains(t, got, "E")
		assert.NotContains(t, got, "A")
		assert.NotContains(t, got, "B")
		assert.NotContains(t, got, "D")
	})

	t.Run("function style definitions", func(t *testing.T) {
		findings, err := VerifyConstraints(build(t, "beanmachine", `
import beanmachine.ppl as bm

@bm.random_variable
def p():
    return dist.Normal(0., 1.)

@bm.random_variable
def B1():
    return dist.Bernoulli(p())
`))
		require.NoError(t, err)
		assert.Contains(t, names(findings), "B1()")
	})

	t.Run("clean", func(t *testing.T) {
		findings, err := VerifyConstraints(build(t, "pyro", `
import pyro

def model():
    p = pyro.sample("p", dist.Beta(1., 1.))
    n = pyro.sample("n", dist.Binomial(10, p))
`))
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}

func TestCheckHMC(t *testing.T) {
	t.Run("stochastic branch", func(t *testing.T) {
		findings, err := CheckHMC(build(t, "pyro", `
import pyro

def model():
    B = pyro.sample("B", dist.Bernoulli(0.5))
    if B:
        X = pyro.sample("X", dist.Normal(1., 1.))
        Y = pyro.sample("Y", dist.Normal(1., 1.))
    else:
        X = pyro.sample("X", dist.Normal(-1., 1.))
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"X"}, names(ofKind(findings, "MultipleDefinitionsWarning")))
		assert.Equal(t, []string{"B"}, names(ofKind(findings, "ContinuousDistributionViolation")))
		assert.Len(t, ofKind(findings, "RandomControlDependentWarning"), 3)

		missing := ofKind(findings, "MissingInBranchWarning")
		require.Len(t, missing, 1)
		assert.Equal(t, "Y", missing[0].Name)
		assert.Contains(t, missing[0].Message, "else branch")
	})

	t.Run("while loop", func(t *testing.T) {
		findings, err := CheckHMC(build(t, "pyro", `
import pyro

def model():
    i = 1
    while True:
        U = pyro.sample("U", dist.Uniform(0.,1.))
        if U < 0.5:
            break
        i = i + 1
    return i
`))
		require.NoError(t, err)
		assert.Contains(t, names(ofKind(findings, "DefinitionInWhileLoopWarning")), "U")
	})

	t.Run("stochastic loop range", func(t *testing.T) {
		findings, err := CheckHMC(build(t, "pyro", `
import pyro

def model():
    P = pyro.sample("P", dist.Poisson(3.))
    for i in range(P):
        U = pyro.sample(f"U{i}", dist.Uniform(0.,1.))
`))
		require.NoError(t, err)
		assert.Len(t, ofKind(findings, "StochasticForLoopRangeWarning"), 1)
	})

	t.Run("recursive call", func(t *testing.T) {
		findings, err := CheckHMC(build(t, "pyro", `
import pyro
def A():
    AA()
    return 'A'
def P():
    P = pyro.sample("P", dist.Bernoulli(1.))
    return P
def AA():
    if P():
        return A()
    else:
        return 'AA'

def B():
    return A()

def C():
    def D():
        return B()
    def E():
        return D()
    return E()

def F():
    return C()

def model():
    C()
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"P"}, names(ofKind(findings, "SampleInRecursiveCallWarning")))
	})

	t.Run("continuous static model", func(t *testing.T) {
		findings, err := CheckHMC(build(t, "pyro", `
import pyro

def model():
    mu = pyro.sample("mu", dist.Normal(0., 1.))
    for i in range(3):
        y = pyro.sample("y", dist.Normal(mu, 1.))
`))
		require.NoError(t, err)
		assert.Empty(t, ofKind(findings, "StochasticForLoopRangeWarning"))
		assert.Empty(t, ofKind(findings, "ContinuousDistributionViolation"))
		assert.Empty(t, ofKind(findings, "RandomControlDependentWarning"))
	})
}

func TestValidateGuide(t *testing.T) {
	s := build(t, "pyro", `
import pyro
import pyro.distributions as dist

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
        pyro.sample('D', dist.Normal(0., 2.))
        pyro.sample('E', dist.Normal(0., 1.))


def guide(I: bool):
    if I:
        A = pyro.sample('A', dist.Bernoulli(0.9))
    else:
        A = pyro.sample('A', dist.Bernoulli(0.1))

    B = pyro.sample('B', dist.Gamma(1, 1))

    if B > 1 and I:
        pyro.sample('C', dist.Uniform(0, 1))
    else:
        pyro.sample('D', dist.Normal(0., 1.))
        pyro.sample('E', dist.Normal(0., 1.))
`)
	findings, err := ValidateGuide(context.Background(), s, smt.New())
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, names(ofKind(findings, "OverlappingSampleStatements")))
	assert.ElementsMatch(t, []string{"B", "D", "E"}, names(ofKind(findings, "AbsoluteContinuityViolation")))
	assert.Contains(t, names(ofKind(findings, "SupportIntervalMismatch")), "B")
	assert.Empty(t, ofKind(findings, "SupportTypeMismatch"))
	assert.Empty(t, ofKind(findings, "UnknownAbsoluteContinuity"))

	for _, f := range ofKind(findings, "AbsoluteContinuityViolation") {
		assert.Contains(t, f.Note, "Counterexample: [")
	}
}

func TestValidateGuideDisjointSupports(t *testing.T) {
	s := build(t, "pyro", `
import pyro
import pyro.distributions as dist

def model():
    x = pyro.sample("x", dist.Beta(1., 1.))
    x = pyro.sample("x", dist.Uniform(2., 3.))
    y = pyro.sample("y", dist.Beta(1., 1.))
    y = pyro.sample("y", dist.Uniform(0.5, 3.))

def guide():
    x = pyro.sample("x", dist.Uniform(0., 3.))
    y = pyro.sample("y", dist.Uniform(0., 3.))
`)
	findings, err := ValidateGuide(context.Background(), s, smt.New())
	require.NoError(t, err)

	// same path, but the supports of x do not intersect
	assert.Equal(t, []string{"y"}, names(ofKind(findings, "OverlappingSampleStatements")))
}

func TestValidateGuideSupports(t *testing.T) {
	const program = `
import pyro

def model():
    x = pyro.sample("x", dist.%s(1., 1.))

def guide():
    x = pyro.sample("x", dist.%s(1., 1.))
`
	tests := []struct {
		name         string
		model, guide string
		violation    bool
	}{
		{"beta model, gamma guide", "Beta", "Gamma", false},
		{"gamma model, beta guide", "Gamma", "Beta", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fmt.Sprintf(program, tt.model, tt.guide)
			findings, err := ValidateGuide(context.Background(), build(t, "pyro", src), smt.New())
			require.NoError(t, err)
			ac := ofKind(findings, "AbsoluteContinuityViolation")
			if tt.violation {
				assert.Len(t, ac, 1)
				assert.NotEmpty(t, ofKind(findings, "SupportIntervalMismatch"))
			} else {
				assert.Empty(t, findings)
			}
		})
	}
}

func TestValidateGuideMissing(t *testing.T) {
	findings, err := ValidateGuide(context.Background(), build(t, "pyro", `
import pyro

def model(data):
    mu = pyro.sample("mu", dist.Normal(0., 1.))
    sigma = pyro.sample("sigma", dist.HalfNormal(1.))
    y = pyro.sample("y", dist.Normal(mu, sigma), obs=data)

def guide(data):
    mu = pyro.sample("mu", dist.Normal(0., 1.))
`), smt.New())
	require.NoError(t, err)
	ac := ofKind(findings, "AbsoluteContinuityViolation")
	require.Len(t, ac, 1)
	assert.Equal(t, "sigma", ac[0].Name)
	assert.Equal(t, "No sample statement in guide.", ac[0].Note)
}

func TestValidateGuideWithoutGuide(t *testing.T) {
	_, err := ValidateGuide(context.Background(), build(t, "pyro", `
import pyro

def model():
    mu = pyro.sample("mu", dist.Normal(0., 1.))
`), smt.New())
	assert.ErrorIs(t, err, ppl.ErrNoModel)
}

func TestValidateGuideTypedParameters(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		violation bool
	}{
		{
			name: "int parameter",
			src: `
import pyro

def model(n: int):
    if n > 0:
        x = pyro.sample("x", dist.Normal(0., 1.))

def guide(n: int):
    if n >= 1:
        x = pyro.sample("x", dist.Normal(0., 1.))
`,
		},
		{
			name: "real parameter",
			src: `
import pyro

def model(n: float):
    if n > 0:
        x = pyro.sample("x", dist.Normal(0., 1.))

def guide(n: float):
    if n >= 1:
        x = pyro.sample("x", dist.Normal(0., 1.))
`,
			violation: true,
		},
		{
			name: "bool parameter",
			src: `
import pyro

def model(a: bool):
    if a:
        x = pyro.sample("x", dist.Normal(0., 1.))
    else:
        x = pyro.sample("x", dist.Normal(1., 1.))

def guide(a: bool):
    if a:
        x = pyro.sample("x", dist.Normal(0., 1.))
`,
			violation: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := ValidateGuide(context.Background(), build(t, "pyro", tt.src), smt.New())
			require.NoError(t, err)
			assert.Empty(t, ofKind(findings, "UnknownAbsoluteContinuity"))
			assert.Empty(t, ofKind(findings, "OverlappingSampleStatements"))
			ac := ofKind(findings, "AbsoluteContinuityViolation")
			if tt.violation {
				require.Len(t, ac, 1)
				assert.Contains(t, ac[0].Note, "Counterexample: [")
			} else {
				assert.Empty(t, ac)
			}
		})
	}
}

func TestGuideConditionsOverBoolParameter(t *testing.T) {
	s := build(t, "pyro", `
import pyro

def model(a: bool):
    if a:
        x = pyro.sample("x", dist.Normal(0., 1.))

def guide(a: bool):
    x = pyro.sample("x", dist.Normal(0., 1.))
`)
	m, err := s.FindModel()
	require.NoError(t, err)
	rvs := s.VariablesIn(m.Node)
	require.Len(t, rvs, 1)

	pcs, err := s.Conditions(m.Node, []syntax.NodeID{rvs[0].Node}, nil)
	require.NoError(t, err)
	assert.Contains(t, symbolic.Symbols(pcs[rvs[0].Node]), symbolic.Symbol{Name: "a", Type: symbolic.Bool})

	findings, err := ValidateGuide(context.Background(), s, smt.New())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidateGuidePathLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("import pyro\n\ndef model(n: float):\n")
	// every if doubles the number of paths
	for i := 0; i <= bits.Len(symbolic.DefaultMaxPaths); i++ {
		fmt.Fprintf(&b, "    if n > %d:\n        y = %d\n", i, i)
	}
	b.WriteString("    x = pyro.sample(\"x\", dist.Normal(0., 1.))\n\n")
	b.WriteString("def guide(n: float):\n    x = pyro.sample(\"x\", dist.Normal(0., 1.))\n")

	findings, err := ValidateGuide(context.Background(), build(t, "pyro", b.String()), smt.New())
	require.NoError(t, err)
	unknown := ofKind(findings, "UnknownAbsoluteContinuity")
	require.Len(t, unknown, 1)
	assert.Equal(t, "x", unknown[0].Name)
	assert.Equal(t, symbolic.ErrPathLimit.Error(), unknown[0].Note)
	assert.Empty(t, ofKind(findings, "AbsoluteContinuityViolation"))
}
