package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/ppl"
	tt "github.com/gnoverse/pplint/internal/types"
)

// createTempDir creates a temporary directory and returns its path.
// It also registers a cleanup function to remove the directory after the test.
func createTempDir(t testing.TB, prefix string) string {
	tempDir, err := os.MkdirTemp("", prefix)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return tempDir
}

const discreteModel = `import pyro

def model():
    A = pyro.sample("A", dist.Normal(0., 1.))
    C = pyro.sample("C", dist.Bernoulli(A))
    return C
`

func rulesOfIssues(issues []tt.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Rule
	}
	return out
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(zap.NewNop(), EngineOptions{})
	require.NoError(t, err)
	assert.Len(t, engine.rules, len(allRuleConstructors))
	assert.Equal(t, tt.SeverityError, engine.Rules()["constraint-parameter"])

	_, err = NewEngine(nil, EngineOptions{PPL: "stan"})
	assert.ErrorIs(t, err, ppl.ErrUnknownPPL)
}

func TestEngine_IgnoreRule(t *testing.T) {
	t.Parallel()
	engine := &Engine{}
	engine.IgnoreRule("test_rule")

	assert.True(t, engine.ignoredRules["test_rule"])
}

func TestEngine_RunSource(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(zap.NewNop(), EngineOptions{})
	require.NoError(t, err)

	issues, err := engine.RunSource(context.Background(), "model.py", []byte(discreteModel))
	require.NoError(t, err)

	rules := rulesOfIssues(issues)
	assert.Contains(t, rules, "constraint-parameter")
	assert.Contains(t, rules, "hmc-discrete-distribution")
	assert.NotContains(t, rules, "guide-absolute-continuity")

	for i := 1; i < len(issues); i++ {
		assert.LessOrEqual(t, issues[i-1].Start.Line, issues[i].Start.Line)
	}
	for _, issue := range issues {
		assert.Equal(t, "model.py", issue.Filename)
		if issue.Rule == "constraint-parameter" {
			assert.Equal(t, 5, issue.Start.Line)
			assert.Equal(t, "constraints", issue.Category)
			assert.Equal(t, tt.SeverityError, issue.Severity)
		}
	}
}

func TestEngine_Severities(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(zap.NewNop(), EngineOptions{
		PPL: "pyro",
		Rules: map[string]tt.ConfigRule{
			"constraint-parameter":      {Severity: tt.SeverityOff},
			"hmc-discrete-distribution": {Severity: tt.SeverityError},
			"no-such-rule":              {Severity: tt.SeverityError},
		},
	})
	require.NoError(t, err)

	issues, err := engine.RunSource(context.Background(), "model.py", []byte(discreteModel))
	require.NoError(t, err)
	assert.NotContains(t, rulesOfIssues(issues), "constraint-parameter")
	for _, issue := range issues {
		if issue.Rule == "hmc-discrete-distribution" {
			assert.Equal(t, tt.SeverityError, issue.Severity)
		}
	}
}

func TestEngine_Nolint(t *testing.T) {
	t.Parallel()
	src := `import pyro

def model():
    A = pyro.sample("A", dist.Normal(0., 1.))
    C = pyro.sample("C", dist.Bernoulli(A))  # nolint:constraint-parameter
    return C
`
	engine, err := NewEngine(zap.NewNop(), EngineOptions{})
	require.NoError(t, err)

	issues, err := engine.RunSource(context.Background(), "model.py", []byte(src))
	require.NoError(t, err)
	rules := rulesOfIssues(issues)
	assert.NotContains(t, rules, "constraint-parameter")
	assert.Contains(t, rules, "hmc-discrete-distribution")
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()
	tempDir := createTempDir(t, "engine_test")
	path := filepath.Join(tempDir, "model.py")
	require.NoError(t, os.WriteFile(path, []byte(discreteModel), 0o644))

	engine, err := NewEngine(zap.NewNop(), EngineOptions{})
	require.NoError(t, err)

	issues, err := engine.Run(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, path, issues[0].Filename)

	_, err = engine.Run(context.Background(), filepath.Join(tempDir, "missing.py"))
	assert.Error(t, err)

	_, err = engine.RunSource(context.Background(), "plain.py", []byte("x = 1\n"))
	assert.ErrorIs(t, err, ppl.ErrUnknownPPL)
}
