package nolint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoverse/pplint/internal/frontend"
)

func parse(t *testing.T, src string) *Manager {
	t.Helper()
	tree, err := frontend.Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return ParseComments(tree)
}

func TestParseNolintRules(t *testing.T) {
	t.Parallel()
	result := parseIgnoreRuleNames("rule1, rule2,rule3")
	assert.Len(t, result, 3)
	for _, rule := range []string{"rule1", "rule2", "rule3"} {
		assert.Contains(t, result, rule)
	}
	assert.Empty(t, parseIgnoreRuleNames(""))
}

func TestFileHeaderComment(t *testing.T) {
	t.Parallel()
	manager := parse(t, `# nolint:hmc-while-loop
import pyro

def model():
    x = 1
`)
	assert.True(t, manager.IsNolint(5, "hmc-while-loop"))
	assert.False(t, manager.IsNolint(5, "constraint-parameter"))
}

func TestIsNolint(t *testing.T) {
	t.Parallel()
	manager := parse(t, `import pyro

def model():
    # nolint
    a = 1
    b = 2
    c = 3  # nolint:rule1
    # nolint:rule2
    d = 4
    s = "# nolint"
    t = '''
    # nolint
    '''
    u = 5
`)

	tests := []struct {
		line     int
		rule     string
		expected bool
	}{
		{5, "anyrule", true},
		{6, "anyrule", false},
		{7, "rule1", true},
		{7, "rule2", false},
		{9, "rule2", true},
		{9, "rule1", false},
		{10, "anyrule", false},
		{14, "anyrule", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, manager.IsNolint(tt.line, tt.rule), "line %d rule %s", tt.line, tt.rule)
	}
}

func TestStandaloneCommentCoversCompoundStatement(t *testing.T) {
	t.Parallel()
	manager := parse(t, `import pyro

def model():
    x = 1
    # nolint:hmc-random-control
    if x > 0:
        y = 2
    z = 3
`)
	assert.True(t, manager.IsNolint(6, "hmc-random-control"))
	assert.True(t, manager.IsNolint(7, "hmc-random-control"))
	assert.False(t, manager.IsNolint(8, "hmc-random-control"))
}

func TestInvalidComments(t *testing.T) {
	t.Parallel()
	manager := parse(t, `import pyro
x = 1  # nolintfoo
y = 2  # nolint:
z = 3  # not nolint
`)
	for line := 1; line <= 4; line++ {
		assert.False(t, manager.IsNolint(line, "rule"), "line %d", line)
	}
}
