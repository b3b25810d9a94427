package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	tt "github.com/gnoverse/pplint/internal/types"
)

var modelSource = NewSourceCode([]byte(`import pyro

def model():
    A = pyro.sample("A", dist.Normal(0., 1.))
    C = pyro.sample("C", dist.Bernoulli(A))
`))

func TestGenerateFormattedIssue(t *testing.T) {
	t.Parallel()
	issues := []tt.Issue{
		{
			Rule:       "constraint-parameter",
			Category:   "constraints",
			Filename:   "model.py",
			Start:      tt.Position{Line: 5, Column: 41},
			End:        tt.Position{Line: 5, Column: 42},
			Message:    "Parameter p of Bernoulli distribution has constraint [0, 1], but values are estimated to be in [-inf, inf].",
			Suggestion: "Restrict the argument.",
			Severity:   tt.SeverityError,
		},
		{
			Rule:     "guide-absolute-continuity",
			Category: "guide",
			Filename: "model.py",
			Start:    tt.Position{Line: 4, Column: 5},
			End:      tt.Position{Line: 4, Column: 46},
			Message:  "Sampling A in model does not imply sampling in guide.",
			Note:     "No sample statement in guide.",
			Severity: tt.SeverityWarning,
		},
	}

	expected := `error: constraint-parameter
 --> model.py:5:41
  |
5 | C = pyro.sample("C", dist.Bernoulli(A))
  | ` + strings.Repeat(" ", 36) + `~
  = Parameter p of Bernoulli distribution has constraint [0, 1], but values are estimated to be in [-inf, inf].
  = help: Restrict the argument.

warning: guide-absolute-continuity
 --> model.py:4:5
  |
4 | A = pyro.sample("A", dist.Normal(0., 1.))
  | ` + strings.Repeat("~", 41) + `
  = Sampling A in model does not imply sampling in guide.
  = note: No sample statement in guide.

`

	assert.Equal(t, expected, GenerateFormattedIssue(issues, modelSource))
}

func TestHMCFormatterAndMultiLineSpan(t *testing.T) {
	t.Parallel()
	source := NewSourceCode([]byte("import pyro\n" + strings.Repeat("\n", 8) + "def model():\n    while True:\n        pass\n"))
	issue := tt.Issue{
		Rule:     "hmc-while-loop",
		Category: "hmc",
		Filename: "model.py",
		Start:    tt.Position{Line: 10, Column: 1},
		End:      tt.Position{Line: 12, Column: 13},
		Message:  "Random variable appears in while loop body.",
		Severity: tt.SeverityInfo,
	}

	expected := `info: hmc-while-loop
  --> model.py:10:1
   |
10 | def model():
   | ` + strings.Repeat("~", 12) + `
   = Random variable appears in while loop body.
   = applies to: HMC/NUTS

`
	assert.Equal(t, expected, GenerateFormattedIssue([]tt.Issue{issue}, source))
}

func TestIssueWithoutPosition(t *testing.T) {
	t.Parallel()
	issue := tt.Issue{Rule: "guide-unknown-continuity", Filename: "model.py", Message: "unknown", Severity: tt.SeverityInfo}
	expected := `info: guide-unknown-continuity
 --> model.py
  |
  | 
  = unknown

`
	assert.Equal(t, expected, GenerateFormattedIssue([]tt.Issue{issue}, modelSource))
}

func TestCalculateVisualColumn(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, calculateVisualColumn("abc", 1))
	assert.Equal(t, 2, calculateVisualColumn("abc", 3))
	assert.Equal(t, 8, calculateVisualColumn("\tx", 2))
	assert.Equal(t, 3, calculateVisualColumn("abc", 10))
}

func TestFindCommonIndent(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		lines    []string
	}{
		{
			name: "whitespace indent",
			lines: []string{
				"    if foo:",
				"        bar()",
			},
			expected: "    ",
		},
		{
			name: "tab indent",
			lines: []string{
				"\tif foo:",
				"\t\tbar()",
			},
			expected: "\t",
		},
		{
			name: "no indent",
			lines: []string{
				"if foo:",
				"bar()",
			},
			expected: "",
		},
		{
			name: "empty line",
			lines: []string{
				"    if foo:",
				"",
				"        bar()",
			},
			expected: "    ",
		},
		{
			name:     "empty input",
			lines:    []string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, findCommonIndent(tt.lines))
		})
	}
}
