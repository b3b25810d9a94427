package internal

import (
	"context"
	"errors"

	"github.com/gnoverse/pplint/internal/lints"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/smt"
	tt "github.com/gnoverse/pplint/internal/types"
)

/*
* Each check of the lints package is wrapped as a LintRule. A check reports
* findings of several kinds; every kind is a rule of its own so it can be
* configured and suppressed separately.
 */

// LintRule defines the interface for all lint rules.
type LintRule interface {
	// Check runs the rule over an analyzed program and returns a slice of Issues.
	Check(ctx context.Context, s *session.Session) ([]tt.Issue, error)

	// Name returns the name of the check, used as the issue category.
	Name() string

	// Rules returns the names of the rules the check reports.
	Rules() []string
}

// ruleInfo describes the rule a finding kind is reported under.
type ruleInfo struct {
	Rule       string
	Severity   tt.Severity
	Suggestion string
}

var findingRules = map[string]ruleInfo{
	"ConstraintViolation": {
		Rule:       "constraint-parameter",
		Severity:   tt.SeverityError,
		Suggestion: "Restrict the argument to the constraint of the parameter, e.g. with a link function.",
	},
	"ContinuousDistributionViolation": {
		Rule:       "hmc-discrete-distribution",
		Severity:   tt.SeverityWarning,
		Suggestion: "Marginalize the variable out or use a sampler that supports discrete variables.",
	},
	"RandomControlDependentWarning": {
		Rule:     "hmc-random-control",
		Severity: tt.SeverityWarning,
	},
	"MultipleDefinitionsWarning": {
		Rule:     "hmc-multiple-definitions",
		Severity: tt.SeverityWarning,
	},
	"MissingInBranchWarning": {
		Rule:     "hmc-missing-in-branch",
		Severity: tt.SeverityWarning,
	},
	"StochasticForLoopRangeWarning": {
		Rule:     "hmc-stochastic-loop",
		Severity: tt.SeverityWarning,
	},
	"DefinitionInWhileLoopWarning": {
		Rule:     "hmc-while-loop",
		Severity: tt.SeverityWarning,
	},
	"SampleInRecursiveCallWarning": {
		Rule:     "hmc-recursive-sample",
		Severity: tt.SeverityWarning,
	},
	"AbsoluteContinuityViolation": {
		Rule:       "guide-absolute-continuity",
		Severity:   tt.SeverityError,
		Suggestion: "Sample the variable in the guide on every path the model samples it.",
	},
	"UnknownAbsoluteContinuity": {
		Rule:     "guide-unknown-continuity",
		Severity: tt.SeverityInfo,
	},
	"OverlappingSampleStatements": {
		Rule:       "guide-overlapping-samples",
		Severity:   tt.SeverityError,
		Suggestion: "Make sure at most one sample statement per name executes on every path.",
	},
	"SupportTypeMismatch": {
		Rule:     "guide-support-type",
		Severity: tt.SeverityError,
	},
	"SupportIntervalMismatch": {
		Rule:       "guide-support-interval",
		Severity:   tt.SeverityWarning,
		Suggestion: "Choose a guide distribution whose support covers the support in the model.",
	},
}

// DefaultSeverities returns every rule with its default severity.
func DefaultSeverities() map[string]tt.Severity {
	out := make(map[string]tt.Severity, len(findingRules))
	for _, info := range findingRules {
		out[info.Rule] = info.Severity
	}
	return out
}

func rulesOf(kinds ...string) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = findingRules[k].Rule
	}
	return out
}

type ConstraintRule struct{}

func NewConstraintRule() LintRule { return &ConstraintRule{} }

func (r *ConstraintRule) Check(_ context.Context, s *session.Session) ([]tt.Issue, error) {
	findings, err := lints.VerifyConstraints(s)
	if err != nil {
		return nil, err
	}
	return toIssues(s, r.Name(), findings), nil
}

func (r *ConstraintRule) Name() string { return "constraints" }

func (r *ConstraintRule) Rules() []string { return rulesOf("ConstraintViolation") }

type HMCRule struct{}

func NewHMCRule() LintRule { return &HMCRule{} }

func (r *HMCRule) Check(_ context.Context, s *session.Session) ([]tt.Issue, error) {
	findings, err := lints.CheckHMC(s)
	if err != nil {
		return nil, err
	}
	return toIssues(s, r.Name(), findings), nil
}

func (r *HMCRule) Name() string { return "hmc" }

func (r *HMCRule) Rules() []string {
	return rulesOf(
		"ContinuousDistributionViolation",
		"RandomControlDependentWarning",
		"MultipleDefinitionsWarning",
		"MissingInBranchWarning",
		"StochasticForLoopRangeWarning",
		"DefinitionInWhileLoopWarning",
		"SampleInRecursiveCallWarning",
	)
}

// GuideRule validates the guide of a variational program. Programs
// without a guide are skipped.
type GuideRule struct {
	solver *smt.Solver
}

func NewGuideRule() LintRule { return &GuideRule{solver: smt.New()} }

func (r *GuideRule) Check(ctx context.Context, s *session.Session) ([]tt.Issue, error) {
	if _, err := s.FindGuide(); errors.Is(err, ppl.ErrNoModel) {
		return nil, nil
	}
	findings, err := lints.ValidateGuide(ctx, s, r.solver)
	if err != nil {
		return nil, err
	}
	return toIssues(s, r.Name(), findings), nil
}

func (r *GuideRule) Name() string { return "guide" }

func (r *GuideRule) Rules() []string {
	return rulesOf(
		"AbsoluteContinuityViolation",
		"UnknownAbsoluteContinuity",
		"OverlappingSampleStatements",
		"SupportTypeMismatch",
		"SupportIntervalMismatch",
	)
}

// toIssues converts findings into issues located at the span of their node.
func toIssues(s *session.Session, category string, findings []lints.Finding) []tt.Issue {
	t := s.Syntax()
	issues := make([]tt.Issue, 0, len(findings))
	for _, f := range findings {
		info, ok := findingRules[f.Kind]
		if !ok {
			info = ruleInfo{Rule: f.Kind, Severity: tt.SeverityWarning}
		}
		issue := tt.Issue{
			Rule:       info.Rule,
			Category:   category,
			Filename:   s.Filename,
			Message:    f.Message,
			Suggestion: info.Suggestion,
			Note:       f.Note,
			Severity:   info.Severity,
		}
		if f.Node.Valid() {
			span := t.Node(f.Node).Span
			issue.Start = tt.Position{Filename: s.Filename, Offset: span.StartByte, Line: span.Start.Line, Column: span.Start.Column}
			issue.End = tt.Position{Filename: s.Filename, Offset: span.EndByte, Line: span.End.Line, Column: span.End.Column}
		}
		issues = append(issues, issue)
	}
	return issues
}
