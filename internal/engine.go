package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/nolint"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	tt "github.com/gnoverse/pplint/internal/types"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	// PPL names the framework; empty detects it from the imports of each file.
	PPL     string
	Session session.Options
	Rules   map[string]tt.ConfigRule
	// Timeout bounds the analysis of one file; 0 means no limit.
	Timeout time.Duration
}

// Engine manages the linting process.
type Engine struct {
	logger       *zap.Logger
	adapter      ppl.Adapter
	opts         session.Options
	timeout      time.Duration
	severities   map[string]tt.Severity
	ignoredRules map[string]bool
	rules        []LintRule
}

// Define the ruleConstructor type
type ruleConstructor func() LintRule

// Checks in the order they run.
var allRuleConstructors = []ruleConstructor{
	NewConstraintRule,
	NewHMCRule,
	NewGuideRule,
}

// NewEngine creates a new lint engine.
func NewEngine(logger *zap.Logger, opts EngineOptions) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &Engine{
		logger:  logger,
		opts:    opts.Session,
		timeout: opts.Timeout,
	}
	if opts.PPL != "" {
		a, err := ppl.Lookup(opts.PPL)
		if err != nil {
			return nil, err
		}
		engine.adapter = a
	}
	engine.applyRules(opts.Rules)
	return engine, nil
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) {
	e.severities = DefaultSeverities()
	e.rules = e.rules[:0]
	for _, newRule := range allRuleConstructors {
		e.rules = append(e.rules, newRule())
	}

	// Iterate over the rules and apply severity
	for key, rule := range rules {
		if _, ok := e.severities[key]; !ok {
			// Unknown rule, continue to the next one
			e.logger.Warn("unknown rule in configuration", zap.String("rule", key))
			continue
		}
		e.severities[key] = rule.Severity
		if rule.Severity == tt.SeverityOff {
			e.IgnoreRule(key)
		}
	}
}

// Rules returns the names of all rules with their configured severity.
func (e *Engine) Rules() map[string]tt.Severity {
	out := make(map[string]tt.Severity, len(e.severities))
	for k, v := range e.severities {
		out[k] = v
	}
	return out
}

// Run applies all lint rules to the given file and returns a slice of Issues.
func (e *Engine) Run(ctx context.Context, filename string) ([]tt.Issue, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return e.RunSource(ctx, filename, src)
}

// RunSource applies all lint rules to the given source and returns a slice of Issues.
func (e *Engine) RunSource(ctx context.Context, filename string, src []byte) ([]tt.Issue, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	adapter := e.adapter
	if adapter == nil {
		a, err := ppl.Detect(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		adapter = a
	}

	s, err := session.Build(ctx, filename, src, adapter, e.opts, e.logger)
	if err != nil {
		return nil, fmt.Errorf("error analyzing file: %w", err)
	}
	return e.RunSession(ctx, s)
}

// RunSession applies all lint rules to an analyzed program.
func (e *Engine) RunSession(ctx context.Context, s *session.Session) ([]tt.Issue, error) {
	// comments are read from the tree as written, before preprocessing
	// rewrites it.
	raw, err := frontend.Parse(ctx, s.Filename, s.Syntax().Src)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}
	nolintMgr := nolint.ParseComments(raw)

	var allIssues []tt.Issue
	for _, rule := range e.rules {
		if e.allIgnored(rule) {
			continue
		}
		issues, err := rule.Check(ctx, s)
		if errors.Is(err, ppl.ErrNoModel) {
			e.logger.Debug("skipping check", zap.String("check", rule.Name()), zap.String("file", s.Filename), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s check: %w", rule.Name(), err)
		}
		allIssues = append(allIssues, e.filterIssues(nolintMgr, issues)...)
	}

	sort.SliceStable(allIssues, func(i, j int) bool {
		a, b := allIssues[i].Start, allIssues[j].Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return allIssues[i].Rule < allIssues[j].Rule
	})
	return allIssues, nil
}

func (e *Engine) IgnoreRule(rule string) {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

func (e *Engine) allIgnored(rule LintRule) bool {
	for _, name := range rule.Rules() {
		if !e.ignoredRules[name] {
			return false
		}
	}
	return true
}

// filterIssues drops ignored and nolinted issues and applies the configured
// severities.
func (e *Engine) filterIssues(nolintMgr *nolint.Manager, issues []tt.Issue) []tt.Issue {
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if e.ignoredRules[issue.Rule] {
			continue
		}
		if nolintMgr != nil && nolintMgr.IsNolint(issue.Start.Line, issue.Rule) {
			continue
		}
		if sev, ok := e.severities[issue.Rule]; ok {
			issue.Severity = sev
		}
		filtered = append(filtered, issue)
	}
	return filtered
}
