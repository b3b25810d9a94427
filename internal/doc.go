// Package internal provides the lint engine of pplint.
//
// Key components:
//
// Engine: runs the checks over one probabilistic program. It detects the
// framework (PyMC, Pyro or BeanMachine) from the imports unless one is
// configured, builds an analysis session and converts the findings of each
// check into issues.
//
// LintRule: wraps a check of the lints package. A check reports findings of
// several kinds and each kind is a rule that can be configured or
// suppressed on its own.
//
// Cache: keeps the issues of unchanged files between runs.
//
// Watcher: re-analyzes Python files as they change.
//
// Usage:
//
//	engine, err := internal.NewEngine(logger, internal.EngineOptions{})
//	if err != nil {
//	    // handle error
//	}
//
//	issues, err := engine.Run(ctx, "model.py")
//	if err != nil {
//	    // handle error
//	}
//
//	for _, issue := range issues {
//	    fmt.Printf("%s:%d: %s\n", issue.Filename, issue.Start.Line, issue.Message)
//	}
//
// Comments of the form "# nolint" or "# nolint:rule1,rule2" suppress issues
// on the statement they precede or follow.
package internal
