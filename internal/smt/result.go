package smt

import (
	"sort"
	"strings"

	"github.com/gnoverse/pplint/internal/symbolic"
)

// Status is the outcome of a satisfiability check.
type Status int

const (
	// Unknown means the solver could neither find a model nor refute the
	// formula: it gave up, or a model relied on an abstracted atom.
	Unknown Status = iota
	// Sat means a model was found.
	Sat
	// Unsat means the formula has no model.
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	case Unknown:
		return "unknown"
	default:
		return "?"
	}
}

// Result carries the status and, for Sat, a model of the numeric and
// Boolean symbols (true is 1). Reason explains an Unknown.
type Result struct {
	Status Status
	Model  map[string]float64
	Reason string
}

// SatResult creates a Sat result with the given model.
func SatResult(model map[string]float64) Result {
	return Result{Status: Sat, Model: model}
}

// UnsatResult creates an Unsat result.
func UnsatResult() Result {
	return Result{Status: Unsat}
}

// UnknownResult creates an Unknown result with the given reason.
func UnknownResult(reason string) Result {
	return Result{Status: Unknown, Reason: reason}
}

// ModelString renders the model as [x = 1, y = 0.5] sorted by name.
func (r Result) ModelString() string {
	names := make([]string, 0, len(r.Model))
	for n := range r.Model {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + " = " + symbolic.FormatFloat(r.Model[n])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
