// Package session holds analyzed programs behind opaque handles and
// answers queries about them.
//
// A Session owns one preprocessed tree together with the structures built
// over it: scopes, control flow graphs, the call graph and the dataflow
// and interval analyzers. All of them are built once in Build and never
// change afterwards; only the memo tables of the analyzers grow. A
// Session is not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/analysis/callgraph"
	"github.com/gnoverse/pplint/internal/analysis/cfg"
	"github.com/gnoverse/pplint/internal/analysis/dataflow"
	"github.com/gnoverse/pplint/internal/distributions"
	"github.com/gnoverse/pplint/internal/frontend"
	"github.com/gnoverse/pplint/internal/interval"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/preprocess"
	"github.com/gnoverse/pplint/internal/scope"
	"github.com/gnoverse/pplint/internal/syntax"
)

var ErrUnknownHandle = errors.New("unknown session handle")

// Handle identifies an open session in a Store.
type Handle string

// Options configures preprocessing.
type Options struct {
	// Unroll is the largest constant trip count unrolled; 0 disables.
	Unroll        int
	UniquifyCalls bool
	// Registry overrides the built-in distribution registry.
	Registry *distributions.Registry
}

// Session is one analyzed source file.
type Session struct {
	Filename string
	Adapter  ppl.Adapter
	Tree     *scope.Tree
	Program  *cfg.Program
	Calls    callgraph.Graph
	Flow     *dataflow.Analyzer
	Ranges   *interval.Interpreter
	Registry *distributions.Registry

	logger *zap.Logger
	rvs    []ppl.RandomVariable
}

// Build parses src, normalizes it for adapter and builds the analyses. A
// control flow graph that violates its invariants fails the build.
func Build(ctx context.Context, filename string, src []byte, adapter ppl.Adapter, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t, err := frontend.Parse(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	adapter.Preprocess(t, preprocess.Options{
		Unroll:        opts.Unroll,
		UniquifyCalls: opts.UniquifyCalls,
	})

	st := scope.Build(t)
	prog, err := cfg.Build(st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	flow := dataflow.New(prog)

	reg := opts.Registry
	if reg == nil {
		reg = distributions.Default()
	}
	s := &Session{
		Filename: filename,
		Adapter:  adapter,
		Tree:     st,
		Program:  prog,
		Calls:    callgraph.Build(st),
		Flow:     flow,
		Ranges:   interval.NewInterpreter(flow),
		Registry: reg,
		logger:   logger,
	}
	s.rvs = ppl.RandomVariables(t, adapter)
	logger.Debug("session built",
		zap.String("file", filename),
		zap.String("ppl", adapter.Name()),
		zap.Int("nodes", t.Len()),
		zap.Int("random_variables", len(s.rvs)),
	)
	return s, nil
}

// Syntax returns the underlying tree.
func (s *Session) Syntax() *syntax.Tree { return s.Tree.Tree }

// Variables returns the random variables of the file in source order.
func (s *Session) Variables() []ppl.RandomVariable { return s.rvs }

// VariablesIn returns the random variables defined below root.
func (s *Session) VariablesIn(root syntax.NodeID) []ppl.RandomVariable {
	var out []ppl.RandomVariable
	for _, rv := range s.rvs {
		if s.Tree.IsAncestor(root, rv.Node) {
			out = append(out, rv)
		}
	}
	return out
}

// Properties looks up the registry entry of a random variable's
// distribution.
func (s *Session) Properties(rv ppl.RandomVariable) (distributions.Properties, bool) {
	return s.Registry.Lookup(rv.Distribution.Name)
}

// FindModel returns the model definition.
func (s *Session) FindModel() (ppl.Model, error) { return ppl.FindModel(s.Syntax(), s.Adapter) }

// FindGuide returns the guide definition.
func (s *Session) FindGuide() (ppl.Model, error) { return ppl.FindGuide(s.Syntax(), s.Adapter) }

// Store keeps open sessions by handle.
type Store struct {
	mu       sync.Mutex
	sessions map[Handle]*Session
	logger   *zap.Logger
}

// NewStore returns an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{sessions: make(map[Handle]*Session), logger: logger}
}

// Open builds a session and returns its handle.
func (st *Store) Open(ctx context.Context, filename string, src []byte, adapter ppl.Adapter, opts Options) (Handle, error) {
	s, err := Build(ctx, filename, src, adapter, opts, st.logger)
	if err != nil {
		return "", err
	}
	h := Handle(uuid.NewString())
	st.mu.Lock()
	st.sessions[h] = s
	st.mu.Unlock()
	st.logger.Debug("session opened", zap.String("handle", string(h)), zap.String("file", filename))
	return h, nil
}

// Get returns the session behind h.
func (st *Store) Get(h Handle) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return s, nil
}

// Close discards the session behind h.
func (st *Store) Close(h Handle) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[h]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	delete(st.sessions, h)
	st.logger.Debug("session closed", zap.String("handle", string(h)))
	return nil
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
