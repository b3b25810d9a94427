package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

const historyFile = ".pplint_history"

var queryCmd = &cobra.Command{
	Use:   "query [file]",
	Short: "Query the analyses of a program interactively",
	Long: `Opens an analysis session for the file and answers queries about it:
random variables, data and control dependencies, value ranges, call graphs
and path conditions. Type "help" for the list of queries.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store := session.NewStore(logger)
		sh := &queryShell{
			ctx:   ctx,
			store: store,
			out:   os.Stdout,
			open: func(path string) (session.Handle, error) {
				return openSession(ctx, cmd, store, path)
			},
		}
		if err := sh.exec("open " + args[0]); err != nil {
			logger.Fatal("Failed to open file", zap.String("path", args[0]), zap.Error(err))
		}
		runREPL(sh)
	},
}

func runREPL(sh *queryShell) {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, name := range queryNames() {
			if strings.HasPrefix(name, line) {
				out = append(out, name)
			}
		}
		return out
	})

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("pplint> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return
		}
		if err != nil {
			logger.Error("reading input", zap.Error(err))
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)

		err = sh.exec(line)
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

// queryShell runs the queries of the REPL against the current session.
type queryShell struct {
	ctx     context.Context
	store   *session.Store
	out     io.Writer
	open    func(path string) (session.Handle, error)
	current session.Handle
}

type query struct {
	usage string
	run   func(sh *queryShell, s *session.Session, args []string) (any, error)
}

var queries map[string]query

func init() {
	queries = map[string]query{
		"help": {"help", func(sh *queryShell, _ *session.Session, _ []string) (any, error) {
			for _, name := range queryNames() {
				fmt.Fprintf(sh.out, "  %s\n", queries[name].usage)
			}
			return nil, nil
		}},
		"model": {"model", func(_ *queryShell, s *session.Session, _ []string) (any, error) {
			return s.Model()
		}},
		"guide": {"guide", func(_ *queryShell, s *session.Session, _ []string) (any, error) {
			return s.Guide()
		}},
		"rvs": {"rvs", func(_ *queryShell, s *session.Session, _ []string) (any, error) {
			return s.RandomVariables(), nil
		}},
		"node": {"node <id>", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) != 1 {
				return nil, errUsage
			}
			id, err := s.Syntax().Lookup(args[0])
			if err != nil {
				return nil, err
			}
			return s.Node(id), nil
		}},
		"deps": {"deps <id>", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) != 1 {
				return nil, errUsage
			}
			return s.DataDependencies(session.SyntaxNode{NodeID: args[0]})
		}},
		"controls": {"controls <id>", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) != 1 {
				return nil, errUsage
			}
			return s.ControlParents(session.SyntaxNode{NodeID: args[0]})
		}},
		"range": {"range <id> [<id>=<low>,<high> ...]", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) < 1 {
				return nil, errUsage
			}
			var assumptions []session.Assumption
			for _, arg := range args[1:] {
				id, bounds, ok := strings.Cut(arg, "=")
				lo, hi, ok2 := strings.Cut(bounds, ",")
				if !ok || !ok2 {
					return nil, fmt.Errorf("invalid assumption %q", arg)
				}
				assumptions = append(assumptions, session.Assumption{
					Node:     session.SyntaxNode{NodeID: id},
					Interval: session.Interval{Low: lo, High: hi},
				})
			}
			return s.EstimateValueRange(session.SyntaxNode{NodeID: args[0]}, assumptions)
		}},
		"calls": {"calls <id>", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) != 1 {
				return nil, errUsage
			}
			return s.CallGraph(session.SyntaxNode{NodeID: args[0]})
		}},
		"paths": {"paths <root> <id>... [<id>=<expr> ...]", func(_ *queryShell, s *session.Session, args []string) (any, error) {
			if len(args) < 2 {
				return nil, errUsage
			}
			var nodes []session.SyntaxNode
			var assumptions []session.SymbolAssumption
			for _, arg := range args[1:] {
				if id, expr, ok := strings.Cut(arg, "="); ok {
					assumptions = append(assumptions, session.SymbolAssumption{
						Node: session.SyntaxNode{NodeID: id},
						Expr: session.SymbolicExpression{Expr: expr},
					})
					continue
				}
				nodes = append(nodes, session.SyntaxNode{NodeID: arg})
			}
			return s.PathConditions(session.SyntaxNode{NodeID: args[0]}, nodes, assumptions)
		}},
	}
}

var errUsage = errors.New("wrong number of arguments")

func queryNames() []string {
	names := []string{"open", "close", "quit"}
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exec runs one line of input.
func (sh *queryShell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "quit", "exit":
		return errQuit
	case "open":
		if len(args) != 1 {
			return fmt.Errorf("usage: open <file>")
		}
		h, err := sh.open(args[0])
		if err != nil {
			return err
		}
		if sh.current != "" {
			_ = sh.store.Close(sh.current)
		}
		sh.current = h
		fmt.Fprintf(sh.out, "opened %s (session %s)\n", args[0], h)
		return nil
	case "close":
		if sh.current == "" {
			return fmt.Errorf("no open session")
		}
		err := sh.store.Close(sh.current)
		sh.current = ""
		return err
	}

	q, ok := queries[name]
	if !ok {
		return fmt.Errorf("unknown query %q, type help for the list", name)
	}
	var s *session.Session
	if name != "help" {
		var err error
		if s, err = sh.store.Get(sh.current); err != nil {
			return err
		}
	}
	res, err := q.run(sh, s, args)
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: %s", q.usage)
	}
	if errors.Is(err, syntax.ErrUnknownNode) {
		return fmt.Errorf("%w (ids look like %s)", err, syntax.IDString(0))
	}
	if err != nil || res == nil {
		return err
	}
	enc := json.NewEncoder(sh.out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
