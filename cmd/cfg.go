package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/analysis/cfg"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/internal/syntax"
)

// variable for flags
var (
	funcName string
	output   string
)

var cfgCmd = &cobra.Command{
	Use:   "cfg [file]",
	Short: "Print the control flow graph of a function",
	Long: `Outputs the Control Flow Graph (CFG) of the specified function, or of the
module top level when no function is given, in GraphViz format.
Example) pplint cfg --func model model.py`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := withTimeout()
		defer cancel()
		if err := runCFGAnalysis(ctx, cmd, args[0], funcName, output); err != nil {
			logger.Error("CFG analysis failed", zap.String("path", args[0]), zap.Error(err))
			os.Exit(1)
		}
	},
}

func init() {
	cfgCmd.Flags().StringVar(&funcName, "func", "", "Function name for CFG analysis")
	cfgCmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the GraphViz file")
}

func runCFGAnalysis(ctx context.Context, cmd *cobra.Command, path, funcName, output string) error {
	store := session.NewStore(logger)
	h, err := openSession(ctx, cmd, store, path)
	if err != nil {
		return err
	}
	defer store.Close(h)
	s, err := store.Get(h)
	if err != nil {
		return err
	}

	g, err := findGraph(s, funcName)
	if err != nil {
		return err
	}
	return writeOutput(output, func(w io.Writer) {
		printCFG(w, s.Syntax(), g)
	})
}

// findGraph returns the CFG of the function called name; empty name selects
// the module top level.
func findGraph(s *session.Session, name string) (*cfg.Graph, error) {
	if name == "" {
		return s.Program.Top, nil
	}
	for _, f := range s.Tree.Functions {
		if f.Name != name {
			continue
		}
		if g, ok := s.Program.Functions[f.Node]; ok {
			return g, nil
		}
	}
	return nil, fmt.Errorf("function not found: %s", name)
}

func printCFG(w io.Writer, t *syntax.Tree, g *cfg.Graph) {
	g.PrintDot(w, func(n *cfg.Node) string {
		switch {
		case !n.Syntax.Valid(), n.Kind == cfg.Join, n.Kind == cfg.FuncJoin:
			return ""
		case n.Kind == cfg.FuncArg:
			return t.Node(n.Syntax).Name
		}
		switch t.Kind(n.Syntax) {
		case syntax.KindModule:
			return ""
		case syntax.KindFunctionDef:
			return t.Node(n.Syntax).Name
		case syntax.KindIf, syntax.KindWhile:
			return t.Unparse(t.Node(n.Syntax).Test)
		case syntax.KindFor:
			node := t.Node(n.Syntax)
			return t.Unparse(node.Target) + " in " + t.Unparse(node.Iter)
		}
		return t.Unparse(n.Syntax)
	})
}

// writeOutput writes to the file at path, or to stdout when path is empty.
func writeOutput(path string, write func(io.Writer)) error {
	if path == "" {
		write(os.Stdout)
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	write(f)
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "GraphViz file created: %s\n", path)
	return nil
}
