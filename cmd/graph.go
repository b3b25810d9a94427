package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal/lints"
	"github.com/gnoverse/pplint/internal/session"
)

var (
	mergeByName bool
	graphOutput string
)

var graphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Print the graphical model of a program",
	Long: `Outputs the random variables of the model, their dependencies and the
plates of the loops they are sampled in, in GraphViz format.
Example) pplint graph --merge model.py`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := withTimeout()
		defer cancel()
		if err := runModelGraph(ctx, cmd, args[0], mergeByName, graphOutput); err != nil {
			logger.Error("Model graph failed", zap.String("path", args[0]), zap.Error(err))
			os.Exit(1)
		}
	},
}

func init() {
	graphCmd.Flags().BoolVar(&mergeByName, "merge", false, "Merge random variables with the same name into one vertex")
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "Output path for the GraphViz file")
}

func runModelGraph(ctx context.Context, cmd *cobra.Command, path string, merge bool, output string) error {
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

	g, err := lints.BuildModelGraph(s)
	if err != nil {
		return err
	}
	if merge {
		g.MergeByName()
	}
	return writeOutput(output, func(w io.Writer) {
		g.PrintDot(w, s.Syntax())
	})
}
