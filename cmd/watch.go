package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/formatter"
	"github.com/gnoverse/pplint/internal"
	tt "github.com/gnoverse/pplint/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-analyze Python files whenever they are saved",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, _ := newEngine(cmd)
		w, err := internal.NewWatcher(engine, logger, reportWatched, args...)
		if err != nil {
			logger.Fatal("Failed to start watching", zap.Error(err))
		}
		fmt.Printf("watching %v, press Ctrl+C to stop\n", args)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watch stopped", zap.Error(err))
		}
	},
}

func reportWatched(filename string, issues []tt.Issue, err error) {
	if err != nil {
		logger.Error("error processing", zap.String("file", filename), zap.Error(err))
		return
	}
	if len(issues) == 0 {
		fmt.Printf("no issues found in %s\n", filename)
		return
	}
	fmt.Printf("found %d issues in %s\n", len(issues), filename)
	sourceCode, err := formatter.ReadSourceCode(filename)
	if err != nil {
		logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
		return
	}
	fmt.Print(formatter.GenerateFormattedIssue(issues, sourceCode))
}
