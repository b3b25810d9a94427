package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/internal"
	"github.com/gnoverse/pplint/internal/ppl"
	"github.com/gnoverse/pplint/internal/session"
	"github.com/gnoverse/pplint/lint"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile    string
	timeout    time.Duration
	debug      bool
	pplName    string
	unroll     int
	noUniquify bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:              "pplint [paths...]",
	Short:            "pplint - static analysis for probabilistic programs",
	TraverseChildren: true, // Prioritize subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// no subcommand
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}
		// Format: pplint [path1 path2 ...] => behaves like the lint subcommand
		lintCmd.Run(lintCmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file (default "+lint.DefaultConfigPath+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Timeout for the whole run")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&pplName, "ppl", "", fmt.Sprintf("Probabilistic programming framework %v (default: detect)", ppl.Names()))
	rootCmd.PersistentFlags().IntVar(&unroll, "unroll", -1, "Unroll loops with a constant trip count up to N (0 disables)")
	rootCmd.PersistentFlags().BoolVar(&noUniquify, "no-uniquify-calls", false, "Do not give each call site its own copy of the callee")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(cfgCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig reads the configuration file and applies the command line
// overrides.
func loadConfig(cmd *cobra.Command) lint.Config {
	config, err := lint.LoadConfig(cfgFile)
	if err != nil {
		logger.Fatal("Failed to read configuration", zap.String("path", cfgFile), zap.Error(err))
	}
	flags := cmd.Flags()
	if flags.Changed("ppl") {
		config.PPL = pplName
	}
	if flags.Changed("unroll") {
		config.Unroll = unroll
	}
	if flags.Changed("no-uniquify-calls") {
		config.UniquifyCalls = !noUniquify
	}
	return config
}

func newEngine(cmd *cobra.Command) (*internal.Engine, lint.Config) {
	config := loadConfig(cmd)
	engine, err := lint.New(logger, config, 0)
	if err != nil {
		logger.Fatal("Failed to initialize lint engine", zap.Error(err))
	}
	return engine, config
}

// openSession analyzes a single file for the inspection commands.
func openSession(ctx context.Context, cmd *cobra.Command, store *session.Store, path string) (session.Handle, error) {
	config := loadConfig(cmd)
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	adapter, err := adapterFor(config.PPL, src)
	if err != nil {
		return "", err
	}
	opts, err := config.SessionOptions()
	if err != nil {
		return "", err
	}
	return store.Open(ctx, path, src, adapter, opts)
}

func adapterFor(name string, src []byte) (ppl.Adapter, error) {
	if name != "" {
		return ppl.Lookup(name)
	}
	return ppl.Detect(src)
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
