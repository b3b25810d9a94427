package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/pplint/formatter"
	"github.com/gnoverse/pplint/internal"
	tt "github.com/gnoverse/pplint/internal/types"
	"github.com/gnoverse/pplint/lint"
)

var (
	ignoreRules    string
	lintJsonOutput bool
	outPath        string
	cacheDir       string
)

var lintCmd = &cobra.Command{
	Use:   "lint [paths...]",
	Short: "Analyze probabilistic programs",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide file or directory paths")
			os.Exit(1)
		}

		ctx, cancel := withTimeout()
		defer cancel()

		engine, config := newEngine(cmd)
		if ignoreRules != "" {
			for _, rule := range strings.Split(ignoreRules, ",") {
				engine.IgnoreRule(strings.TrimSpace(rule))
			}
		}

		processor := lint.ProcessFile
		if cacheDir != "" {
			deps := []string{}
			if config.Registry != "" {
				deps = append(deps, config.Registry)
			}
			cache, err := internal.NewCache(cacheDir, config.CacheKey()+ignoreRules, deps...)
			if err != nil {
				logger.Fatal("Failed to open cache", zap.String("dir", cacheDir), zap.Error(err))
			}
			processor = lint.WithCache(cache, processor)
		}

		issues, err := lint.ProcessFiles(ctx, logger, engine, args, processor, os.Stderr)
		printIssues(issues, lintJsonOutput, outPath)

		if err != nil || lint.HasErrors(issues) {
			os.Exit(1)
		}
	},
}

func init() {
	lintCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of lint rules to ignore")
	lintCmd.Flags().BoolVar(&lintJsonOutput, "json", false, "Output issues in JSON format")
	lintCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	lintCmd.Flags().StringVar(&cacheDir, "cache", "", "Directory to cache results of unchanged files in")
}

func groupByFile(issues []tt.Issue) (map[string][]tt.Issue, []string) {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}

	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)
	return issuesByFile, sortedFiles
}

func printIssues(issues []tt.Issue, isJson bool, jsonOutput string) {
	issuesByFile, sortedFiles := groupByFile(issues)

	if !isJson {
		// text output
		for _, filename := range sortedFiles {
			sourceCode, err := formatter.ReadSourceCode(filename)
			if err != nil {
				logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
				continue
			}
			fmt.Print(formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode))
		}
		return
	}

	// JSON output
	if issuesByFile == nil {
		issuesByFile = map[string][]tt.Issue{}
	}
	d, err := json.MarshalIndent(issuesByFile, "", "  ")
	if err != nil {
		logger.Error("Error marshalling issues to JSON", zap.Error(err))
		return
	}
	if jsonOutput == "" {
		fmt.Println(string(d))
		return
	}
	if err := os.WriteFile(jsonOutput, d, 0o644); err != nil {
		logger.Error("Error writing JSON output file", zap.Error(err))
	}
}
