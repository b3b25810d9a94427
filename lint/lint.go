package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gnoverse/pplint/internal"
	"github.com/gnoverse/pplint/internal/distributions"
	"github.com/gnoverse/pplint/internal/session"
	tt "github.com/gnoverse/pplint/internal/types"
)

// DefaultConfigPath is where the configuration is looked up when none is given.
const DefaultConfigPath = ".pplint.yaml"

type LintEngine interface {
	Run(ctx context.Context, filename string) ([]tt.Issue, error)
	RunSource(ctx context.Context, filename string, src []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
}

// Config represents the configuration file.
type Config struct {
	Name string `yaml:"name"`
	// PPL selects the framework; empty detects it per file.
	PPL           string `yaml:"ppl,omitempty"`
	Unroll        int    `yaml:"unroll"`
	UniquifyCalls bool   `yaml:"uniquify-calls"`
	// Registry is a YAML file of distributions merged over the built-in ones.
	Registry string                   `yaml:"registry,omitempty"`
	Rules    map[string]tt.ConfigRule `yaml:"rules"`
}

// DefaultConfig lists every rule with its default severity.
func DefaultConfig() Config {
	rules := make(map[string]tt.ConfigRule)
	for name, sev := range internal.DefaultSeverities() {
		rules[name] = tt.ConfigRule{Severity: sev}
	}
	return Config{
		Name:          "pplint",
		UniquifyCalls: true,
		Rules:         rules,
	}
}

// LoadConfig reads the configuration at path. A missing file at the
// default path yields the default configuration.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	config := DefaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	if config.Registry != "" && !filepath.IsAbs(config.Registry) {
		config.Registry = filepath.Join(filepath.Dir(path), config.Registry)
	}
	return config, nil
}

// SessionOptions converts the configuration into analysis options,
// loading the custom registry if one is set.
func (c Config) SessionOptions() (session.Options, error) {
	opts := session.Options{Unroll: c.Unroll, UniquifyCalls: c.UniquifyCalls}
	if c.Registry == "" {
		return opts, nil
	}
	data, err := os.ReadFile(c.Registry)
	if err != nil {
		return opts, fmt.Errorf("reading registry: %w", err)
	}
	custom, err := distributions.Load(data)
	if err != nil {
		return opts, fmt.Errorf("%s: %w", c.Registry, err)
	}
	opts.Registry = distributions.Default().Merge(custom)
	return opts, nil
}

// CacheKey identifies the settings that issues depend on.
func (c Config) CacheKey() string {
	d, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(d)
}

// New creates an engine from the configuration.
func New(logger *zap.Logger, config Config, timeout time.Duration) (*internal.Engine, error) {
	opts, err := config.SessionOptions()
	if err != nil {
		return nil, err
	}
	return internal.NewEngine(logger, internal.EngineOptions{
		PPL:     config.PPL,
		Session: opts,
		Rules:   config.Rules,
		Timeout: timeout,
	})
}

// Processor analyzes one file.
type Processor func(ctx context.Context, engine LintEngine, path string) ([]tt.Issue, error)

func ProcessFile(ctx context.Context, engine LintEngine, path string) ([]tt.Issue, error) {
	return engine.Run(ctx, path)
}

// WithCache answers from cache for unchanged files and stores fresh results.
func WithCache(cache *internal.Cache, processor Processor) Processor {
	return func(ctx context.Context, engine LintEngine, path string) ([]tt.Issue, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if issues, ok := cache.Get(path, src); ok {
			return issues, nil
		}
		issues, err := processor(ctx, engine, path)
		if err != nil {
			return nil, err
		}
		if err := cache.Set(path, src, issues); err != nil {
			return nil, fmt.Errorf("caching: %w", err)
		}
		return issues, nil
	}
}

// ProcessSources analyzes in-memory sources in order.
func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	sources map[string][]byte,
) ([]tt.Issue, error) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var allIssues []tt.Issue
	for _, name := range names {
		issues, err := engine.RunSource(ctx, name, sources[name])
		if err != nil {
			logger.Error("error processing source", zap.String("source", name), zap.Error(err))
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}
	return allIssues, nil
}

// ProcessFiles analyzes every Python file under paths concurrently. A file
// that fails, or panics, is logged and reported in the returned error;
// the other files are still analyzed.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	processor Processor,
	progress io.Writer,
) ([]tt.Issue, error) {
	var files []string
	for _, path := range paths {
		found, err := collectFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	if progress == nil || len(files) < 2 {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	var (
		mu        sync.Mutex
		allIssues []tt.Issue
		failures  []error
	)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, file := range files {
		file := file
		g.Go(func() error {
			defer bar.Add(1)
			if err := ctx.Err(); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", file, err))
				mu.Unlock()
				return nil
			}

			var (
				issues []tt.Issue
				err    error
				pc     panics.Catcher
			)
			pc.Try(func() { issues, err = processor(ctx, engine, file) })
			if r := pc.Recovered(); r != nil {
				err = r.AsError()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("error processing", zap.String("file", file), zap.Error(err))
				failures = append(failures, fmt.Errorf("%s: %w", file, err))
				return nil
			}
			allIssues = append(allIssues, issues...)
			return nil
		})
	}
	_ = g.Wait()

	sortIssues(allIssues)
	return allIssues, errors.Join(failures...)
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		if hasDesiredExtension(path) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if !d.IsDir() && hasDesiredExtension(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", path, err)
	}
	return files, nil
}

func isHidden(name string) bool {
	return (len(name) > 1 && name[0] == '.') || name == "__pycache__"
}

var desiredExtensions = map[string]bool{
	".py": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)]
}

func sortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		return a.Start.Column < b.Start.Column
	})
}

// HasErrors reports whether any issue has severity ERROR.
func HasErrors(issues []tt.Issue) bool {
	for _, issue := range issues {
		if issue.Severity == tt.SeverityError {
			return true
		}
	}
	return false
}
