package internal

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnoverse/pplint/internal/types"
)

// watchDelay groups bursts of writes to one file into a single run.
const watchDelay = 100 * time.Millisecond

// ReportFunc receives the issues of a re-analyzed file.
type ReportFunc func(filename string, issues []tt.Issue, err error)

// Watcher re-runs the engine on Python files when they are written.
type Watcher struct {
	engine  *Engine
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	report  ReportFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher watches every directory below dirs.
func NewWatcher(engine *Engine, logger *zap.Logger, report ReportFunc, dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	w := &Watcher{
		engine:  engine,
		logger:  logger,
		watcher: fw,
		report:  report,
		pending: make(map[string]*time.Timer),
	}
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return fw.Add(path)
			}
			return nil
		})
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	return w, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleFileEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if filepath.Ext(event.Name) != ".py" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok {
		t.Reset(watchDelay)
		return
	}
	name := event.Name
	w.pending[name] = time.AfterFunc(watchDelay, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()

		w.logger.Debug("file changed", zap.String("file", name))
		issues, err := w.engine.Run(ctx, name)
		w.report(name, issues, err)
	})
}
