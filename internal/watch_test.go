package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	tt "github.com/gnoverse/pplint/internal/types"
)

func TestWatcherReanalyzesOnWrite(t *testing.T) {
	dir := createTempDir(t, "watch-test")
	engine, err := NewEngine(zap.NewNop(), EngineOptions{})
	require.NoError(t, err)

	type report struct {
		name   string
		issues []tt.Issue
		err    error
	}
	reports := make(chan report, 4)
	w, err := NewWatcher(engine, zap.NewNop(), func(name string, issues []tt.Issue, err error) {
		reports <- report{name, issues, err}
	}, dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	path := filepath.Join(dir, "model.py")
	require.NoError(t, os.WriteFile(path, []byte(discreteModel), 0o644))

	select {
	case r := <-reports:
		require.NoError(t, r.err)
		assert.Equal(t, path, r.name)
		assert.NotEmpty(t, r.issues)
	case <-time.After(5 * time.Second):
		t.Fatal("no report after writing model.py")
	}
}
