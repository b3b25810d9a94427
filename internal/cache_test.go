package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnoverse/pplint/internal/types"
)

func sampleIssues(filename string) []tt.Issue {
	return []tt.Issue{
		{
			Rule:     "constraint-parameter",
			Category: "constraints",
			Filename: filename,
			Message:  "test issue",
			Start:    tt.Position{Filename: filename, Line: 5, Column: 5},
			End:      tt.Position{Filename: filename, Line: 5, Column: 44},
			Severity: tt.SeverityError,
		},
	}
}

func TestCache(t *testing.T) {
	tmpDir := createTempDir(t, "cache-test")
	cacheDir := filepath.Join(tmpDir, "cache")
	cache, err := NewCache(cacheDir, "pyro")
	require.NoError(t, err)

	src := []byte(discreteModel)

	t.Run("SaveAndLoad", func(t *testing.T) {
		issues := sampleIssues("model.py")
		require.NoError(t, cache.Set("model.py", src, issues))

		loaded, found := cache.Get("model.py", src)
		assert.True(t, found)
		assert.Equal(t, issues, loaded)

		reopened, err := NewCache(cacheDir, "pyro")
		require.NoError(t, err)
		loaded, found = reopened.Get("model.py", src)
		assert.True(t, found)
		assert.Equal(t, issues, loaded)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, found := cache.Get("nonexistent.py", src)
		assert.False(t, found)
	})

	t.Run("SourceModified", func(t *testing.T) {
		require.NoError(t, cache.Set("modified.py", src, sampleIssues("modified.py")))
		_, found := cache.Get("modified.py", append([]byte("# changed\n"), src...))
		assert.False(t, found)
	})

	t.Run("ConfigChanged", func(t *testing.T) {
		require.NoError(t, cache.Set("config.py", src, sampleIssues("config.py")))
		other, err := NewCache(cacheDir, "pymc")
		require.NoError(t, err)
		_, found := other.Get("config.py", src)
		assert.False(t, found)
	})

	t.Run("Expired", func(t *testing.T) {
		require.NoError(t, cache.Set("old.py", src, sampleIssues("old.py")))
		cache.SetMaxAge(time.Nanosecond)
		time.Sleep(time.Millisecond)
		_, found := cache.Get("old.py", src)
		assert.False(t, found)
		cache.SetMaxAge(DefaultCacheMaxAge)
	})
}

func TestCacheDependencies(t *testing.T) {
	tmpDir := createTempDir(t, "cache-deps")
	cacheDir := filepath.Join(tmpDir, "cache")
	registry := filepath.Join(tmpDir, "registry.yaml")
	require.NoError(t, os.WriteFile(registry, []byte("Normal: {}\n"), 0o644))

	cache, err := NewCache(cacheDir, "", registry)
	require.NoError(t, err)
	require.NoError(t, cache.Set("model.py", []byte("x"), sampleIssues("model.py")))

	reopened, err := NewCache(cacheDir, "", registry)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())

	require.NoError(t, os.WriteFile(registry, []byte("Beta: {}\n"), 0o644))
	changed, err := NewCache(cacheDir, "", registry)
	require.NoError(t, err)
	assert.Equal(t, 0, changed.Len())
}

func TestCacheInvalidateAll(t *testing.T) {
	cache, err := NewCache(filepath.Join(createTempDir(t, "cache-invalidate"), "cache"), "")
	require.NoError(t, err)
	require.NoError(t, cache.Set("a.py", []byte("a"), nil))
	require.NoError(t, cache.Set("b.py", []byte("b"), nil))
	assert.Equal(t, 2, cache.Len())

	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Len())
}
