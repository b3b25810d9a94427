package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tt "github.com/gnoverse/pplint/internal/types"
)

const cacheFileName = "pplint_cache.gob"

// DefaultCacheMaxAge is how long an entry stays valid unless changed with
// SetMaxAge.
const DefaultCacheMaxAge = 24 * time.Hour

type fileMetadata struct {
	// Hash covers the source and the configuration it was analyzed under.
	Hash string
}

type CacheEntry struct {
	Metadata     fileMetadata
	Issues       []tt.Issue
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache keeps the issues of analyzed files on disk. An entry is valid while
// neither the file content, the configuration key nor any dependency file
// changed.
type Cache struct {
	CacheDir         string
	configKey        string
	entries          map[string]CacheEntry
	mutex            sync.Mutex
	maxAge           time.Duration
	dependencyFiles  []string
	dependencyHashes map[string]string
}

// NewCache opens the cache in cacheDir. configKey identifies the analysis
// settings; dependencies are files such as a custom registry whose change
// invalidates every entry.
func NewCache(cacheDir, configKey string, dependencies ...string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir:         cacheDir,
		configKey:        configKey,
		entries:          make(map[string]CacheEntry),
		maxAge:           DefaultCacheMaxAge,
		dependencyFiles:  dependencies,
		dependencyHashes: make(map[string]string),
	}

	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	if cache.haveDependenciesChanged() {
		cache.entries = make(map[string]CacheEntry)
	}
	if err := cache.updateDependencyHashes(); err != nil {
		return nil, err
	}

	return cache, nil
}

type cacheFile struct {
	Entries      map[string]CacheEntry
	Dependencies map[string]string
}

func (c *Cache) load() error {
	file, err := os.Open(filepath.Join(c.CacheDir, cacheFileName))
	if os.IsNotExist(err) {
		return nil // cache file doesn't exist yet. This is fine.
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var stored cacheFile
	if err := gob.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	if stored.Entries != nil {
		c.entries = stored.Entries
	}
	if stored.Dependencies != nil {
		c.dependencyHashes = stored.Dependencies
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	stored := cacheFile{Entries: c.entries, Dependencies: c.dependencyHashes}
	if err := gob.NewEncoder(file).Encode(stored); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

// Set stores the issues of filename analyzed from src.
func (c *Cache) Set(filename string, src []byte, issues []tt.Issue) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.entries[filename] = CacheEntry{
		Metadata:     c.metadata(src),
		Issues:       issues,
		CreatedAt:    now,
		LastAccessed: now,
	}
	return c.save()
}

// Get returns the cached issues of filename if src is what they were
// computed from.
func (c *Cache) Get(filename string, src []byte) ([]tt.Issue, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[filename]
	if !exists {
		return nil, false
	}

	if c.isEntryInvalid(src, entry) {
		delete(c.entries, filename)
		return nil, false
	}

	entry.LastAccessed = time.Now()
	c.entries[filename] = entry

	return entry.Issues, true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

func (c *Cache) metadata(src []byte) fileMetadata {
	hash := md5.New()
	hash.Write(src)
	io.WriteString(hash, "\x00"+c.configKey)
	return fileMetadata{Hash: fmt.Sprintf("%x", hash.Sum(nil))}
}

func (c *Cache) isEntryInvalid(src []byte, entry CacheEntry) bool {
	// too old
	if c.maxAge > 0 && time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	return c.metadata(src) != entry.Metadata
}

func (c *Cache) haveDependenciesChanged() bool {
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil {
			return true
		}
		if hash != c.dependencyHashes[file] {
			return true
		}
	}
	return false
}

func (c *Cache) updateDependencyHashes() error {
	for _, file := range c.dependencyFiles {
		hash, err := getFileHash(file)
		if err != nil {
			return fmt.Errorf("failed to get hash for %s: %w", file, err)
		}
		c.dependencyHashes[file] = hash
	}
	return nil
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	_ = c.save() // ignore error as this is a manual operation
}

func getFileHash(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
