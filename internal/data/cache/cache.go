package cache

import (
	"sync"
	"time"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// Version is the cache format version. Bump it whenever parsing or
// pricing logic changes so stale cached entries are reparsed.
const Version = 2

// CachedFile holds the parse result for one physical file, valid only
// while modification time, size, and format version all still match.
type CachedFile struct {
	ModTime time.Time
	Size    int64
	Version int
	Entries []model.UsageEntry
}

// FileCache is an in-memory cache of parsed entries keyed by file path.
// It is the single shared mutable store of the parse pipeline; one
// parse/merge cycle owns it at a time (serialized by the engine), while
// concurrent readers are safe.
type FileCache struct {
	mu    sync.RWMutex
	files map[string]CachedFile
}

// NewFileCache creates an empty cache.
func NewFileCache() *FileCache {
	return &FileCache{
		files: make(map[string]CachedFile),
	}
}

// Get returns the cached entries for path when the cached modification
// time and size match the given current values and the format version is
// current. A mismatch silently invalidates the entry.
func (c *FileCache) Get(path string, modTime time.Time, size int64) ([]model.UsageEntry, bool) {
	c.mu.RLock()
	cached, ok := c.files[path]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if cached.Version != Version || !cached.ModTime.Equal(modTime) || cached.Size != size {
		c.mu.Lock()
		delete(c.files, path)
		c.mu.Unlock()
		return nil, false
	}
	return cached.Entries, true
}

// Set stores the parse result for path at the current format version.
func (c *FileCache) Set(path string, modTime time.Time, size int64, entries []model.UsageEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = CachedFile{
		ModTime: modTime,
		Size:    size,
		Version: Version,
		Entries: entries,
	}
}

// Invalidate drops the cached entry for a path.
func (c *FileCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
}

// Clear drops all cached entries.
func (c *FileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]CachedFile)
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
