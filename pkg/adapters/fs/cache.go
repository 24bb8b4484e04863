package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// index is the persistent reference index: the distinct reference ids of the log
// plus the append offset they were computed up to.
type index struct {
	Version    int       `json:"version"`
	LogSize    int64     `json:"logSize"`    // Bytes of newline-terminated lines already indexed.
	LogModTime time.Time `json:"logModTime"` // Modification time of the log when indexed.
	Lines      int       `json:"lines"`      // Number of lines already indexed.
	RefIDs     []string  `json:"refIds"`     // First-seen order.

	seen  map[string]bool
	dirty bool
	mu    sync.RWMutex
}

// cache manages the loading, updating, and saving of the index.
type cache struct {
	Path  string // Path to .refman/index.json
	index *index
}

// newCache initializes a cache at the given path.
func newCache(rootPath, systemDir string) *cache {
	// Cache lives in {rootPath}/{systemDir}/index.json
	cachePath := filepath.Join(rootPath, systemDir, "index.json")

	return &cache{
		Path: cachePath,
		index: &index{
			Version: 1,
			seen:    make(map[string]bool),
		},
	}
}

// Load reads the cache from disk. If not found or invalid, starts from an empty index (no error).
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Version != 1 {
		// Corrupted or foreign: rebuild from the log.
		c.resetLocked()
		return nil
	}

	c.index.seen = make(map[string]bool, len(c.index.RefIDs))
	for _, id := range c.index.RefIDs {
		c.index.seen[id] = true
	}
	c.index.dirty = false
	return nil
}

// Save attempts to persist the cache to disk if it's dirty.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()

	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()

	return nil
}

// Fresh reports whether the index covers a log of exactly this size and mtime.
func (c *cache) Fresh(size int64, modTime time.Time) bool {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return c.index.LogSize == size && c.index.LogModTime.Equal(modTime)
}

// Resume returns where an incremental read of a log of the given size should start.
// A log smaller than the indexed offset was rewritten, so the index is reset.
func (c *cache) Resume(size int64) (offset int64, lines int) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	if size < c.index.LogSize {
		c.resetLocked()
	}
	return c.index.LogSize, c.index.Lines
}

// Extend records newly seen reference ids and the new indexed offset.
func (c *cache) Extend(ids []string, size int64, modTime time.Time, lines int) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	for _, id := range ids {
		if !c.index.seen[id] {
			c.index.seen[id] = true
			c.index.RefIDs = append(c.index.RefIDs, id)
		}
	}
	c.index.LogSize = size
	c.index.LogModTime = modTime
	c.index.Lines = lines
	c.index.dirty = true
}

// RefIDs returns a copy of the indexed reference ids.
func (c *cache) RefIDs() []string {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	if c.index.RefIDs == nil {
		return []string{}
	}
	return slices.Clone(c.index.RefIDs)
}

// Len returns the number of indexed references.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.RefIDs)
}

func (c *cache) resetLocked() {
	c.index.Version = 1
	c.index.LogSize = 0
	c.index.LogModTime = time.Time{}
	c.index.Lines = 0
	c.index.RefIDs = nil
	c.index.seen = make(map[string]bool)
	c.index.dirty = true
}
