// Package tilecache is the filesystem tile cache (component C): one file per
// (kind, source, z, x, y), mtime as the authoritative freshness timestamp,
// no index and no locking. Grounded on the desktop client's
// PersistentTileCache, but deliberately simpler — the spec calls for a
// best-effort cache with no metadata index, since the coalescer upstream
// already prevents duplicate writers.
package tilecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Cache is a filesystem-backed tile store rooted at a single directory.
type Cache struct {
	root string
}

// New returns a Cache rooted at root. The directory is created lazily on
// first write.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache's base directory.
func (c *Cache) Root() string { return c.root }

// Entry is a lazy byte provider plus the cached file's mtime. Callers that
// only need the timestamp (e.g. the resolver's freshness check) never pay
// the read cost.
type Entry struct {
	ModTime time.Time
	Open    func() ([]byte, error)
}

// Path returns the on-disk path for (kind, source, z, x, y).
func (c *Cache) Path(kind, source string, z, x, y int) string {
	return filepath.Join(c.root, kind, source, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y))
}

// Get returns the cache entry for a tile, or ok=false if no file exists.
func (c *Cache) Get(kind, source string, z, x, y int) (Entry, bool) {
	path := c.Path(kind, source, z, x, y)
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		ModTime: info.ModTime(),
		Open:    func() ([]byte, error) { return os.ReadFile(path) },
	}, true
}

// ModTime is a cheap stat-only check for when only the timestamp matters.
func (c *Cache) ModTime(kind, source string, z, x, y int) (time.Time, bool) {
	info, err := os.Stat(c.Path(kind, source, z, x, y))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Put writes bytes to the cache path, creating intermediate directories.
// Last-write-wins is acceptable: the resolver's request coalescing makes
// concurrent writers to the same key rare, so no locking is used here.
func (c *Cache) Put(kind, source string, z, x, y int, data []byte) error {
	path := c.Path(kind, source, z, x, y)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("tilecache: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("tilecache: writing %s: %w", path, err)
	}
	return nil
}

// Stats walks the cache root and reports aggregate entry count and size.
// Not part of the spec's filesystem cache contract, but every cache in the
// example pack exposes something like it, and it backs the supplemented
// /pmtiles/cache-stats endpoint (see SPEC_FULL.md).
func (c *Cache) Stats() (entries int, sizeBytes int64, err error) {
	walkErr := filepath.Walk(c.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		entries++
		sizeBytes += info.Size()
		return nil
	})
	if walkErr != nil {
		return 0, 0, fmt.Errorf("tilecache: walking %s: %w", c.root, walkErr)
	}
	return entries, sizeBytes, nil
}
