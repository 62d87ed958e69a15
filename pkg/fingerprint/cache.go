package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// cacheEntry is the persisted form of one cached fingerprint
type cacheEntry struct {
	Key       Key       `json:"key"`
	Algorithm Algorithm `json:"algorithm"`
	Hashes    []uint32  `json:"hashes"`
	CachedAt  time.Time `json:"cached_at"`
}

// Cache maps content keys to computed fingerprints. Reads and writes are
// safe from any goroutine; an insert is atomic so readers never observe a
// torn entry, and racing first computations resolve last-writer-wins.
// When a path is configured the cache also persists to a JSON file with an
// atomic rename, so fingerprints survive restarts.
type Cache struct {
	path   string
	logger logging.Logger

	mu      sync.RWMutex
	entries map[Key]*Fingerprint
}

// NewCache creates a cache. An empty path keeps it memory-only; otherwise
// the file is loaded if present and created lazily on first Put.
func NewCache(path string, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[Key]*Fingerprint),
	}

	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logger.Warn("Failed to load fingerprint cache, starting empty", logging.Fields{
			"path":  path,
			"error": err.Error(),
		})
	}
	return c
}

// Get returns the cached fingerprint for key if present
func (c *Cache) Get(key Key) (*Fingerprint, bool) {
	if key == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	fp, ok := c.entries[key]
	return fp, ok
}

// Put stores a fingerprint under key and persists when configured
func (c *Cache) Put(key Key, fp *Fingerprint) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if fp.Empty() {
		return errors.New("refusing to cache empty fingerprint")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = fp
	if c.path == "" {
		return nil
	}
	if err := c.save(); err != nil {
		return fmt.Errorf("persist fingerprint cache: %w", err)
	}
	return nil
}

// Clear drops every entry and removes the persisted file. Safe to call
// while computations are in flight; they may repopulate the cache after.
func (c *Cache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := len(c.entries)
	c.entries = make(map[Key]*Fingerprint)

	if c.path == "" {
		return cleared, nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cleared, fmt.Errorf("remove fingerprint cache file: %w", err)
	}
	return cleared, nil
}

// Len returns the number of cached fingerprints
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Path returns the persistence location, empty for memory-only caches
func (c *Cache) Path() string {
	return c.path
}

// load reads the persisted cache into memory
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[Key]*Fingerprint, len(entries))
	for _, entry := range entries {
		if entry.Key == "" || len(entry.Hashes) == 0 {
			continue
		}
		c.entries[entry.Key] = &Fingerprint{
			Algorithm: entry.Algorithm,
			Hashes:    entry.Hashes,
		}
	}

	c.logger.Debug("Loaded fingerprint cache", logging.Fields{
		"path":    c.path,
		"entries": len(c.entries),
	})
	return nil
}

// save writes the cache to disk atomically; callers hold the lock
func (c *Cache) save() error {
	entries := make([]cacheEntry, 0, len(c.entries))
	now := time.Now().UTC()
	for key, fp := range c.entries {
		entries = append(entries, cacheEntry{
			Key:       key,
			Algorithm: fp.Algorithm,
			Hashes:    fp.Hashes,
			CachedAt:  now,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
