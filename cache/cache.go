// Package cache stores analysis results on disk.
// Entries are keyed by a hash of the analyzed content, so a changed input
// never hits a stale entry. Each operation gets its own subdirectory:
//
//	<dir>/<operation>/<key>.json
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const defaultOperation = "misc"

// Entry represents a cached result.
type Entry struct {
	// Key is the cache key (content hash + operation + options)
	Key string `json:"key"`

	// ContentHash is the SHA256 hash of the analyzed input
	ContentHash string `json:"content_hash"`

	// Operation names what produced the payload (e.g. "analyze")
	Operation string `json:"operation"`

	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Stats tracks cache performance.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	Evictions  int64 `json:"evictions"`
	TotalBytes int64 `json:"total_bytes"`
}

// Cache is a file-backed result cache. It is safe for concurrent use.
type Cache struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	enabled    bool

	mu    sync.Mutex
	stats Stats
}

// Options configures the cache.
type Options struct {
	// Dir is the cache directory (default: .cgdemo/cache)
	Dir string

	// TTL is the cache entry TTL (0 = no expiry)
	TTL time.Duration

	// MaxEntries caps the entry count; the least recently used entries go
	// first (0 = unlimited)
	MaxEntries int

	Enabled bool
}

// DefaultOptions returns default cache options.
func DefaultOptions() Options {
	return Options{
		Dir:        filepath.Join(".cgdemo", "cache"),
		MaxEntries: 64,
		Enabled:    true,
	}
}

// New creates a new cache.
func New(opts Options) (*Cache, error) {
	if !opts.Enabled {
		return &Cache{}, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &Cache{
		dir:        opts.Dir,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		enabled:    true,
	}, nil
}

// MakeKey creates a cache key from a content hash, an operation and a
// fingerprint of the options that shaped the result.
func MakeKey(contentHash, operation, options string) string {
	sum := sha256.Sum256([]byte(contentHash + "\x00" + operation + "\x00" + options))
	return hex.EncodeToString(sum[:16])
}

// ContentHash computes a SHA256 hash of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFiles hashes the names and contents of files, in the order given.
func HashFiles(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", p, err)
		}
		fmt.Fprintf(h, "%s\x00", filepath.ToSlash(p))
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", p, err)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint renders options as a stable string for MakeKey.
func Fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

func (c *Cache) entryPath(operation, key string) string {
	if operation == "" {
		operation = defaultOperation
	}
	return filepath.Join(c.dir, operation, key+".json")
}

func (c *Cache) count(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// Get retrieves a cached entry. A hit refreshes the entry's modification
// time, which is what eviction orders by.
func (c *Cache) Get(operation, key string) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.entryPath(operation, key)
	entry, err := readEntry(path)
	if err != nil {
		c.count(&c.stats.Misses, 1)
		return nil, false
	}

	if c.expired(entry, time.Now()) {
		if os.Remove(path) == nil {
			c.count(&c.stats.Evictions, 1)
		}
		c.count(&c.stats.Misses, 1)
		return nil, false
	}

	now := time.Now()
	os.Chtimes(path, now, now)
	c.count(&c.stats.Hits, 1)
	return entry, true
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Cache) expired(e *Entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.CreatedAt) > c.ttl
}

// Load decodes the result cached for contentHash/operation/options into v.
// It reports whether there was a usable entry; an entry whose payload no
// longer decodes into v is deleted.
func (c *Cache) Load(contentHash, operation, options string, v any) bool {
	key := MakeKey(contentHash, operation, options)
	entry, ok := c.Get(operation, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(entry.Payload, v); err != nil {
		c.Delete(operation, key)
		return false
	}
	return true
}

// Set writes an entry, replacing any entry with the same key, then evicts
// down to MaxEntries.
func (c *Cache) Set(entry *Entry) error {
	if !c.enabled {
		return nil
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	path := c.entryPath(entry.Operation, entry.Key)
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	c.mu.Lock()
	c.stats.Writes++
	c.stats.TotalBytes += int64(len(data))
	c.mu.Unlock()

	if c.maxEntries > 0 {
		return c.prune(time.Now())
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Store caches v as the result for contentHash/operation/options.
func (c *Cache) Store(contentHash, operation, options string, v any) error {
	if !c.enabled {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	return c.Set(&Entry{
		Key:         MakeKey(contentHash, operation, options),
		ContentHash: contentHash,
		Operation:   operation,
		Payload:     payload,
	})
}

// Delete removes an entry from the cache.
func (c *Cache) Delete(operation, key string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.entryPath(operation, key))
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil {
		c.count(&c.stats.Evictions, 1)
	}
	return err
}

type fileInfo struct {
	path    string
	modTime time.Time
}

// entries lists the entry files, most recently used first.
func (c *Cache) entries() ([]fileInfo, error) {
	var files []fileInfo
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileInfo{path: path, modTime: info.ModTime()})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	return files, err
}

func (c *Cache) remove(paths []string) {
	var n int64
	for _, p := range paths {
		if os.Remove(p) == nil {
			n++
		}
	}
	c.count(&c.stats.Evictions, n)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	files, err := c.entries()
	if err != nil {
		return err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	c.remove(paths)

	c.mu.Lock()
	c.stats.TotalBytes = 0
	c.mu.Unlock()
	return nil
}

// Cleanup removes expired entries and evicts down to MaxEntries.
func (c *Cache) Cleanup() error {
	if !c.enabled {
		return nil
	}
	return c.prune(time.Now())
}

func (c *Cache) prune(now time.Time) error {
	files, err := c.entries()
	if err != nil {
		return err
	}

	var drop []string
	kept := 0
	for _, f := range files {
		if c.ttl > 0 {
			if e, err := readEntry(f.path); err == nil && c.expired(e, now) {
				drop = append(drop, f.path)
				continue
			}
		}
		kept++
		if c.maxEntries > 0 && kept > c.maxEntries {
			drop = append(drop, f.path)
		}
	}
	c.remove(drop)
	return nil
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	if !c.enabled {
		return 0
	}
	files, _ := c.entries()
	return len(files)
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HitRate returns the cache hit rate.
func (c *Cache) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
