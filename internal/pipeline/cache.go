package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"
	"time"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
)

// cacheVersion invalidates persisted entries when the chunk serialization
// changes.
const cacheVersion = "1"

// CacheEntry 缓存条目：chunk 源文本哈希 → 各块的译文
type CacheEntry struct {
	Hash      string    `json:"hash"`
	Contents  []string  `json:"contents"`
	CreatedAt time.Time `json:"created_at"`
}

type cacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// ChunkCache caches translated chunk contents keyed by a SHA-256 hash of the
// chunk's source Markdown, persisted as a JSON file.
type ChunkCache struct {
	path  string
	cache map[string]CacheEntry
	mu    sync.RWMutex
}

// NewChunkCache creates a cache backed by the given file path. An empty path
// yields an in-memory cache that Save treats as a no-op.
func NewChunkCache(path string) *ChunkCache {
	return &ChunkCache{
		path:  path,
		cache: make(map[string]CacheEntry),
	}
}

// hashChunk hashes the chunk's source content.
func hashChunk(chunk *document.Chunk) string {
	h := sha256.New()
	for _, b := range chunk.Blocks {
		h.Write([]byte(b.Markdown()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached per-block translations for the chunk, if present
// and shape-compatible.
func (c *ChunkCache) Get(chunk *document.Chunk) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[hashChunk(chunk)]
	if !ok || len(entry.Contents) != len(chunk.Blocks) {
		return nil, false
	}
	return entry.Contents, true
}

// Put stores the chunk's current (translated) contents under its source hash.
// The hash must be computed by the caller before translation mutates the
// blocks; see Orchestrator.
func (c *ChunkCache) put(hash string, contents []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[hash] = CacheEntry{
		Hash:      hash,
		Contents:  contents,
		CreatedAt: time.Now(),
	}
}

// Load reads the cache file from disk. A missing file is not an error.
func (c *ChunkCache) Load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil || f.Version != cacheVersion {
		logger.Warn("discarding incompatible translation cache", logger.String("path", c.path))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range f.Entries {
		c.cache[e.Hash] = e
	}
	logger.Debug("translation cache loaded", logger.Int("entries", len(f.Entries)))
	return nil
}

// Save writes the cache file to disk.
func (c *ChunkCache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	f := cacheFile{Version: cacheVersion}
	for _, e := range c.cache {
		f.Entries = append(f.Entries, e)
	}
	c.mu.RUnlock()

	data, err := json.Marshal(&f)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// Len returns the number of cached entries.
func (c *ChunkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
