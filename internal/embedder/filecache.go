package embedder

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheFileFormat is the on-disk JSON shape of the embedding cache.
type cacheFileFormat struct {
	Embeddings  map[string][]float32 `json:"embeddings"`
	LastUpdated time.Time            `json:"last_updated"`
}

// FileCache is a persistent key->vector embedding cache backed by a JSON
// file. Providers consult it by content hash before calling out, so repeat
// ingests of unchanged text skip the provider round-trip entirely.
//
// The cache owns its file: no other component reads or writes it. A missing
// or corrupt file is never an error; it just yields an empty cache.
type FileCache struct {
	mu          sync.RWMutex
	embeddings  map[string][]float32
	lastUpdated time.Time
	path        string
}

// LoadCache reads the cache file at path, returning an empty cache when the
// file is missing or unparseable. Load failures are logged, not surfaced.
func LoadCache(path string) *FileCache {
	c := &FileCache{
		embeddings:  make(map[string][]float32),
		lastUpdated: time.Now(),
		path:        path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("embedding cache: failed to read %s: %v", path, err)
		}
		return c
	}

	var parsed cacheFileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Printf("embedding cache: corrupt file %s, starting empty: %v", path, err)
		return c
	}

	if parsed.Embeddings != nil {
		c.embeddings = parsed.Embeddings
	}
	if !parsed.LastUpdated.IsZero() {
		c.lastUpdated = parsed.LastUpdated
	}
	return c
}

// Get returns a copy of the cached vector for key, if present.
func (c *FileCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vec, ok := c.embeddings[key]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a copy of vec under key and bumps the last-updated stamp.
func (c *FileCache) Set(key string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddings[key] = stored
	c.lastUpdated = time.Now()
}

// Size returns the number of cached vectors.
func (c *FileCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.embeddings)
}

// Save writes the cache to its backing file, creating parent directories as
// needed.
func (c *FileCache) Save() error {
	c.mu.RLock()
	out := cacheFileFormat{
		Embeddings:  make(map[string][]float32, len(c.embeddings)),
		LastUpdated: c.lastUpdated,
	}
	for k, v := range c.embeddings {
		out.Embeddings[k] = v
	}
	c.mu.RUnlock()

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Clear empties the in-memory map and removes the backing file if present.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	c.embeddings = make(map[string][]float32)
	c.lastUpdated = time.Now()
	c.mu.Unlock()

	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the backing file path.
func (c *FileCache) Path() string {
	return c.path
}
