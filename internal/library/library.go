// Package library resolves part identities against local part-library
// sources: zip archives and plain directories, searched in priority
// order with an in-memory cache. It is the fetch collaborator the
// model loader reads file bodies through.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/brickhub/ldmodel/pkg/partzip"
)

// Source supplies the raw bytes behind a part identity.
type Source interface {
	Read(id string) ([]byte, error)
	Close() error
}

// Manager resolves part identities through an ordered list of sources.
// It implements the loader's Fetcher interface.
type Manager struct {
	sources []Source
	cache   *Cache
	mu      sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{cache: NewCache()}
}

// AddArchive adds a zip part-library archive.
// Sources are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := partzip.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	m.AddSource(archiveSource{archive})
	return nil
}

// AddDir adds a directory holding part files.
func (m *Manager) AddDir(root string) {
	m.AddSource(dirSource{root: root})
}

// AddSource appends a source with the highest priority so far.
func (m *Manager) AddSource(s Source) {
	m.mu.Lock()
	m.sources = append(m.sources, s)
	m.mu.Unlock()
}

// Fetch returns the text body for a part identity, satisfying the
// loader's Fetcher interface. Fetches may run concurrently.
func (m *Manager) Fetch(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := m.Load(id)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Load loads a file from the sources, consulting the cache first.
func (m *Manager) Load(id string) ([]byte, error) {
	if data, ok := m.cache.Get(id); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		data, err := m.sources[i].Read(id)
		if err == nil {
			m.cache.Set(id, data)
			return data, nil
		}
	}
	return nil, fmt.Errorf("part file not found: %s", id)
}

// Close closes all sources and clears the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		s.Close()
	}
	m.sources = nil
	m.cache.Clear()
}

// archiveSource adapts a partzip archive to the Source interface.
type archiveSource struct {
	archive *partzip.Archive
}

func (s archiveSource) Read(id string) ([]byte, error) { return s.archive.Read(id) }
func (s archiveSource) Close() error                   { return s.archive.Close() }

// dirSource reads part files from a directory tree, trying the same
// sub-directory layout archives use.
type dirSource struct {
	root string
}

var dirPrefixes = []string{"", "parts", "p", "models"}

func (s dirSource) Read(id string) ([]byte, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(strings.ToLower(id), "\\", "/"))
	for _, prefix := range dirPrefixes {
		data, err := os.ReadFile(filepath.Join(s.root, prefix, rel))
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("not found under %s: %s", s.root, id)
}

func (s dirSource) Close() error { return nil }

// Cache is a simple in-memory cache for loaded part files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
