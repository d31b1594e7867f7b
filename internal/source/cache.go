package source

import (
	"sync"
)

// InfoCache provides thread-safe caching of source metadata keyed by file
// path, so repeated requests against the same file read its header once.
//
// Entries remain until removed via Evict or Clear. Different paths to the
// same file (relative vs absolute) are separate entries.
type InfoCache struct {
	mu    sync.RWMutex
	infos map[string]Info
	open  func(path string) Reader
}

// NewInfoCache returns an empty cache reading files with FileReader.
func NewInfoCache() *InfoCache {
	return &InfoCache{
		infos: make(map[string]Info),
		open:  func(path string) Reader { return NewFileReader(path) },
	}
}

// Info returns the cached metadata for path, reading it on first use.
// Failed reads are not cached.
func (c *InfoCache) Info(path string) (Info, error) {
	c.mu.RLock()
	if info, ok := c.infos[path]; ok {
		c.mu.RUnlock()
		return info, nil
	}
	c.mu.RUnlock()

	info, err := c.open(path).Info()
	if err != nil {
		return Info{}, err
	}

	c.mu.Lock()
	c.infos[path] = info
	c.mu.Unlock()

	return info, nil
}

// Store records info for path, replacing any cached entry. Readers that
// learn more than the file header (EXIF orientation from an external tool,
// for example) use it to publish the richer metadata.
func (c *InfoCache) Store(path string, info Info) {
	c.mu.Lock()
	c.infos[path] = info
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *InfoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.infos)
}

// Evict removes path from the cache. Unknown paths are ignored.
func (c *InfoCache) Evict(path string) {
	c.mu.Lock()
	delete(c.infos, path)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *InfoCache) Clear() {
	c.mu.Lock()
	c.infos = make(map[string]Info)
	c.mu.Unlock()
}
