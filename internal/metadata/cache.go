package metadata

import "sync"

// MemoryCoverCache is a process-local CoverCache
type MemoryCoverCache struct {
	mu     sync.RWMutex
	covers map[string]string
	isbns  map[string]string
}

// NewMemoryCoverCache creates an empty cache
func NewMemoryCoverCache() *MemoryCoverCache {
	return &MemoryCoverCache{
		covers: make(map[string]string),
		isbns:  make(map[string]string),
	}
}

// CacheCoverURL stores url under catalogID. Empty values are not cached.
func (m *MemoryCoverCache) CacheCoverURL(catalogID, url string) (string, error) {
	if catalogID == "" || url == "" {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.covers[catalogID] = url
	return catalogID, nil
}

func (m *MemoryCoverCache) CoverURL(catalogID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.covers[catalogID], nil
}

func (m *MemoryCoverCache) CacheISBN(isbn, catalogID string) error {
	if isbn == "" || catalogID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isbns[isbn] = catalogID
	return nil
}

func (m *MemoryCoverCache) CatalogIDForISBN(isbn string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isbns[isbn], nil
}
