package metadata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCoverCache(t *testing.T) {
	cache := NewMemoryCoverCache()

	id, err := cache.CacheCoverURL("111", testCoverURL)
	require.NoError(t, err)
	assert.Equal(t, "111", id)

	url, err := cache.CoverURL("111")
	require.NoError(t, err)
	assert.Equal(t, testCoverURL, url)

	url, err = cache.CoverURL("missing")
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, cache.CacheISBN("9788960177420", "111"))
	id, err = cache.CatalogIDForISBN("9788960177420")
	require.NoError(t, err)
	assert.Equal(t, "111", id)
}

func TestMemoryCoverCacheRejectsEmpty(t *testing.T) {
	cache := NewMemoryCoverCache()

	id, err := cache.CacheCoverURL("111", "")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = cache.CacheCoverURL("", testCoverURL)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMemoryCoverCacheConcurrent(t *testing.T) {
	cache := NewMemoryCoverCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.CacheCoverURL("111", testCoverURL)
			_, _ = cache.CoverURL("111")
		}()
	}
	wg.Wait()

	url, _ := cache.CoverURL("111")
	assert.Equal(t, testCoverURL, url)
}
