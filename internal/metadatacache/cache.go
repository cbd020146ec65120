package metadatacache

import (
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCapacity bounds the number of cached responses per run.
	DefaultCapacity = 10_000

	keySeparatorConstant         = "/"
	fetchFunctionMissingConstant = "fetch function not configured"
	cacheNotInitializedConstant  = "metadata cache not initialized"
)

// ErrFetchFunctionMissing indicates GetOrFetch was called without a fetch function.
var ErrFetchFunctionMissing = errors.New(fetchFunctionMissingConstant)

// ErrCacheNotInitialized indicates a nil Cache receiver.
var ErrCacheNotInitialized = errors.New(cacheNotInitializedConstant)

// FetchFunction produces the value for a missing key.
type FetchFunction func() ([]byte, error)

// Cache is a bounded least-recently-used store of raw API response bodies.
// Concurrent misses on the same key share a single fetch.
type Cache struct {
	entries  *lru.Cache[string, []byte]
	inflight singleflight.Group
}

// New constructs a Cache holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, creationError := lru.New[string, []byte](capacity)
	if creationError != nil {
		return nil, creationError
	}
	return &Cache{entries: entries}, nil
}

// Key normalizes a repository identity into a cache key.
func Key(host string, owner string, repository string) string {
	components := []string{host, owner, repository}
	for componentIndex := range components {
		components[componentIndex] = strings.ToLower(strings.TrimSpace(components[componentIndex]))
	}
	return strings.Join(components, keySeparatorConstant)
}

// GetOrFetch returns the cached value for key, invoking fetch on a miss.
// Failed fetches are never stored.
func (cache *Cache) GetOrFetch(key string, fetch FetchFunction) ([]byte, error) {
	if cache == nil || cache.entries == nil {
		return nil, ErrCacheNotInitialized
	}
	if fetch == nil {
		return nil, ErrFetchFunctionMissing
	}

	if cachedValue, found := cache.entries.Get(key); found {
		return cachedValue, nil
	}

	sharedValue, fetchError, _ := cache.inflight.Do(key, func() (any, error) {
		if cachedValue, found := cache.entries.Get(key); found {
			return cachedValue, nil
		}
		fetchedValue, fetchError := fetch()
		if fetchError != nil {
			return nil, fetchError
		}
		cache.entries.Add(key, fetchedValue)
		return fetchedValue, nil
	})
	if fetchError != nil {
		return nil, fetchError
	}
	return sharedValue.([]byte), nil
}

// Len reports the number of cached entries.
func (cache *Cache) Len() int {
	if cache == nil || cache.entries == nil {
		return 0
	}
	return cache.entries.Len()
}

// Contains reports whether key is cached without updating its recency.
func (cache *Cache) Contains(key string) bool {
	if cache == nil || cache.entries == nil {
		return false
	}
	return cache.entries.Contains(key)
}
