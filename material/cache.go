package material

// Cache memoizes materials by key. The zero value is ready to use.
// Cache is not safe for concurrent use; it is owned by the render thread.
type Cache[K comparable, M any] struct {
	m       map[K]M
	hits    uint64
	lookups uint64
}

// GetOrCreate returns the material cached under key. On a miss create is
// called exactly once and its result stored. If create fails nothing is
// stored and the error is returned.
func (c *Cache[K, M]) GetOrCreate(key K, create func() (M, error)) (M, error) {
	c.lookups++
	if v, ok := c.m[key]; ok {
		c.hits++
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero M
		return zero, err
	}
	if c.m == nil {
		c.m = make(map[K]M)
	}
	c.m[key] = v
	return v, nil
}

// Get returns the material cached under key, if any.
func (c *Cache[K, M]) Get(key K) (M, bool) {
	v, ok := c.m[key]
	return v, ok
}

// Clear removes all entries. Statistics are kept.
func (c *Cache[K, M]) Clear() { clear(c.m) }

// Len returns the number of cached materials.
func (c *Cache[K, M]) Len() int { return len(c.m) }

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (c *Cache[K, M]) Range(fn func(key K, m M) bool) {
	for k, v := range c.m {
		if !fn(k, v) {
			return
		}
	}
}

// CacheHits returns the amount of lookups served from the cache during its lifetime.
func (c *Cache[K, M]) CacheHits() uint64 { return c.hits }

// Lookups returns the total amount of lookups during the cache's lifetime, including hits.
func (c *Cache[K, M]) Lookups() uint64 { return c.lookups }
