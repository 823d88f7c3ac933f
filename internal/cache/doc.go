// Package cache provides a small generic LRU cache with a soft limit.
//
//	c := cache.New[string, int](100)
//	c.Set("key", 42)
//	value, ok := c.Get("key")
//
// When an insertion pushes the cache over its soft limit, the least recently
// used quarter of the entries is evicted.
//
// # Thread Safety
//
// Cache is safe for concurrent use.
package cache
