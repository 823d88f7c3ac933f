package gpu

import (
	"hash/fnv"
	"sync"

	"github.com/gogpu/boids/internal/cache"
)

// reflectionCacheLimit is the soft limit of cached shader reflections.
const reflectionCacheLimit = 32

// reflections is shared by every stage in the process. A flock creates four
// stages from four sources, and Reset or a second controller reuses them.
var reflections = newReflectionCache(reflectionCacheLimit)

// reflectionCache memoizes reflectShader by source text. Entries are
// immutable once stored, so stages share them without copying. Failed
// reflections are not cached.
type reflectionCache struct {
	mu      sync.Mutex // serializes lookups so a source is parsed once
	entries *cache.Cache[uint64, *reflectionEntry]

	hits, misses uint64
}

// reflectionEntry keeps the source next to its reflection so a hash
// collision is treated as a miss.
type reflectionEntry struct {
	source string
	refl   *shaderReflection
}

func newReflectionCache(softLimit int) *reflectionCache {
	return &reflectionCache{
		entries: cache.New[uint64, *reflectionEntry](softLimit),
	}
}

func sourceKey(source string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source)) // fnv.Write never returns an error
	return h.Sum64()
}

// get returns the reflection of source, parsing it on a miss.
func (c *reflectionCache) get(label, source string) (*shaderReflection, error) {
	key := sourceKey(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries.Get(key); ok && e.source == source {
		c.hits++
		return e.refl, nil
	}
	c.misses++

	refl, err := reflectShader(label, source)
	if err != nil {
		return nil, err
	}
	c.entries.Set(key, &reflectionEntry{source: source, refl: refl})
	return refl, nil
}

// stats returns the entry count and the hit and miss counters.
func (c *reflectionCache) stats() (entries int, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len(), c.hits, c.misses
}
