package pathtree

import lru "github.com/hashicorp/golang-lru"

// NodeCache holds records the Engine has looked up as parents. The
// Engine evicts entries for every record it rewrites, but writes that
// bypass it (another process on the same store) are not seen, so keep
// caches short-lived or private to one writer.
type NodeCache interface {
	// Add caches the record with the given id.
	Add(key, value interface{})
	// Get retrieves a cached record by id.
	Get(key interface{}) (value interface{}, ok bool)
	// Remove evicts one id.
	Remove(key interface{})
	// Purge evicts everything.
	Purge()
}

// NewNodeCache creates a new ARC-based node cache of the given size.
func NewNodeCache(size int) NodeCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}

func (e *Engine) forget(id string) {
	if e.cache != nil {
		e.cache.Remove(id)
	}
}
