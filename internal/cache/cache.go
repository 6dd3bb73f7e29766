package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// shardCount is the number of shards. Must be a power of 2 for fast modulo
// via bitwise AND.
const (
	shardCount = 16
	shardMask  = shardCount - 1
)

// Hasher computes the hash of a key for shard selection.
type Hasher func(string) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Registry maps descriptor fingerprints to live objects.
type Registry[V comparable] struct {
	shards [shardCount]*shard[V]
	hasher Hasher

	hits   atomic.Uint64
	misses atomic.Uint64
}

type shard[V comparable] struct {
	mu      sync.Mutex
	entries map[string]V
}

// New creates an empty registry. A nil hasher selects StringHasher.
func New[V comparable](hasher Hasher) *Registry[V] {
	if hasher == nil {
		hasher = StringHasher
	}
	r := &Registry[V]{hasher: hasher}
	for i := range r.shards {
		r.shards[i] = &shard[V]{entries: make(map[string]V)}
	}
	return r
}

func (r *Registry[V]) shardFor(key string) *shard[V] {
	return r.shards[r.hasher(key)&shardMask]
}

// Acquire returns the live object registered under key, or registers the
// result of create. An existing object is returned only if ref succeeds in
// taking a reference on it; an object whose last reference is concurrently
// being dropped is replaced. The boolean reports whether create was called.
//
// create runs under the shard lock and must not call back into the registry.
func (r *Registry[V]) Acquire(key string, ref func(V) bool, create func() V) (V, bool) {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok && ref(v) {
		r.hits.Add(1)
		return v, false
	}

	r.misses.Add(1)
	v := create()
	s.entries[key] = v
	return v, true
}

// Remove unregisters key if it still maps to v. A newer object registered
// under the same key is left alone.
func (r *Registry[V]) Remove(key string, v V) bool {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[key]; ok && cur == v {
		delete(s.entries, key)
		return true
	}
	return false
}

// Len returns the number of registered objects.
func (r *Registry[V]) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns registry statistics.
func (r *Registry[V]) Stats() Stats {
	return Stats{
		Len:    r.Len(),
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}
}

// Stats contains registry statistics.
type Stats struct {
	// Len is the current number of registered objects.
	Len int
	// Hits is the number of lookups that returned an existing object.
	Hits uint64
	// Misses is the number of lookups that created a new object.
	Misses uint64
}
