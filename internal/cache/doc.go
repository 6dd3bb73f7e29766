// Package cache provides the content-addressed object registry used to
// deduplicate immutable device objects.
//
// Objects are keyed by a fingerprint of their descriptor. While an object is
// alive, every lookup with the same fingerprint returns that same object, so
// callers can compare objects by pointer identity. The registry does not own
// the objects: it holds no reference on them and an object removes itself
// when its last reference is dropped.
//
//	reg := cache.New[*Layout](cache.StringHasher)
//	layout, created := reg.Acquire(key, (*Layout).tryReference, func() *Layout {
//	    return newLayout(desc)
//	})
//	...
//	reg.Remove(key, layout) // from the layout's release hook
//
// # Thread Safety
//
// Registry is safe for concurrent use. It must not be copied after creation.
package cache
