package cmdbuf

import (
	"fmt"
	"sync/atomic"
)

// refCounter is implemented by every reference-counted object.
type refCounter interface {
	Reference()
	Release()
}

// refCounted implements shared ownership for device objects. Objects start
// with one reference owned by the application. Every command record and
// every object that points at another object holds one more.
type refCounted struct {
	refs      atomic.Int32
	onRelease func()
}

func (r *refCounted) initRefs(onRelease func()) {
	r.refs.Store(1)
	r.onRelease = onRelease
}

// Reference adds a reference to the object.
func (r *refCounted) Reference() {
	r.refs.Add(1)
}

// tryReference adds a reference unless the object is already released.
func (r *refCounted) tryReference() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference. Dropping the last one releases the
// references the object holds on other objects.
func (r *refCounted) Release() {
	n := r.refs.Add(-1)
	switch {
	case n == 0:
		if r.onRelease != nil {
			r.onRelease()
		}
	case n < 0:
		panic(fmt.Sprintf("cmdbuf: reference count dropped to %d", n))
	}
}

// RefCount returns the current number of references.
func (r *refCounted) RefCount() int32 {
	return r.refs.Load()
}

// IsReleased reports whether the last reference has been dropped.
func (r *refCounted) IsReleased() bool {
	return r.refs.Load() <= 0
}
