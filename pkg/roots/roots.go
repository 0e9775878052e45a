// Package roots implements the process-wide strong-reference holder:
// named roots (stored as real "__root_<name>" members on a backing
// object, so they show up in ordinary member enumeration) and anonymous
// roots keyed by a monotonically increasing 64-bit handle.
//
// The root set is the one piece of this otherwise single-threaded,
// cooperative runtime that takes an internal lock: it is reachable from
// arbitrary collaborators (mainloop callbacks, plugin teardown, signal
// handlers) that may run from different goroutines in a Go host even
// though the object graph itself assumes single-threaded access.
package roots

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

const namedPrefix = "__root_"

var nextHandle uint64

// Roots is the process-wide root set.
type Roots struct {
	mu      sync.Mutex
	backing *object.Object
	anon    map[uint64]variant.Variant
}

// New creates an empty root set.
func New() *Roots {
	return &Roots{backing: object.New(), anon: make(map[uint64]variant.Variant)}
}

// Add installs obj as a named root, taking a strong reference. It fails
// with Exists if name is already rooted.
func (r *Roots) Add(name string, obj *object.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := namedPrefix + name
	if _, ok := r.backing.Lookup(key); ok {
		return deaierr.New(deaierr.Exists, "root %q already present", name)
	}
	_, err := r.backing.AddMemberMove(key, variant.OBJECT, variant.OfObject(obj.Ref()))
	return err
}

// Remove drops the named root, releasing its strong reference. NotFound if
// absent.
func (r *Roots) Remove(name string) error {
	r.mu.Lock()
	key := namedPrefix + name
	if _, ok := r.backing.Lookup(key); !ok {
		r.mu.Unlock()
		return deaierr.New(deaierr.NotFound, "root %q not found", name)
	}
	r.mu.Unlock()
	// DeleteMemberRaw frees the held OBJECT variant, which Unrefs obj; that
	// Unref can cascade into an arbitrary destructor, so it must run outside
	// the lock (a destructor that itself touches this root set must not
	// deadlock against its own caller).
	r.backing.DeleteMemberRaw(key)
	return nil
}

// AddAnonymous roots obj under a freshly allocated handle and returns it.
func (r *Roots) AddAnonymous(obj *object.Object) uint64 {
	h := atomic.AddUint64(&nextHandle, 1)
	r.mu.Lock()
	r.anon[h] = variant.OfObject(obj.Ref())
	r.mu.Unlock()
	return h
}

// RemoveAnonymous drops the anonymous root handle, releasing its strong
// reference. Reports whether handle was present.
func (r *Roots) RemoveAnonymous(handle uint64) bool {
	r.mu.Lock()
	v, ok := r.anon[handle]
	if ok {
		delete(r.anon, handle)
	}
	r.mu.Unlock()
	if ok {
		variant.Free(&v)
	}
	return ok
}

// Clear tears down every root, named and anonymous. The teardown is
// snapshot-then-drop: while the lock is held, the named-root member names
// are captured and the anonymous table is swapped for an empty one; after
// the lock is dropped, each named member is deleted and every anonymous
// reference released, so a cascading destruction that re-enters Roots
// (e.g. a dtor removing its own root) cannot deadlock.
func (r *Roots) Clear() {
	r.mu.Lock()
	var names []string
	r.backing.ForeachMember(func(name string, m *object.Member) bool {
		names = append(names, name)
		return true
	})
	anonVals := make([]variant.Variant, 0, len(r.anon))
	for _, v := range r.anon {
		anonVals = append(anonVals, v)
	}
	r.anon = make(map[uint64]variant.Variant)
	r.mu.Unlock()

	for _, name := range names {
		r.backing.DeleteMemberRaw(name)
	}
	for i := range anonVals {
		variant.Free(&anonVals[i])
	}
}

// Held returns a snapshot of every object currently kept alive by the
// root set, named and anonymous, giving diagnostics a stable enumeration
// entry point. The references are borrowed: they are only guaranteed
// alive while the root set still holds them, so a caller retaining one
// past that must Ref it.
func (r *Roots) Held() []*object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*object.Object
	r.backing.ForeachMember(func(_ string, m *object.Member) bool {
		if o, ok := m.Value.Obj.(*object.Object); ok {
			out = append(out, o)
		}
		return true
	})
	for _, v := range r.anon {
		if o, ok := v.Obj.(*object.Object); ok {
			out = append(out, o)
		}
	}
	return out
}

// List returns the plain names (without the "__root_" prefix) of every
// currently held named root.
func (r *Roots) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	r.backing.ForeachMember(func(name string, m *object.Member) bool {
		names = append(names, strings.TrimPrefix(name, namedPrefix))
		return true
	})
	return names
}

// AnonymousCount reports how many anonymous roots are currently held, used
// by tests and diagnostics.
func (r *Roots) AnonymousCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.anon)
}
