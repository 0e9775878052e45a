// Package leak implements the optional debug-build mark-and-sweep
// detector: every currently tracked object is treated as garbage unless
// reachable from an "external" strong reference (one not accounted for by
// another tracked object's own OBJECT members), and survivors of the
// sweep are reported by type name and address. The algorithm is strictly
// advisory -- it only reads object.TrackedObjects(), never calls Unref,
// and never mutates the graph. pkg/object tracks a single strong count,
// so "external" is derived from it by subtracting counted internal edges.
package leak

import (
	"fmt"
	"sort"

	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// Entry describes one object that survived the sweep unmarked: a leak, or
// (for cyclic garbage) a self-sustaining group the refcounting core itself
// can never collect.
type Entry struct {
	TypeName string
	Addr     string
	Strong   int64
	Weak     int64
}

func (e Entry) String() string {
	return fmt.Sprintf("%s@%s strong=%d weak=%d", e.TypeName, e.Addr, e.Strong, e.Weak)
}

// Detect runs one mark-and-sweep pass over every currently tracked object
// (object.EnableTracking must have been called for TrackedObjects to
// return anything) and returns every object not reachable from an
// externally held strong reference.
func Detect() []Entry {
	return DetectWithRoots(nil)
}

// DetectWithRoots is Detect with an explicit set of additional mark
// roots: every object in held is treated as reachable regardless of its
// derived external count. Callers typically pass the process root set's
// enumeration (roots.Held(), reachable through the protocol as
// roots.list()), so an object kept alive only by an anonymous root or a
// root table the tracker never saw is not misreported as a leak.
func DetectWithRoots(held []*object.Object) []Entry {
	tracked := object.TrackedObjects()

	incoming := make(map[*object.Object]int, len(tracked))
	for _, o := range tracked {
		o.ForeachMember(func(_ string, m *object.Member) bool {
			if target, ok := ownedObjectTarget(m); ok {
				incoming[target]++
			}
			return true
		})
	}

	marked := make(map[*object.Object]bool, len(tracked))
	var frontier []*object.Object
	for _, o := range held {
		if !marked[o] {
			marked[o] = true
			frontier = append(frontier, o)
		}
	}
	for _, o := range tracked {
		if !marked[o] && o.StrongCount()-int64(incoming[o]) > 0 {
			marked[o] = true
			frontier = append(frontier, o)
		}
	}

	for len(frontier) > 0 {
		o := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		o.ForeachMember(func(_ string, m *object.Member) bool {
			if target, ok := ownedObjectTarget(m); ok && !marked[target] {
				marked[target] = true
				frontier = append(frontier, target)
			}
			return true
		})
	}

	var leaks []Entry
	for _, o := range tracked {
		if marked[o] {
			continue
		}
		leaks = append(leaks, Entry{
			TypeName: o.TypeNameForDiagnostics(),
			Addr:     fmt.Sprintf("%p", o),
			Strong:   o.StrongCount(),
			Weak:     o.WeakCount(),
		})
	}
	sort.Slice(leaks, func(i, j int) bool { return leaks[i].Addr < leaks[j].Addr })
	return leaks
}

func ownedObjectTarget(m *object.Member) (*object.Object, bool) {
	if !m.Owned || m.Value.Tag != variant.OBJECT || m.Value.Obj == nil {
		return nil, false
	}
	target, ok := m.Value.Obj.(*object.Object)
	return target, ok
}

// Format renders entries one per line in the order given (Detect and
// DetectWithRoots return them sorted by address), as text suitable for
// diffing between two runs.
func Format(entries []Entry) string {
	var out string
	for _, e := range entries {
		out += e.String() + "\n"
	}
	return out
}
