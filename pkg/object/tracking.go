package object

// Debug-build tracking support for the optional leak/cycle detector in
// pkg/leak. Every live object is threaded onto a package-level list while
// tracking is enabled; the runtime is single-threaded, so one list per
// process is enough.
var (
	trackingEnabled bool
	tracked         []*Object
)

// EnableTracking turns on live-object tracking for debug builds. It must be
// called before any objects that should be tracked are created.
func EnableTracking() { trackingEnabled = true }

// DisableTracking turns tracking off and forgets the current list.
func DisableTracking() {
	trackingEnabled = false
	tracked = nil
}

// TrackedObjects returns a snapshot of every object currently known to be
// alive, for pkg/leak's mark-and-sweep pass.
func TrackedObjects() []*Object {
	out := make([]*Object, 0, len(tracked))
	for _, o := range tracked {
		if o != nil && o.state != finalizedAwaitingWeakDrop {
			out = append(out, o)
		}
	}
	return out
}

// StrongCount exposes the raw strong count. The internal portion (edges
// from other objects' members) isn't separable here; pkg/leak derives the
// external remainder itself by walking the member graph and subtracting
// counted incoming edges.
func (o *Object) StrongCount() int64 { return o.strong }

// WeakCount exposes the live weak-reference count for diagnostics.
func (o *Object) WeakCount() int64 { return o.weak }

// TypeNameForDiagnostics is GetType spelled out for the leak reporter so it
// doesn't need to import variant just to read a type string.
func (o *Object) TypeNameForDiagnostics() string { return o.GetType() }

func trackNew(o *Object) {
	if !trackingEnabled {
		return
	}
	tracked = append(tracked, o)
}

func trackGone(o *Object) {
	if !trackingEnabled {
		return
	}
	// Left in place; TrackedObjects() filters out finalized entries. A
	// swap-remove here would shift indices other code might hold onto.
}
