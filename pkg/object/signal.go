package object

import "github.com/deai-sub000/deai/pkg/variant"

// destroyedSignal is the reserved signal name observing an object's own
// destruction without pinning it alive.
const destroyedSignal = "__destroyed"

// Listener is an attachment of a handler object to (emitter, signal name).
// It is a dedicated lightweight struct rather than a full Object: a
// listener never needs to be independently member-addressable -- stop()
// and the detach hook are its entire public surface, both provided
// directly here.
type Listener struct {
	emitter *Object
	name    string
	handler *Object
	once    bool
	stopped bool
	detach  func(*Listener)
}

// SetDetach installs the "__detach" auto-detach callback, invoked exactly
// once when the listener is removed (by Stop, by the last-listener
// teardown path, or by the emitter's own destruction).
func (l *Listener) SetDetach(fn func(*Listener)) { l.detach = fn }

// Signal returns the name this listener is attached to.
func (l *Listener) Signal() string { return l.name }

// signalState holds one named signal's ordered listener list plus the
// bookkeeping for the emitter self-ref taken while any listener is
// attached.
type signalState struct {
	listeners  []*Listener
	hasSelfRef bool
}

// Listen attaches handler to emitter's named signal, returning a handle
// that can be stopped. The first listener on a signal triggers
// __new_signal_<name> (if present) and takes the emitter's self-ref --
// except for the reserved "__destroyed" signal, which never does, to avoid
// a ref cycle with destruction.
func (o *Object) Listen(name string, handler *Object, once bool) *Listener {
	st, ok := o.signals[name]
	if !ok {
		st = &signalState{}
		o.signals[name] = st
	}
	if len(st.listeners) == 0 {
		if name != destroyedSignal {
			o.strong++
			st.hasSelfRef = true
		}
		if !isReserved(name) {
			o.invokeSignalHook("__new_signal_" + name)
		}
	}

	handler.strong++
	l := &Listener{emitter: o, name: name, handler: handler, once: once}
	st.listeners = append(st.listeners, l)
	return l
}

// StopListener detaches l; idempotent.
func (o *Object) StopListener(l *Listener) {
	if l.stopped {
		return
	}
	l.stopped = true

	if st, ok := o.signals[l.name]; ok {
		for i, cand := range st.listeners {
			if cand == l {
				st.listeners = append(st.listeners[:i], st.listeners[i+1:]...)
				break
			}
		}
		if len(st.listeners) == 0 {
			if !isReserved(l.name) {
				o.invokeSignalHook("__del_signal_" + l.name)
			}
			if st.hasSelfRef {
				st.hasSelfRef = false
				o.strong--
				if o.strong == 0 {
					o.destroy()
				}
			}
			delete(o.signals, l.name)
		}
	}

	if l.handler != nil {
		h := l.handler
		l.handler = nil
		h.Unref()
	}
	if l.detach != nil {
		fn := l.detach
		l.detach = nil
		fn(l)
	}
}

// invokeSignalHook calls the named member on o with o as its argument if
// it exists and is callable. Hooks are only consulted for non-reserved
// signal names (the "__" prefix is never interpreted this way for
// built-ins like __destroyed).
func (o *Object) invokeSignalHook(member string) {
	m, ok := o.members[member]
	if !ok || !m.Owned || m.Value.Tag != variant.OBJECT || m.Value.Obj == nil {
		return
	}
	hook, ok := m.Value.Obj.(*Object)
	if !ok || !hook.HasCall() {
		return
	}
	args := variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfObject(o.Ref())}}
	_, _ = hook.Call(args)
	variant.Free(&args)
}

// Emit synchronously invokes every listener attached to name, in
// registration order. Absence of the signal is not an error; it is a
// no-op. Listeners are snapshotted before the walk so stop/stop-others
// inside a handler can't invalidate iteration, and the emitter itself is
// held alive for the duration to survive a cascade destruction
// mid-emission. Listeners added during emission only fire on subsequent
// emissions.
func (o *Object) Emit(name string, args variant.Variant) {
	st, ok := o.signals[name]
	if !ok || len(st.listeners) == 0 {
		return
	}

	snapshot := make([]*Listener, len(st.listeners))
	copy(snapshot, st.listeners)

	o.strong++
	defer o.Unref()

	for _, l := range snapshot {
		if l.stopped || l.handler == nil {
			continue
		}
		_, err := l.handler.Call(args)
		if err != nil {
			logDiagnostic("emit %q on %p: listener handler returned error: %v", name, o, err)
		}
		if l.once {
			o.StopListener(l)
		}
	}
}

// clearListeners runs at the start of destruction, before the dtor. It
// first notifies __destroyed listeners (the only way to observe
// destruction without pinning the object alive), then detaches every remaining
// listener on every signal, unreffing each handler. Destruction-time
// teardown does not re-invoke __new_signal_*/__del_signal_* hooks: those
// model ordinary attach/detach traffic, not the forced unwind of an object
// going away.
func (o *Object) clearListeners() {
	o.Emit(destroyedSignal, variant.Nil)

	for name, st := range o.signals {
		for _, l := range st.listeners {
			if l.stopped {
				continue
			}
			l.stopped = true
			if l.handler != nil {
				h := l.handler
				l.handler = nil
				h.Unref()
			}
			if l.detach != nil {
				fn := l.detach
				l.detach = nil
				fn(l)
			}
		}
		_ = name
	}
	o.signals = make(map[string]*signalState)
}

// ListenerCount returns the number of live (non-stopped) listeners
// attached to name.
func (o *Object) ListenerCount(name string) int {
	st, ok := o.signals[name]
	if !ok {
		return 0
	}
	n := 0
	for _, l := range st.listeners {
		if !l.stopped {
			n++
		}
	}
	return n
}
