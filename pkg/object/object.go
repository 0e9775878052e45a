// Package object implements the reference-counted heap cell at the center
// of the runtime: named members, an optional call handler, an optional
// destructor, and (in signal.go) the per-object signal/listener registry.
// A cell carries a strong count, a weak count, and a three-state
// destruction discriminator; the cell is reclaimed only once both counts
// reach zero.
package object

import (
	"fmt"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/variant"
)

// destroyState tracks how far along destruction an object is.
type destroyState int

const (
	alive destroyState = iota
	finalizing
	finalizedAwaitingWeakDrop
)

// CallFunc is the signature of an object's call handler: invoke this object
// with an argument tuple and receive a result variant or an error.
type CallFunc func(self *Object, args variant.Variant) (variant.Variant, error)

// DtorFunc is a finalizer invoked exactly once during destruction.
type DtorFunc func(self *Object)

// defaultTypeName is what GetType returns absent an explicit SetType call.
const defaultTypeName = "deai:object"

// Object is the reference-counted heap cell. Member insertion order is
// preserved and observable through ForeachMember.
type Object struct {
	typeName string

	memberNames []string
	members     map[string]*Member

	signals map[string]*signalState

	callFn CallFunc
	dtorFn DtorFunc

	strong int64
	weak   int64
	state  destroyState
}

// New allocates a new object with refcount 1 and no members or signals.
func New() *Object {
	o := &Object{
		members: make(map[string]*Member),
		signals: make(map[string]*signalState),
		strong:  1,
	}
	trackNew(o)
	return o
}

// Ref increments the strong count and returns the same object, satisfying
// variant.ObjectRef.
func (o *Object) Ref() variant.ObjectRef {
	o.strong++
	return o
}

// Unref decrements the strong count; at zero the object enters
// finalization.
func (o *Object) Unref() {
	o.strong--
	if o.strong == 0 {
		o.destroy()
	} else if o.strong < 0 {
		panic(fmt.Sprintf("object %p: strong refcount went negative", o))
	}
}

// Downgrade creates a weak reference, satisfying variant.ObjectRef.
func (o *Object) Downgrade() variant.WeakRef {
	o.weak++
	return &WeakRef{target: o}
}

// WeaklyRef is the named-surface equivalent of Downgrade used by callers
// that want the concrete *WeakRef type rather than the variant.WeakRef
// interface.
func (o *Object) WeaklyRef() *WeakRef {
	o.weak++
	return &WeakRef{target: o}
}

// WeakRef is a weak reference tracked separately from the strong count; it
// may outlive the object and upgrades to a strong reference or fails
// atomically with respect to the object's own single-threaded operations.
type WeakRef struct{ target *Object }

// Upgrade produces a strong reference, or (nil, false) if the target has
// already begun finalization.
func (w *WeakRef) Upgrade() (variant.ObjectRef, bool) {
	if w.target == nil || w.target.state != alive || w.target.strong <= 0 {
		return nil, false
	}
	return w.target.Ref(), true
}

// Clone duplicates the weak reference, bumping the weak count.
func (w *WeakRef) Clone() variant.WeakRef {
	if w.target == nil {
		return variant.DeadWeak
	}
	return w.target.WeaklyRef()
}

// Drop releases the weak reference.
func (w *WeakRef) Drop() {
	if w.target == nil {
		return
	}
	w.target.weak--
	w.target = nil
}

// SetType records the object's logical type, read back by GetType. The
// type is kept in a field of the object; no __type member is created, so
// it is not visible through Lookup or ForeachMember.
func (o *Object) SetType(name string) {
	o.typeName = name
}

// GetType returns the object's logical type, defaulting to "deai:object".
func (o *Object) GetType() string {
	if o.typeName == "" {
		return defaultTypeName
	}
	return o.typeName
}

// SetCall installs the call handler.
func (o *Object) SetCall(fn CallFunc) { o.callFn = fn }

// SetDtor installs the destructor.
func (o *Object) SetDtor(fn DtorFunc) { o.dtorFn = fn }

// HasCall reports whether the object is callable.
func (o *Object) HasCall() bool { return o.callFn != nil }

// Call invokes the call handler. This is only legal while the object is
// alive or mid-finalization (a dtor re-entering its own object); once
// finalization has completed, Call always fails.
func (o *Object) Call(args variant.Variant) (variant.Variant, error) {
	if o.state == finalizedAwaitingWeakDrop {
		return variant.Variant{}, deaierr.New(deaierr.NotCallable, "object finalized")
	}
	if o.callFn == nil {
		return variant.Variant{}, deaierr.New(deaierr.NotCallable, "object has no call handler")
	}
	return o.callFn(o, args)
}

// AddMemberMove installs an owned member, taking ownership of value. On
// failure (duplicate name, or a plain-vs-getter conflict) the value is
// returned to the caller instead of being consumed.
func (o *Object) AddMemberMove(name string, typ variant.Tag, value variant.Variant) (variant.Variant, error) {
	if err := o.checkInsertable(name); err != nil {
		return value, err
	}
	o.insert(name, &Member{Name: name, Type: typ, Value: value, Owned: true, Writable: true})
	return variant.Variant{}, nil
}

// AddMemberClone is like AddMemberMove but copies the payload, leaving the
// caller's value untouched.
func (o *Object) AddMemberClone(name string, typ variant.Tag, value variant.Variant) error {
	if err := o.checkInsertable(name); err != nil {
		return err
	}
	o.insert(name, &Member{Name: name, Type: typ, Value: variant.Copy(value), Owned: true, Writable: true})
	return nil
}

// AddAddressMember installs a non-owning member reflecting storage the
// caller continues to own; the core never frees addr.
func (o *Object) AddAddressMember(name string, writable bool, typ variant.Tag, addr *variant.Variant) error {
	if err := o.checkInsertable(name); err != nil {
		return err
	}
	o.insert(name, &Member{Name: name, Type: typ, Owned: false, Writable: writable, Addr: addr})
	return nil
}

func (o *Object) checkInsertable(name string) error {
	if _, exists := o.members[name]; exists {
		return deaierr.New(deaierr.Exists, "member %q already present", name)
	}
	// A plain member X and an accessor member __get_X may not coexist.
	if plain, ok := plainNameFromGetter(name); ok {
		if _, exists := o.members[plain]; exists {
			return deaierr.New(deaierr.Exists, "plain member %q already present, cannot add %q", plain, name)
		}
	} else if !isReserved(name) {
		if _, exists := o.members[getterNameFor(name)]; exists {
			return deaierr.New(deaierr.Exists, "accessor %q already present, cannot add plain member %q", getterNameFor(name), name)
		}
	}
	return nil
}

func (o *Object) insert(name string, m *Member) {
	o.members[name] = m
	o.memberNames = append(o.memberNames, name)
}

// DeleteMemberRaw removes a member bypassing any handler; it is a no-op if
// absent.
func (o *Object) DeleteMemberRaw(name string) {
	m, ok := o.members[name]
	if !ok {
		return
	}
	if m.Owned {
		variant.Free(&m.Value)
	}
	delete(o.members, name)
	o.removeName(name)
}

// removeName splices name out of memberNames; a no-op if name isn't present.
func (o *Object) removeName(name string) {
	for i, n := range o.memberNames {
		if n == name {
			o.memberNames = append(o.memberNames[:i], o.memberNames[i+1:]...)
			return
		}
	}
}

// Lookup returns the member named name, bypassing handlers.
func (o *Object) Lookup(name string) (*Member, bool) {
	m, ok := o.members[name]
	return m, ok
}

// GetMemberRaw reads a member's value directly, bypassing any __get/__get_X
// handler fallback.
func (o *Object) GetMemberRaw(name string) (variant.Variant, error) {
	m, ok := o.members[name]
	if !ok {
		return variant.Variant{}, deaierr.New(deaierr.NotFound, "member %q not found", name)
	}
	return m.read(), nil
}

// SetMemberRaw writes a member's value directly, bypassing any __set/__set_X
// handler fallback. It fails with Readonly if the member exists but isn't
// writable, and with whatever error variant.Convert returns (InvalidType,
// OutOfRange) if value doesn't convert into the member's declared type.
// A successful raw set behaves like delete-then-reinsert: the member moves
// to the end of iteration order.
func (o *Object) SetMemberRaw(name string, value variant.Variant) error {
	m, ok := o.members[name]
	if !ok {
		return deaierr.New(deaierr.NotFound, "member %q not found", name)
	}
	if !m.Writable {
		return deaierr.New(deaierr.Readonly, "member %q is not writable", name)
	}
	converted, err := variant.Convert(value, m.Type, false)
	if err != nil {
		return err
	}
	if m.Owned {
		variant.Free(&m.Value)
		m.Value = converted
	} else {
		variant.Free(m.Addr)
		*m.Addr = converted
	}
	o.removeName(name)
	o.memberNames = append(o.memberNames, name)
	return nil
}

// ForeachMember visits members in an order stable for the duration of the
// call, safely across member removal during iteration: the visitation
// walks a snapshot of the name order taken up front.
func (o *Object) ForeachMember(cb func(name string, m *Member) bool) {
	snapshot := make([]string, len(o.memberNames))
	copy(snapshot, o.memberNames)
	for _, name := range snapshot {
		m, ok := o.members[name]
		if !ok {
			continue // removed mid-iteration
		}
		if !cb(name, m) {
			return
		}
	}
}

// destroy finalizes the object: clear listeners, run the dtor exactly
// once, then free members. A dtor observing a member observes it still
// intact.
func (o *Object) destroy() {
	o.strong = 1 // temporary strong ref against reentrant destruction
	if o.state != alive {
		logDiagnostic("object %p: unref reached zero while state=%v, ignoring re-entrant destruction", o, o.state)
		o.strong = 0
		return
	}
	o.state = finalizing

	o.clearListeners() // emits __destroyed, then detaches all

	if o.dtorFn != nil {
		fn := o.dtorFn
		o.dtorFn = nil
		func() {
			defer func() {
				if r := recover(); r != nil {
					logDiagnostic("object %p: dtor panicked: %v", o, r)
				}
			}()
			fn(o)
		}()
	}

	o.ForeachMember(func(name string, m *Member) bool {
		if m.Owned {
			variant.Free(&m.Value)
		}
		return true
	})
	o.members = nil
	o.memberNames = nil

	o.state = finalizedAwaitingWeakDrop
	o.strong-- // drop the temporary ref taken on entry
	trackGone(o)
}

// logDiagnostic is overridden by the registry/log wiring at process start;
// by default it is silent so pkg/object has no hard logging dependency.
var logDiagnostic = func(format string, args ...interface{}) {}

// SetDiagnosticLogger lets a collaborator (internal/builtin/log) receive
// destruction diagnostics: double-finalization notices and dtor failures,
// which are logged and ignored so destruction always completes.
func SetDiagnosticLogger(fn func(format string, args ...interface{})) {
	logDiagnostic = fn
}
