// Package accessor implements the generic member-access protocol.
// GetX/SetX/CallX/DeleteMember walk a handler-fallback chain: the most
// specific handler first (a plain member or per-name accessor), then the
// whole-object accessor, then failure. The Raw* variants touch only the
// member table directly.
package accessor

import (
	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

func callHandler(handle *object.Object, args variant.Variant) (variant.Variant, error) {
	if handle == nil || !handle.HasCall() {
		return variant.Variant{}, deaierr.New(deaierr.NotCallable, "accessor handler is not callable")
	}
	return handle.Call(args)
}

func lookupCallable(o *object.Object, name string) (*object.Object, bool) {
	m, ok := o.Lookup(name)
	if !ok || !m.Owned || m.Value.Tag != variant.OBJECT || m.Value.Obj == nil {
		return nil, false
	}
	h, ok := m.Value.Obj.(*object.Object)
	return h, ok
}

// GetX reads member name from o, falling back from a plain member to a
// per-name getter ("__get_<name>") to a whole-object getter ("__get").
func GetX(o *object.Object, name string) (variant.Variant, error) {
	if v, err := o.GetMemberRaw(name); err == nil {
		return v, nil
	} else if !deaierr.Is(err, deaierr.NotFound) {
		return variant.Variant{}, err
	}

	if h, ok := lookupCallable(o, "__get_"+name); ok {
		return callHandler(h, variant.Nil)
	}
	if h, ok := lookupCallable(o, "__get"); ok {
		return callHandler(h, variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfLiteral(name)}})
	}
	return variant.Variant{}, deaierr.New(deaierr.NotFound, "no member, %q getter, or __get handler for %q", "__get_"+name, name)
}

// SetX writes value to member name on o, falling back from a plain
// writable member to a per-name setter ("__set_<name>") to a whole-object
// setter ("__set"). An existing slot always wins over a setter handler.
func SetX(o *object.Object, name string, value variant.Variant) error {
	err := o.SetMemberRaw(name, value)
	if err == nil {
		return nil
	}
	if !deaierr.Is(err, deaierr.NotFound) {
		return err
	}

	if h, ok := lookupCallable(o, "__set_"+name); ok {
		_, err := callHandler(h, value)
		return err
	}
	if h, ok := lookupCallable(o, "__set"); ok {
		_, err := callHandler(h, variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfLiteral(name), value}})
		return err
	}
	return deaierr.New(deaierr.NotFound, "no writable member, %q setter, or __set handler for %q", "__set_"+name, name)
}

// CallX resolves member name through the same fallback chain as GetX and
// invokes the result as a callable, passing args as the caller argument
// tuple (the receiver is supplied by the handle's own TypedClosure or raw
// closure, not prepended here). A value that resolves but has no call
// handler fails NotCallable.
func CallX(o *object.Object, name string, args variant.Variant) (variant.Variant, error) {
	v, err := GetX(o, name)
	if err != nil {
		return variant.Variant{}, err
	}
	h, ok := v.Obj.(*object.Object)
	if v.Tag != variant.OBJECT || !ok || !h.HasCall() {
		variant.Free(&v)
		return variant.Variant{}, deaierr.New(deaierr.NotCallable, "member %q is not callable", name)
	}
	defer variant.Free(&v)
	return callHandler(h, args)
}

// DeleteMember removes member name from o. A whole-object "__delete"
// handler, if present, takes priority over direct removal and its return
// is honored; otherwise the member is removed directly, a no-op if
// absent.
func DeleteMember(o *object.Object, name string) error {
	if h, ok := lookupCallable(o, "__delete"); ok {
		_, err := callHandler(h, variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfLiteral(name)}})
		return err
	}
	o.DeleteMemberRaw(name)
	return nil
}

// RawGetX reads member name directly, bypassing every handler fallback.
func RawGetX(o *object.Object, name string) (variant.Variant, error) {
	return o.GetMemberRaw(name)
}

// RawSetX writes member name directly, bypassing every handler fallback.
func RawSetX(o *object.Object, name string, value variant.Variant) error {
	return o.SetMemberRaw(name, value)
}

// RawDelete removes member name directly, bypassing the __delete fallback.
// It is a no-op if name is absent, matching object.DeleteMemberRaw's
// no-op-on-absence contract.
func RawDelete(o *object.Object, name string) {
	o.DeleteMemberRaw(name)
}
