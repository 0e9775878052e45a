// Package dispatch bridges statically typed native Go functions to the
// dynamic argument tuples that flow through the object graph, applying
// the argument coercion rules of variant.Convert on the way in. A typed
// closure is invoked through reflect.Value, which plays the role an FFI
// call-marshaling layer would in a C host; the per-argument converters
// are built once at registration time so each call only pays for the
// reflect.Call itself.
package dispatch

import (
	"reflect"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// Signature declares a typed closure's fixed return type and fixed
// argument type list. NIL is legal only as the return type.
type Signature struct {
	Return variant.Tag
	Args   []variant.Tag
}

// TypedClosure is a callable with a declared Signature, a captures tuple
// prepended to caller-supplied arguments, and the reflect.Value of the
// native Go function actually invoked.
type TypedClosure struct {
	Sig      Signature
	Captures []variant.Variant
	fn       reflect.Value
	toGo     []variantToGo
	fromGo   goToVariant
}

// RawClosure is a variadic callable receiving the full argument tuple
// verbatim. self is the object the closure was installed on as a member,
// not the internal handle carrying it.
type RawClosure func(self *object.Object, args variant.Variant) (variant.Variant, error)

const maxArgs = 64 // implementation cap backing the TooLarge error kind

// NewTypedClosure wraps fn (a Go func whose parameters and result match
// sig) into a TypedClosure. A method's first declared argument is always
// the receiver: fn's first Go parameter must accept *object.Object.
func NewTypedClosure(fn interface{}, sig Signature, captures []variant.Variant) (*TypedClosure, error) {
	if len(sig.Args) == 0 || sig.Args[0] != variant.OBJECT {
		return nil, deaierr.New(deaierr.InvalidType, "a method's first declared argument must be OBJECT (the receiver)")
	}
	if len(sig.Args)+len(captures) > maxArgs {
		return nil, deaierr.New(deaierr.TooLarge, "signature has too many arguments")
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, deaierr.New(deaierr.InvalidType, "fn must be a function")
	}
	if v.Type().NumIn() != len(sig.Args) {
		return nil, deaierr.New(deaierr.InvalidArity, "fn takes %d Go parameters, signature declares %d", v.Type().NumIn(), len(sig.Args))
	}
	toGo := make([]variantToGo, len(sig.Args))
	for i, tag := range sig.Args {
		conv, err := converterFor(tag, v.Type().In(i))
		if err != nil {
			return nil, err
		}
		toGo[i] = conv
	}
	fromGo, err := producerFor(sig.Return, v.Type())
	if err != nil {
		return nil, err
	}
	return &TypedClosure{Sig: sig, Captures: captures, fn: v, toGo: toGo, fromGo: fromGo}, nil
}

// Call concatenates the receiver, captures, and caller arguments, coerces
// each into its declared type via variant.Convert(borrow=true), invokes
// the native function, and wraps the result. A failed coercion aborts the
// call before fn runs and leaves the target untouched.
func (c *TypedClosure) Call(self *object.Object, callerArgs []variant.Variant) (variant.Variant, error) {
	total := append(append([]variant.Variant{}, variant.OfObject(self)), append(append([]variant.Variant{}, c.Captures...), callerArgs...)...)
	if len(total) != len(c.Sig.Args) {
		return variant.Variant{}, deaierr.New(deaierr.InvalidArity, "expected %d arguments (incl. receiver+captures), got %d", len(c.Sig.Args), len(total))
	}

	in := make([]reflect.Value, len(total))
	for i, av := range total {
		coerced := av
		if av.Tag != c.Sig.Args[i] && c.Sig.Args[i] != variant.ANY {
			var err error
			coerced, err = variant.Convert(av, c.Sig.Args[i], true)
			if err != nil {
				return variant.Variant{}, err
			}
		}
		rv, err := c.toGo[i](coerced)
		if err != nil {
			return variant.Variant{}, err
		}
		in[i] = rv
	}

	out := c.fn.Call(in)
	return c.fromGo(out)
}

// AsMethod adapts a TypedClosure into an object.CallFunc bound to owner:
// the receiver handed to the native function is the object the method was
// installed on. The self argument the call machinery supplies is the
// internal handle carrying the closure and is deliberately ignored.
func (c *TypedClosure) AsMethod(owner *object.Object) object.CallFunc {
	return func(_ *object.Object, args variant.Variant) (variant.Variant, error) {
		var callerArgs []variant.Variant
		if args.Tag == variant.TUPLE {
			callerArgs = args.Tuple
		} else if args.Tag != variant.NIL {
			callerArgs = []variant.Variant{args}
		}
		return c.Call(owner, callerArgs)
	}
}

// AddMethod installs fn as a typed closure member named name on obj,
// becoming reachable via obj[name].call(args) or the generic callx path.
func AddMethod(obj *object.Object, name string, fn interface{}, ret variant.Tag, args []variant.Tag) error {
	tc, err := NewTypedClosure(fn, Signature{Return: ret, Args: args}, nil)
	if err != nil {
		return err
	}
	handle := object.New()
	handle.SetCall(tc.AsMethod(obj))
	_, err = obj.AddMemberMove(name, variant.OBJECT, variant.OfObject(handle))
	return err
}

// AddFieldGetter installs a zero-argument typed closure reading a fixed
// field of obj (get reports the current value, declared as tag) as the
// member "__get_<field>", reachable through the normal getx protocol. The
// callback receives the object the getter was installed on, not the
// internal handle carrying the closure.
func AddFieldGetter(obj *object.Object, field string, tag variant.Tag, get func(self *object.Object) variant.Variant) error {
	handle := object.New()
	handle.SetCall(func(_ *object.Object, args variant.Variant) (variant.Variant, error) {
		return get(obj), nil
	})
	_, err := obj.AddMemberMove("__get_"+field, variant.OBJECT, variant.OfObject(handle))
	return err
}

// AddRawMethod installs fn as a raw (variadic) closure member, for native
// functions that want the argument tuple verbatim. fn receives obj as its
// receiver, not the internal handle the closure rides on.
func AddRawMethod(obj *object.Object, name string, fn RawClosure) error {
	handle := object.New()
	handle.SetCall(func(_ *object.Object, args variant.Variant) (variant.Variant, error) {
		return fn(obj, args)
	})
	_, err := obj.AddMemberMove(name, variant.OBJECT, variant.OfObject(handle))
	return err
}
