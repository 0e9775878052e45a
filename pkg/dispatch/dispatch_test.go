package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// TestRoundTripInteger: an identity method returns its integer argument
// unchanged, and an argument that can't narrow fails before the method
// body runs.
func TestRoundTripInteger(t *testing.T) {
	o := object.New()
	id := func(self *object.Object, n int64) (int64, error) {
		return n, nil
	}
	require.NoError(t, AddMethod(o, "id", id, variant.INT, []variant.Tag{variant.OBJECT, variant.INT}))

	m, ok := o.Lookup("id")
	require.True(t, ok)
	handle, ok := m.Value.Obj.(*object.Object)
	require.True(t, ok)

	out, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfInt(41)}})
	require.NoError(t, err)
	require.Equal(t, int64(41), out.I)

	// A caller-supplied UINT that doesn't fit in int64 coerces via
	// variant.Convert and fails with OutOfRange rather than invoking fn.
	huge := variant.OfUint(1 << 63)
	_, err = handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{huge}})
	require.Error(t, err)
	require.True(t, variant.IsErrOutOfRange(err))
}

func TestMethodReceiverIsOwningObject(t *testing.T) {
	o := object.New()
	o.SetType("test:owner")

	var got *object.Object
	fn := func(self *object.Object, n int64) (int64, error) {
		got = self
		return n, nil
	}
	require.NoError(t, AddMethod(o, "m", fn, variant.INT, []variant.Tag{variant.OBJECT, variant.INT}))

	m, _ := o.Lookup("m")
	handle := m.Value.Obj.(*object.Object)
	_, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfInt(1)}})
	require.NoError(t, err)
	require.Same(t, o, got, "the receiver must be the object the method was installed on, not the dispatch handle")
}

func TestArityMismatchRejected(t *testing.T) {
	o := object.New()
	noop := func(self *object.Object) (int64, error) { return 0, nil }
	require.NoError(t, AddMethod(o, "noop", noop, variant.INT, []variant.Tag{variant.OBJECT}))

	m, _ := o.Lookup("noop")
	handle := m.Value.Obj.(*object.Object)

	_, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfInt(1)}})
	require.Error(t, err)
}

func TestAddFieldGetter(t *testing.T) {
	o := object.New()
	require.NoError(t, o.AddMemberClone("count", variant.INT, variant.OfInt(7)))
	require.NoError(t, AddFieldGetter(o, "count_plus_one", variant.INT, func(self *object.Object) variant.Variant {
		m, _ := self.Lookup("count")
		return variant.OfInt(m.Value.I + 1)
	}))

	m, ok := o.Lookup("__get_count_plus_one")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(variant.Nil)
	require.NoError(t, err)
	require.Equal(t, int64(8), out.I)
}

func TestAddRawMethodReceivesTupleVerbatim(t *testing.T) {
	o := object.New()
	var gotSelf *object.Object
	var gotArgs variant.Variant
	require.NoError(t, AddRawMethod(o, "raw", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		gotSelf = self
		gotArgs = args
		return variant.OfInt(int64(len(args.Tuple))), nil
	}))

	m, _ := o.Lookup("raw")
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfInt(1), variant.OfInt(2)}})
	require.NoError(t, err)
	require.Equal(t, int64(2), out.I)
	require.Equal(t, 2, len(gotArgs.Tuple))
	require.Same(t, o, gotSelf, "a raw closure's receiver is the object it was installed on")
}
