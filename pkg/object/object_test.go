package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/variant"
)

func TestRefUnrefBalanceDoesNotFinalize(t *testing.T) {
	o := New()
	finalized := false
	o.SetDtor(func(*Object) { finalized = true })

	o.Ref()
	o.Unref()
	o.Ref()
	o.Unref()

	require.False(t, finalized)
	o.Unref() // drop the original ref from New()
	require.True(t, finalized)
}

func TestWeakReferenceSurvivesAndDies(t *testing.T) {
	a := New()
	w := a.WeaklyRef()

	upgraded, ok := w.Upgrade()
	require.True(t, ok)
	upgraded.Unref() // release the strong ref Upgrade handed back

	a.Unref() // drop the last strong ref; finalizes
	_, ok = w.Upgrade()
	require.False(t, ok)

	w.Drop()
}

func TestAddMemberExistsConflictsWithGetter(t *testing.T) {
	o := New()
	v, err := o.AddMemberMove("__get_foo", variant.STRING, variant.OfString([]byte("hi")))
	require.NoError(t, err)
	require.Equal(t, variant.Variant{}, v)

	_, err = o.AddMemberMove("foo", variant.STRING, variant.OfString([]byte("bye")))
	require.Error(t, err)

	o2 := New()
	require.NoError(t, o2.AddMemberClone("foo", variant.STRING, variant.OfString([]byte("hi"))))
	_, err = o2.AddMemberMove("__get_foo", variant.NIL, variant.Nil)
	require.Error(t, err)
}

func TestForeachMemberSafeAcrossRemoval(t *testing.T) {
	o := New()
	require.NoError(t, o.AddMemberClone("a", variant.INT, variant.OfInt(1)))
	require.NoError(t, o.AddMemberClone("b", variant.INT, variant.OfInt(2)))
	require.NoError(t, o.AddMemberClone("c", variant.INT, variant.OfInt(3)))

	var seen []string
	o.ForeachMember(func(name string, m *Member) bool {
		seen = append(seen, name)
		if name == "a" {
			o.DeleteMemberRaw("b")
		}
		return true
	})
	require.Equal(t, []string{"a", "b", "c"}, seen) // snapshot taken up front
	_, ok := o.Lookup("b")
	require.False(t, ok)
}

// TestDestructionCascadeIsSafe: A's member "child" holds B; B's dtor emits
// into A, whose signals were already cleared by the time B is unreffed, so
// the emit is a no-op and there is no deadlock or double free.
func TestDestructionCascadeIsSafe(t *testing.T) {
	a := New()
	b := New()

	// A listener attached to a non-__destroyed signal takes a self-ref on
	// its emitter, so a well-behaved caller stops it before the
	// emitter's last external ref goes away; the interesting case this test
	// covers is what happens to a still-registered signal MAP once A begins
	// destroying, which clearListeners empties before B's dtor ever runs.
	handler := New()
	gotSignal := false
	handler.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		gotSignal = true
		return variant.Nil, nil
	})
	l := a.Listen("gone", handler, false)
	a.StopListener(l)

	listenerCountDuringBDtor := -1
	bDtorRan := false
	b.SetDtor(func(*Object) {
		bDtorRan = true
		listenerCountDuringBDtor = a.ListenerCount("gone")
		a.Emit("gone", variant.Nil) // a's signals are already cleared
	})

	v, err := a.AddMemberMove("child", variant.OBJECT, variant.OfObject(b))
	require.NoError(t, err)
	require.Equal(t, variant.Variant{}, v)

	aDtorRan := false
	a.SetDtor(func(*Object) { aDtorRan = true })

	a.Unref() // drops a's last strong ref

	require.True(t, aDtorRan)
	require.True(t, bDtorRan)
	require.Equal(t, 0, listenerCountDuringBDtor)
	require.False(t, gotSignal, "emit into a mid-cascade must be a no-op: its signals were already cleared")
}

// TestSetMemberRawConvertsAndMovesToEnd: a raw set converts the incoming
// value into the member's declared type and behaves like
// delete-then-reinsert for iteration order.
func TestSetMemberRawConvertsAndMovesToEnd(t *testing.T) {
	o := New()
	require.NoError(t, o.AddMemberClone("a", variant.INT, variant.OfInt(1)))
	require.NoError(t, o.AddMemberClone("b", variant.INT, variant.OfInt(2)))
	require.NoError(t, o.AddMemberClone("c", variant.INT, variant.OfInt(3)))

	require.NoError(t, o.SetMemberRaw("b", variant.Variant{Tag: variant.NINT, I: 20}))

	v, err := o.GetMemberRaw("b")
	require.NoError(t, err)
	require.Equal(t, variant.INT, v.Tag, "the stored value must carry the member's declared type, not the caller's")
	require.Equal(t, int64(20), v.I)

	var order []string
	o.ForeachMember(func(name string, m *Member) bool {
		order = append(order, name)
		return true
	})
	require.Equal(t, []string{"a", "c", "b"}, order, "rawsetx moves the member to the end of insertion order")
}

func TestSetMemberRawRejectsIncompatibleType(t *testing.T) {
	o := New()
	require.NoError(t, o.AddMemberClone("count", variant.INT, variant.OfInt(1)))

	err := o.SetMemberRaw("count", variant.OfString([]byte("nope")))
	require.Error(t, err)

	v, err := o.GetMemberRaw("count")
	require.NoError(t, err)
	require.Equal(t, variant.INT, v.Tag)
	require.Equal(t, int64(1), v.I, "a rejected conversion must leave the member unchanged")
}

func TestCallFailsAfterFinalization(t *testing.T) {
	o := New()
	o.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		return variant.OfInt(1), nil
	})
	o.Unref()
	_, err := o.Call(variant.Nil)
	require.Error(t, err)
}
