package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/variant"
)

func countingHandler(counter *int) *Object {
	h := New()
	h.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		*counter++
		return variant.Nil, nil
	})
	return h
}

// TestSignalLifecycle: emitting twice increments a counting listener to 2,
// stopping it freezes the counter at 2.
func TestSignalLifecycle(t *testing.T) {
	a := New()
	counter := 0
	h := countingHandler(&counter)

	l := a.Listen("tick", h, false)
	a.Emit("tick", variant.Nil)
	a.Emit("tick", variant.Nil)
	require.Equal(t, 2, counter)

	a.StopListener(l)
	a.Emit("tick", variant.Nil)
	require.Equal(t, 2, counter)
}

// TestStopListenerTwiceIsNoOp covers the round-trip law "stop_listener(l)
// called twice is a no-op the second time".
func TestStopListenerTwiceIsNoOp(t *testing.T) {
	a := New()
	counter := 0
	h := countingHandler(&counter)
	l := a.Listen("tick", h, false)

	a.StopListener(l)
	require.NotPanics(t, func() { a.StopListener(l) })
	require.Equal(t, 0, a.ListenerCount("tick"))
}

// TestOnceListenerFiresExactlyOnce: a once-listener detaches itself after
// its first firing.
func TestOnceListenerFiresExactlyOnce(t *testing.T) {
	a := New()
	counter := 0
	h := countingHandler(&counter)
	a.Listen("boom", h, true)

	require.Equal(t, 1, a.ListenerCount("boom"))
	a.Emit("boom", variant.Nil)
	require.Equal(t, 1, counter)
	require.Equal(t, 0, a.ListenerCount("boom"))

	a.Emit("boom", variant.Nil)
	require.Equal(t, 1, counter, "a fired once-listener must not run again")
}

// TestListenersAddedDuringEmissionWaitForNextEmit: a listener registered
// while an emission is in flight is not invoked by that emission.
func TestListenersAddedDuringEmissionWaitForNextEmit(t *testing.T) {
	a := New()
	lateCounter := 0
	earlyRan := false

	early := New()
	early.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		earlyRan = true
		late := countingHandler(&lateCounter)
		a.Listen("go", late, false)
		return variant.Nil, nil
	})
	a.Listen("go", early, false)

	a.Emit("go", variant.Nil)
	require.True(t, earlyRan)
	require.Equal(t, 0, lateCounter, "listener added mid-emission must not run during this emission")

	a.Emit("go", variant.Nil)
	require.Equal(t, 1, lateCounter, "it must run on the next emission")
}

// TestNewSignalAndDelSignalHooksFire: installing the first listener on a
// non-reserved signal calls __new_signal_<name>, and removing the last
// calls __del_signal_<name>.
func TestNewSignalAndDelSignalHooksFire(t *testing.T) {
	a := New()
	newCalls, delCalls := 0, 0

	newHook := New()
	newHook.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		newCalls++
		return variant.Nil, nil
	})
	delHook := New()
	delHook.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		delCalls++
		return variant.Nil, nil
	})
	_, err := a.AddMemberMove("__new_signal_tick", variant.OBJECT, variant.OfObject(newHook))
	require.NoError(t, err)
	_, err = a.AddMemberMove("__del_signal_tick", variant.OBJECT, variant.OfObject(delHook))
	require.NoError(t, err)

	counter := 0
	h := countingHandler(&counter)
	l := a.Listen("tick", h, false)
	require.Equal(t, 1, newCalls)
	require.Equal(t, 0, delCalls)

	a.StopListener(l)
	require.Equal(t, 1, newCalls)
	require.Equal(t, 1, delCalls)
}

// TestDestroyedSignalDoesNotTakeSelfRef: unlike every other signal,
// "__destroyed" never takes an emitter self-ref, so listening on it alone
// must not keep the emitter alive.
func TestDestroyedSignalDoesNotTakeSelfRef(t *testing.T) {
	a := New()
	fired := false
	h := New()
	h.SetCall(func(self *Object, args variant.Variant) (variant.Variant, error) {
		fired = true
		return variant.Nil, nil
	})
	a.Listen(destroyedSignal, h, false)

	finalized := false
	a.SetDtor(func(*Object) { finalized = true })
	a.Unref()

	require.True(t, finalized)
	require.True(t, fired)
}
