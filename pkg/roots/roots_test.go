package roots

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
)

// TestRootKeepsAlive: an object with zero external references survives as
// long as a root holds it, and is finalized the moment the root is
// removed.
func TestRootKeepsAlive(t *testing.T) {
	r := New()
	o := object.New()
	finalized := false
	o.SetDtor(func(*object.Object) { finalized = true })

	require.NoError(t, r.Add("keepalive", o))
	o.Unref() // drop the caller's own strong ref; the root still holds one

	require.False(t, finalized)

	require.NoError(t, r.Remove("keepalive"))
	require.True(t, finalized)
}

func TestAddDuplicateNameFails(t *testing.T) {
	r := New()
	a := object.New()
	b := object.New()
	defer a.Unref()
	defer b.Unref()

	require.NoError(t, r.Add("x", a))
	err := r.Add("x", b)
	require.Error(t, err)
	require.True(t, deaierr.Is(err, deaierr.Exists))
	require.NoError(t, r.Remove("x"))
}

func TestAnonymousRootsGetDistinctHandles(t *testing.T) {
	r := New()
	a := object.New()
	b := object.New()

	h1 := r.AddAnonymous(a)
	h2 := r.AddAnonymous(b)
	require.NotEqual(t, h1, h2)
	require.Equal(t, 2, r.AnonymousCount())

	require.True(t, r.RemoveAnonymous(h1))
	require.False(t, r.RemoveAnonymous(h1), "removing twice reports absent the second time")
	require.Equal(t, 1, r.AnonymousCount())
	r.RemoveAnonymous(h2)

	a.Unref()
	b.Unref()
}

func TestClearTeardownIsSafeAcrossCascade(t *testing.T) {
	r := New()
	a := object.New()
	b := object.New()

	aFinalized, bFinalized := false, false
	// b's destruction removes a different named root from the very set
	// being cleared, exercising the snapshot-then-drop contract.
	b.SetDtor(func(*object.Object) {
		bFinalized = true
		_ = r.Remove("a") // already gone mid-cascade; must not deadlock
	})
	a.SetDtor(func(*object.Object) { aFinalized = true })

	require.NoError(t, r.Add("a", a))
	require.NoError(t, r.Add("b", b))
	a.Unref()
	b.Unref()

	r.Clear()
	require.True(t, aFinalized)
	require.True(t, bFinalized)
	require.Empty(t, r.List())
}

func TestHeldEnumeratesNamedAndAnonymousRoots(t *testing.T) {
	r := New()
	a := object.New()
	b := object.New()

	require.NoError(t, r.Add("named", a))
	h := r.AddAnonymous(b)

	held := r.Held()
	require.Len(t, held, 2)
	require.Contains(t, held, a)
	require.Contains(t, held, b)

	require.NoError(t, r.Remove("named"))
	r.RemoveAnonymous(h)
	require.Empty(t, r.Held())
	a.Unref()
	b.Unref()
}

func TestListReturnsPlainNames(t *testing.T) {
	r := New()
	o := object.New()
	require.NoError(t, r.Add("svc", o))
	require.Equal(t, []string{"svc"}, r.List())
	require.NoError(t, r.Remove("svc"))
}
