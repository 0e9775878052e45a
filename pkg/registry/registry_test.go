package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/accessor"
	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

func TestRegisterModuleForbidsOverwrite(t *testing.T) {
	r := New([]string{"a", "b"}, "deai")
	mod := object.New()
	require.NoError(t, r.RegisterModule("log", mod))

	dup := object.New()
	defer dup.Unref()
	err := r.RegisterModule("log", dup)
	require.Error(t, err)
	require.True(t, deaierr.Is(err, deaierr.Exists))
}

func TestArgvAndProcTitleAccessors(t *testing.T) {
	r := New([]string{"--", "x", "y"}, "deai[test]")

	m, ok := r.Root.Lookup("__get_argv")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(variant.Nil)
	require.NoError(t, err)
	require.Equal(t, 3, len(out.Tuple))

	m, ok = r.Root.Lookup("__get_proctitle")
	require.True(t, ok)
	handle = m.Value.Obj.(*object.Object)
	out, err = handle.Call(variant.Nil)
	require.NoError(t, err)
	s, _ := variant.AsString(out)
	require.Equal(t, "deai[test]", s)
}

func TestExitLatchesCode(t *testing.T) {
	r := New(nil, "deai")
	_, called := r.ExitRequested()
	require.False(t, called)

	r.Exit(7)
	code, called := r.ExitRequested()
	require.True(t, called)
	require.Equal(t, 7, code)
}

func TestQuitFlag(t *testing.T) {
	r := New(nil, "deai")
	require.False(t, r.QuitRequested())
	r.Quit()
	require.True(t, r.QuitRequested())
}

func TestRootsAccessorListsHeldObjects(t *testing.T) {
	r := New(nil, "deai")
	o := object.New()
	require.NoError(t, r.Roots.Add("svc", o))

	m, ok := r.Root.Lookup("__get_roots")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(variant.Nil)
	require.NoError(t, err)
	rootsObj, ok := out.Obj.(*object.Object)
	require.True(t, ok)
	require.Equal(t, "deai:roots", rootsObj.GetType())

	listed, err := accessor.CallX(rootsObj, "list", variant.Nil)
	require.NoError(t, err)
	require.Equal(t, 1, len(listed.Tuple))
	require.Same(t, o, listed.Tuple[0].Obj.(*object.Object))
	variant.Free(&listed)

	names, err := accessor.GetX(rootsObj, "names")
	require.NoError(t, err)
	require.Equal(t, 1, len(names.Tuple))
	name, _ := variant.AsString(names.Tuple[0])
	require.Equal(t, "svc", name)

	variant.Free(&out)
	require.NoError(t, r.Roots.Remove("svc"))
	o.Unref()
}
