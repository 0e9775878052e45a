package logmod

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

func call(t *testing.T, mod *object.Object, name string, args variant.Variant) variant.Variant {
	t.Helper()
	m, ok := mod.Lookup(name)
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(args)
	require.NoError(t, err)
	return out
}

func TestLevelGetSet(t *testing.T) {
	mod := New(Info)
	out := call(t, mod, "__get_level", variant.Nil)
	require.Equal(t, int64(Info), out.I)

	call(t, mod, "__set_level", variant.OfInt(int64(Error)))
	out = call(t, mod, "__get_level", variant.Nil)
	require.Equal(t, int64(Error), out.I)
}

func TestLogRejectsUnknownLevel(t *testing.T) {
	mod := New(Debug)
	m, _ := mod.Lookup("log")
	handle := m.Value.Obj.(*object.Object)
	_, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{
		variant.NewString("critical"), variant.NewString("hi"),
	}})
	require.Error(t, err)
}

func TestLogAcceptsKnownLevel(t *testing.T) {
	mod := New(Debug)
	m, _ := mod.Lookup("log")
	handle := m.Value.Obj.(*object.Object)
	_, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{
		variant.NewString("info"), variant.NewString("hello"),
	}})
	require.NoError(t, err)
}
