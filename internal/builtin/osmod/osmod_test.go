package osmod

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

func TestEnvRoundTrip(t *testing.T) {
	require.NoError(t, os.Setenv("DEAI_OSMOD_TEST", "hi"))
	defer os.Unsetenv("DEAI_OSMOD_TEST")

	mod := New()
	m, ok := mod.Lookup("env")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)

	out, err := handle.Call(variant.NewString("DEAI_OSMOD_TEST"))
	require.NoError(t, err)
	s, _ := variant.AsString(out)
	require.Equal(t, "hi", s)

	_, err = handle.Call(variant.NewString("DEAI_OSMOD_DOES_NOT_EXIST"))
	require.Error(t, err)
}

func TestArgvAccessor(t *testing.T) {
	mod := New()
	m, ok := mod.Lookup("__get_argv")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)
	out, err := handle.Call(variant.Nil)
	require.NoError(t, err)
	require.Equal(t, len(os.Args)-1, len(out.Tuple))
}

func TestCharsToString(t *testing.T) {
	buf := make([]byte, 8)
	copy(buf, "linux")
	require.Equal(t, "linux", charsToString(buf))
}
