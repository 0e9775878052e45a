package spawn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

func TestRunEmitsExitWithoutReaper(t *testing.T) {
	mod := New(nil)
	m, ok := mod.Lookup("run")
	require.True(t, ok)
	handle := m.Value.Obj.(*object.Object)

	out, err := handle.Call(variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{
		variant.NewString("/bin/true"),
	}})
	require.NoError(t, err)
	proc := out.Obj.(*object.Object)

	done := make(chan struct{})
	var code, sig int64
	listener := object.New()
	listener.SetCall(func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		code, sig = args.Tuple[0].I, args.Tuple[1].I
		close(done)
		return variant.Nil, nil
	})
	proc.Listen("exit", listener, true)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit signal")
	}
	require.Equal(t, int64(0), code)
	require.Equal(t, int64(0), sig)
}

func TestRunRejectsEmptyArgv(t *testing.T) {
	mod := New(nil)
	m, _ := mod.Lookup("run")
	handle := m.Value.Obj.(*object.Object)
	_, err := handle.Call(variant.Nil)
	require.Error(t, err)
}
