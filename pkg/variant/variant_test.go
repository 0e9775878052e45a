package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeOfBoundaries(t *testing.T) {
	require.Equal(t, 0, SizeOf(NIL))
	require.Equal(t, 0, SizeOf(ANY))
	require.Equal(t, 0, SizeOf(bottomTag))
	require.Equal(t, 1, SizeOf(BOOL))
}

func TestCopyFreeString(t *testing.T) {
	v := OfString([]byte("hello"))
	cp := Copy(v)
	cp.Str[0] = 'H' // mutate the copy
	require.Equal(t, "hello", string(v.Str), "copy must be independent of source")
	Free(&v)
	Free(&cp)
	require.Equal(t, NIL, v.Tag)
}

func TestCopyFreeArrayRecurses(t *testing.T) {
	arr := Variant{Tag: ARRAY, Elem: STRING, Array: []Variant{OfString([]byte("a")), OfString([]byte("b"))}}
	cp := Copy(arr)
	cp.Array[0].Str[0] = 'X'
	require.Equal(t, "a", string(arr.Array[0].Str))
	Free(&arr)
	Free(&cp)
}

func TestEmptyArrayRoundTrip(t *testing.T) {
	empty := Variant{Tag: ARRAY, Elem: NIL}
	tup, err := Convert(empty, TUPLE, false)
	require.NoError(t, err)
	require.Equal(t, 0, len(tup.Tuple))

	back, err := Convert(Variant{Tag: TUPLE}, ARRAY, false)
	require.NoError(t, err)
	require.Equal(t, NIL, back.Elem)
	require.Equal(t, 0, len(back.Array))
}

func TestIntegerBoundaryConversions(t *testing.T) {
	maxI64 := OfInt(int64(1<<63 - 1))
	out, err := Convert(maxI64, UINT, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<63-1), out.U)

	zero := OfInt(0)
	out, err = Convert(zero, UINT, true)
	require.NoError(t, err)
	require.Equal(t, uint64(0), out.U)

	neg := OfInt(-1)
	_, err = Convert(neg, UINT, false)
	require.Error(t, err)
	require.True(t, IsErrOutOfRange(err))

	big := OfUint(1 << 63)
	_, err = Convert(big, INT, false)
	require.Error(t, err)
	require.True(t, IsErrOutOfRange(err))
}

func TestStringLiteralPromotionOnly(t *testing.T) {
	lit := StringLiteral("hi")
	owned, err := Convert(lit, STRING, false)
	require.NoError(t, err)
	require.Equal(t, "hi", string(owned.Str))

	_, err = Convert(owned, STRING_LITERAL, false)
	require.Error(t, err)
	require.True(t, IsErrInvalidType(err))
}

func TestTupleToArrayRequiresUniformTypes(t *testing.T) {
	mixed := Variant{Tag: TUPLE, Tuple: []Variant{OfInt(1), OfFloat(2.0)}}
	_, err := Convert(mixed, ARRAY, true)
	require.Error(t, err)
	require.True(t, IsErrInvalidType(err))

	uniform := Variant{Tag: TUPLE, Tuple: []Variant{OfInt(1), OfInt(2)}}
	arr, err := Convert(uniform, ARRAY, true)
	require.NoError(t, err)
	require.Equal(t, INT, arr.Elem)
}

func TestVariantBoxRoundTrip(t *testing.T) {
	boxed, err := Convert(OfInt(42), VARIANT, true)
	require.NoError(t, err)
	require.Equal(t, VARIANT, boxed.Tag)

	unwrapped, err := Convert(boxed, INT, true)
	require.NoError(t, err)
	require.Equal(t, int64(42), unwrapped.I)
}

func TestNilToWeakObjectIsDead(t *testing.T) {
	w, err := Convert(Nil, WEAK_OBJECT, false)
	require.NoError(t, err)
	_, ok := w.Weak.Upgrade()
	require.False(t, ok)
}
