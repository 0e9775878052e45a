// Package variant implements the tagged dynamic value that flows between
// objects: a fixed set of primitive and composite type tags plus the
// copy/free/convert rules that give each tag its ownership semantics. A
// Variant is one struct carrying a Tag discriminant and one field per
// payload shape; only the field matching the tag is meaningful.
package variant

import (
	"fmt"

	"github.com/deai-sub000/deai/pkg/deaierr"
)

// Tag is one of the fixed type tags a Variant can carry.
type Tag int

const (
	NIL Tag = iota
	BOOL
	NINT  // native-width signed integer
	NUINT // native-width unsigned integer
	INT   // 64-bit signed
	UINT  // 64-bit unsigned
	FLOAT
	POINTER
	STRING_LITERAL
	STRING
	ARRAY
	TUPLE
	VARIANT
	OBJECT
	WEAK_OBJECT
	EMPTY_OBJECT
	ANY // only valid in dispatch signatures
)

func (t Tag) String() string {
	switch t {
	case NIL:
		return "NIL"
	case BOOL:
		return "BOOL"
	case NINT:
		return "NINT"
	case NUINT:
		return "NUINT"
	case INT:
		return "INT"
	case UINT:
		return "UINT"
	case FLOAT:
		return "FLOAT"
	case POINTER:
		return "POINTER"
	case STRING_LITERAL:
		return "STRING_LITERAL"
	case STRING:
		return "STRING"
	case ARRAY:
		return "ARRAY"
	case TUPLE:
		return "TUPLE"
	case VARIANT:
		return "VARIANT"
	case OBJECT:
		return "OBJECT"
	case WEAK_OBJECT:
		return "WEAK_OBJECT"
	case EMPTY_OBJECT:
		return "EMPTY_OBJECT"
	case ANY:
		return "ANY"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// ObjectRef is the minimal surface the variant model needs from an object
// cell: enough to move strong/weak references through copy/free without
// pkg/variant importing pkg/object (which itself embeds Variant values in
// members). pkg/object supplies the concrete implementation.
type ObjectRef interface {
	Ref() ObjectRef
	Unref()
	Downgrade() WeakRef
}

// WeakRef is the minimal surface for a weak reference.
type WeakRef interface {
	Upgrade() (ObjectRef, bool)
	Clone() WeakRef
	Drop()
}

// Bottom is a distinguished sentinel distinct from NIL, used by generic
// getters to signal "no value exists" where NIL is itself a legitimate
// value. It is represented as a Variant with Tag -1 so it can never be
// produced by normal construction.
const bottomTag Tag = -1

var Bottom = Variant{Tag: bottomTag}

// IsBottom reports whether v is the bottom sentinel.
func (v Variant) IsBottom() bool { return v.Tag == bottomTag }

// Variant is the tagged dynamic value. Only the field(s) matching Tag are
// meaningful; the rest are zero.
type Variant struct {
	Tag Tag

	// BOOL
	Bool bool
	// NINT, NUINT, INT, UINT stored widened: signed numerics (NINT, INT)
	// live in I, unsigned numerics (NUINT, UINT) live in U.
	I int64
	U uint64
	// FLOAT
	F float64
	// POINTER
	Ptr interface{}
	// STRING_LITERAL: borrowed, immortal
	Lit string
	// STRING: owned
	Str []byte
	// ARRAY
	Elem  Tag
	Array []Variant
	// TUPLE
	Tuple []Variant
	// VARIANT: exactly one level of boxing
	Boxed *Variant
	// OBJECT
	Obj ObjectRef
	// WEAK_OBJECT
	Weak WeakRef
}

// Nil is the canonical NIL value.
var Nil = Variant{Tag: NIL}

func Of(v bool) Variant               { return Variant{Tag: BOOL, Bool: v} }
func OfInt(v int64) Variant           { return Variant{Tag: INT, I: v} }
func OfUint(v uint64) Variant         { return Variant{Tag: UINT, U: v} }
func OfNInt(v int64) Variant          { return Variant{Tag: NINT, I: v} }
func OfNUint(v uint64) Variant        { return Variant{Tag: NUINT, U: v} }
func OfFloat(v float64) Variant       { return Variant{Tag: FLOAT, F: v} }
func OfPointer(p interface{}) Variant { return Variant{Tag: POINTER, Ptr: p} }
func OfLiteral(s string) Variant      { return Variant{Tag: STRING_LITERAL, Lit: s} }

// OfString copies b into an owned STRING payload.
func OfString(b []byte) Variant {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Variant{Tag: STRING, Str: cp}
}

// OfObject wraps a strong object reference. Ownership of obj transfers to
// the returned Variant; the caller must not separately Unref it.
func OfObject(obj ObjectRef) Variant { return Variant{Tag: OBJECT, Obj: obj} }

// OfWeak wraps a weak object reference.
func OfWeak(w WeakRef) Variant { return Variant{Tag: WEAK_OBJECT, Weak: w} }

// EmptyObject is the sentinel for "object slot present but value unknown".
var EmptyObject = Variant{Tag: EMPTY_OBJECT}

// SizeOf returns the deterministic per-tag size in bytes. NIL, ANY and the
// bottom sentinel are zero.
func SizeOf(t Tag) int {
	switch t {
	case NIL, ANY, bottomTag:
		return 0
	case BOOL:
		return 1
	case NINT, NUINT, POINTER:
		return 8 // native width modeled as 64-bit
	case INT, UINT, FLOAT:
		return 8
	case STRING_LITERAL:
		return 8 // pointer-sized
	case STRING:
		return 16 // pointer + length
	case ARRAY, TUPLE:
		return 24 // length + type tag + buffer pointer
	case VARIANT:
		return 24 // boxed (tag, value) pair
	case OBJECT, WEAK_OBJECT, EMPTY_OBJECT:
		return 8
	default:
		return 0
	}
}

// Copy performs a deep copy for owned tags and a shallow copy otherwise:
// STRING duplicates its bytes, ARRAY/TUPLE/VARIANT recurse, OBJECT bumps
// the refcount, WEAK_OBJECT clones the weak reference.
func Copy(v Variant) Variant {
	switch v.Tag {
	case STRING:
		return OfString(v.Str)
	case ARRAY:
		out := make([]Variant, len(v.Array))
		for i, e := range v.Array {
			out[i] = Copy(e)
		}
		return Variant{Tag: ARRAY, Elem: v.Elem, Array: out}
	case TUPLE:
		out := make([]Variant, len(v.Tuple))
		for i, e := range v.Tuple {
			out[i] = Copy(e)
		}
		return Variant{Tag: TUPLE, Tuple: out}
	case VARIANT:
		inner := Copy(*v.Boxed)
		return Variant{Tag: VARIANT, Boxed: &inner}
	case OBJECT:
		if v.Obj == nil {
			return v
		}
		return Variant{Tag: OBJECT, Obj: v.Obj.Ref()}
	case WEAK_OBJECT:
		if v.Weak == nil {
			return v
		}
		return Variant{Tag: WEAK_OBJECT, Weak: v.Weak.Clone()}
	default:
		// BOOL, NINT/NUINT/INT/UINT, FLOAT, POINTER, STRING_LITERAL, NIL,
		// EMPTY_OBJECT, ANY: shallow/by-value.
		return v
	}
}

// Free is the reciprocal of Copy. It is idempotent on NIL.
func Free(v *Variant) {
	if v == nil {
		return
	}
	switch v.Tag {
	case STRING:
		v.Str = nil
	case ARRAY:
		for i := range v.Array {
			Free(&v.Array[i])
		}
		v.Array = nil
	case TUPLE:
		for i := range v.Tuple {
			Free(&v.Tuple[i])
		}
		v.Tuple = nil
	case VARIANT:
		if v.Boxed != nil {
			Free(v.Boxed)
			v.Boxed = nil
		}
	case OBJECT:
		if v.Obj != nil {
			v.Obj.Unref()
			v.Obj = nil
		}
	case WEAK_OBJECT:
		if v.Weak != nil {
			v.Weak.Drop()
			v.Weak = nil
		}
	}
	v.Tag = NIL
}

var errInvalidType = deaierr.Sentinel(deaierr.InvalidType)
var errOutOfRange = deaierr.Sentinel(deaierr.OutOfRange)

// IsErrInvalidType reports whether err is (or wraps) an InvalidType error.
func IsErrInvalidType(err error) bool { return matchKind(err, deaierr.InvalidType) }

// IsErrOutOfRange reports whether err is (or wraps) an OutOfRange error.
func IsErrOutOfRange(err error) bool { return matchKind(err, deaierr.OutOfRange) }

func matchKind(err error, k deaierr.Kind) bool {
	return deaierr.Is(err, k)
}
