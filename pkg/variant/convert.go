package variant

import (
	"math"

	"github.com/deai-sub000/deai/pkg/deaierr"
)

// deadWeak is the designated dead weak reference produced by converting
// NIL to WEAK_OBJECT, shared globally so that case needs no allocation.
type deadWeak struct{}

func (deadWeak) Upgrade() (ObjectRef, bool) { return nil, false }
func (deadWeak) Clone() WeakRef             { return deadWeak{} }
func (deadWeak) Drop()                      {}

var DeadWeak WeakRef = deadWeak{}

func isInteger(t Tag) bool {
	switch t {
	case NINT, NUINT, INT, UINT:
		return true
	}
	return false
}

func signedOf(t Tag) bool { return t == NINT || t == INT }

func rawIntBits(v Variant) (signed int64, unsigned uint64, isSigned bool) {
	if signedOf(v.Tag) {
		return v.I, 0, true
	}
	return 0, v.U, false
}

// Convert changes src's type tag to to. Unlisted tag pairs fail with
// InvalidType; integer narrowing that would lose information fails with
// OutOfRange. borrow=true means the result may alias src's storage (src
// must outlive it and is left unmodified); borrow=false transfers
// ownership, and the caller must treat src as consumed on success.
func Convert(src Variant, to Tag, borrow bool) (Variant, error) {
	from := src.Tag

	if from == to {
		if borrow {
			return src, nil
		}
		out := src
		src.Tag = NIL
		return out, nil
	}

	// VARIANT -> T: unwrap one layer, then apply the table recursively.
	if from == VARIANT {
		inner := *src.Boxed
		if !borrow {
			// ownership of the boxed value transfers to the unwrap result;
			// the outer box itself is discarded.
			src.Boxed = nil
		}
		return Convert(inner, to, borrow)
	}

	// T -> VARIANT: wrap one layer.
	if to == VARIANT {
		var boxed Variant
		if borrow {
			boxed = src
		} else {
			boxed = src
			src.Tag = NIL
		}
		return Variant{Tag: VARIANT, Boxed: &boxed}, nil
	}

	if isInteger(from) && isInteger(to) {
		return convertInt(src, to)
	}
	if isInteger(from) && to == FLOAT {
		s, u, isSigned := rawIntBits(src)
		if isSigned {
			return OfFloat(float64(s)), nil
		}
		return OfFloat(float64(u)), nil
	}

	switch {
	case from == STRING && to == STRING_LITERAL:
		return Variant{}, deaierr.New(deaierr.InvalidType, "owned STRING cannot demote to STRING_LITERAL")
	case from == STRING_LITERAL && to == STRING:
		return OfString([]byte(src.Lit)), nil
	case from == NIL && to == ARRAY:
		return Variant{Tag: ARRAY, Elem: NIL, Array: nil}, nil
	case from == NIL && to == TUPLE:
		return Variant{Tag: TUPLE, Tuple: nil}, nil
	case from == NIL && to == WEAK_OBJECT:
		return Variant{Tag: WEAK_OBJECT, Weak: DeadWeak}, nil
	case from == OBJECT && to == WEAK_OBJECT:
		if src.Obj == nil {
			return Variant{Tag: WEAK_OBJECT, Weak: DeadWeak}, nil
		}
		w := src.Obj.Downgrade()
		if !borrow {
			src.Obj.Unref()
			src.Obj = nil
		}
		return Variant{Tag: WEAK_OBJECT, Weak: w}, nil
	case from == WEAK_OBJECT && to == OBJECT:
		if borrow {
			return Variant{}, deaierr.New(deaierr.InvalidType, "WEAK_OBJECT->OBJECT upgrade only valid with borrow=false")
		}
		if src.Weak == nil {
			return Variant{}, deaierr.New(deaierr.InvalidType, "dead weak reference")
		}
		obj, ok := src.Weak.Upgrade()
		if !ok {
			return Variant{}, deaierr.New(deaierr.InvalidType, "target object is gone")
		}
		return Variant{Tag: OBJECT, Obj: obj}, nil
	case from == TUPLE && to == ARRAY:
		return tupleToArray(src, borrow)
	case from == ARRAY && to == TUPLE:
		return arrayToTuple(src, borrow)
	}

	return Variant{}, deaierr.New(deaierr.InvalidType, "no conversion from %s to %s", from, to)
}

func convertInt(src Variant, to Tag) (Variant, error) {
	s, u, isSigned := rawIntBits(src)
	switch to {
	case NINT, INT:
		if isSigned {
			return Variant{Tag: to, I: s}, nil
		}
		if u > math.MaxInt64 {
			return Variant{}, deaierr.New(deaierr.OutOfRange, "%d overflows signed 64-bit", u)
		}
		return Variant{Tag: to, I: int64(u)}, nil
	case NUINT, UINT:
		if !isSigned {
			return Variant{Tag: to, U: u}, nil
		}
		if s < 0 {
			return Variant{}, deaierr.New(deaierr.OutOfRange, "%d cannot convert to unsigned", s)
		}
		return Variant{Tag: to, U: uint64(s)}, nil
	}
	return Variant{}, deaierr.New(deaierr.InvalidType, "not an integer tag: %s", to)
}

func tupleToArray(src Variant, borrow bool) (Variant, error) {
	elems := src.Tuple
	if len(elems) == 0 {
		return Variant{Tag: ARRAY, Elem: NIL}, nil
	}
	elemTag := elems[0].Tag
	for _, e := range elems[1:] {
		if e.Tag != elemTag {
			return Variant{}, deaierr.New(deaierr.InvalidType, "TUPLE->ARRAY requires identical element types, got %s and %s", elemTag, e.Tag)
		}
	}
	out := make([]Variant, len(elems))
	copy(out, elems)
	if !borrow {
		src.Tuple = nil
	}
	return Variant{Tag: ARRAY, Elem: elemTag, Array: out}, nil
}

func arrayToTuple(src Variant, borrow bool) (Variant, error) {
	out := make([]Variant, len(src.Array))
	copy(out, src.Array)
	if !borrow {
		src.Array = nil
	}
	return Variant{Tag: TUPLE, Tuple: out}, nil
}
