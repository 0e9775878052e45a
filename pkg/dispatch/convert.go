package dispatch

import (
	"reflect"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

type variantToGo func(v variant.Variant) (reflect.Value, error)
type goToVariant func(out []reflect.Value) (variant.Variant, error)

var objectType = reflect.TypeOf((*object.Object)(nil))
var variantType = reflect.TypeOf(variant.Variant{})
var errorType = reflect.TypeOf((*error)(nil)).Elem()

func converterFor(tag variant.Tag, goType reflect.Type) (variantToGo, error) {
	switch tag {
	case variant.OBJECT:
		if goType != objectType {
			return nil, deaierr.New(deaierr.InvalidType, "OBJECT argument must bind to *object.Object, got %s", goType)
		}
		return func(v variant.Variant) (reflect.Value, error) {
			obj, ok := v.Obj.(*object.Object)
			if !ok {
				return reflect.Value{}, deaierr.New(deaierr.InvalidType, "OBJECT variant does not carry a *object.Object")
			}
			return reflect.ValueOf(obj), nil
		}, nil
	case variant.INT, variant.NINT, variant.UINT, variant.NUINT:
		if goType == variantType {
			return identityConverter, nil
		}
		switch goType.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return func(v variant.Variant) (reflect.Value, error) {
				return reflect.ValueOf(v.I).Convert(goType), nil
			}, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return func(v variant.Variant) (reflect.Value, error) {
				return reflect.ValueOf(v.U).Convert(goType), nil
			}, nil
		}
		return nil, deaierr.New(deaierr.InvalidType, "integer tag cannot bind to Go type %s", goType)
	case variant.FLOAT:
		if goType == variantType {
			return identityConverter, nil
		}
		return func(v variant.Variant) (reflect.Value, error) {
			return reflect.ValueOf(v.F).Convert(goType), nil
		}, nil
	case variant.BOOL:
		if goType == variantType {
			return identityConverter, nil
		}
		return func(v variant.Variant) (reflect.Value, error) {
			return reflect.ValueOf(v.Bool), nil
		}, nil
	case variant.STRING, variant.STRING_LITERAL:
		if goType == variantType {
			return identityConverter, nil
		}
		if goType.Kind() != reflect.String {
			return nil, deaierr.New(deaierr.InvalidType, "STRING/STRING_LITERAL argument must bind to a Go string, got %s", goType)
		}
		return func(v variant.Variant) (reflect.Value, error) {
			s, _ := variant.AsString(v)
			return reflect.ValueOf(s).Convert(goType), nil
		}, nil
	case variant.POINTER:
		return func(v variant.Variant) (reflect.Value, error) {
			if v.Ptr == nil {
				return reflect.Zero(goType), nil
			}
			rv := reflect.ValueOf(v.Ptr)
			if !rv.Type().AssignableTo(goType) {
				return reflect.Value{}, deaierr.New(deaierr.InvalidType, "POINTER payload %s not assignable to %s", rv.Type(), goType)
			}
			return rv, nil
		}, nil
	case variant.WEAK_OBJECT, variant.ARRAY, variant.TUPLE, variant.VARIANT, variant.EMPTY_OBJECT, variant.ANY, variant.NIL:
		return identityConverter, nil
	default:
		return nil, deaierr.New(deaierr.InvalidType, "unsupported argument tag %s", tag)
	}
}

func identityConverter(v variant.Variant) (reflect.Value, error) {
	return reflect.ValueOf(v), nil
}

// producerFor builds the function that turns the native Go function's
// return values into a Variant carrying the declared return tag. It
// accepts the (T, error) convention idiomatic Go functions use in place
// of a raw integer status.
func producerFor(ret variant.Tag, fnType reflect.Type) (goToVariant, error) {
	n := fnType.NumOut()
	hasErr := n > 0 && fnType.Out(n-1) == errorType
	valOuts := n
	if hasErr {
		valOuts = n - 1
	}
	if ret == variant.NIL {
		if valOuts > 0 {
			return nil, deaierr.New(deaierr.InvalidType, "NIL return signature but fn produces %d value(s)", valOuts)
		}
		return func(out []reflect.Value) (variant.Variant, error) {
			if hasErr {
				if err, _ := out[n-1].Interface().(error); err != nil {
					return variant.Variant{}, err
				}
			}
			return variant.Nil, nil
		}, nil
	}
	if valOuts != 1 {
		return nil, deaierr.New(deaierr.InvalidType, "non-NIL return signature requires exactly one value result, fn has %d", valOuts)
	}
	return func(out []reflect.Value) (variant.Variant, error) {
		if hasErr {
			if err, _ := out[n-1].Interface().(error); err != nil {
				return variant.Variant{}, err
			}
		}
		return wrapResult(ret, out[0])
	}, nil
}

func wrapResult(tag variant.Tag, rv reflect.Value) (variant.Variant, error) {
	if rv.Type() == variantType {
		return rv.Interface().(variant.Variant), nil
	}
	switch tag {
	case variant.INT, variant.NINT:
		return variant.Variant{Tag: tag, I: rv.Convert(reflect.TypeOf(int64(0))).Int()}, nil
	case variant.UINT, variant.NUINT:
		return variant.Variant{Tag: tag, U: rv.Convert(reflect.TypeOf(uint64(0))).Uint()}, nil
	case variant.FLOAT:
		return variant.OfFloat(rv.Convert(reflect.TypeOf(float64(0))).Float()), nil
	case variant.BOOL:
		return variant.Of(rv.Bool()), nil
	case variant.STRING:
		return variant.OfString([]byte(rv.String())), nil
	case variant.STRING_LITERAL:
		return variant.OfLiteral(rv.String()), nil
	case variant.POINTER:
		return variant.OfPointer(rv.Interface()), nil
	case variant.OBJECT:
		obj, ok := rv.Interface().(*object.Object)
		if !ok {
			return variant.Variant{}, deaierr.New(deaierr.InvalidType, "OBJECT return must be *object.Object, got %s", rv.Type())
		}
		return variant.OfObject(obj), nil
	default:
		return variant.Variant{}, deaierr.New(deaierr.InvalidType, "unsupported return tag %s for Go type %s", tag, rv.Type())
	}
}
