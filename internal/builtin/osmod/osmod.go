// Package osmod is the built-in "os" module: os.env(name), os.hostname(),
// os.uname(), and a read-only __get_argv mirroring os.Args[1:]. uname
// goes through golang.org/x/sys/unix for the raw utsname fields the
// stdlib does not surface.
package osmod

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/dispatch"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// New builds the os module object.
func New() *object.Object {
	obj := object.New()
	obj.SetType("deai:os")

	must(dispatch.AddRawMethod(obj, "env", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		name, err := soloString(args, "env")
		if err != nil {
			return variant.Variant{}, err
		}
		v, ok := os.LookupEnv(name)
		if !ok {
			return variant.Variant{}, deaierr.New(deaierr.NotFound, "env: %q not set", name)
		}
		return variant.NewString(v), nil
	}))

	must(dispatch.AddRawMethod(obj, "hostname", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		h, err := os.Hostname()
		if err != nil {
			return variant.Variant{}, deaierr.Wrap(deaierr.Other, err, "hostname")
		}
		return variant.NewString(h), nil
	}))

	must(dispatch.AddRawMethod(obj, "uname", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		var u unix.Utsname
		if err := unix.Uname(&u); err != nil {
			return variant.Variant{}, deaierr.Wrap(deaierr.Other, err, "uname")
		}
		info := object.New()
		info.SetType("deai:os.uname")
		fields := map[string][]byte{
			"sysname":  u.Sysname[:],
			"nodename": u.Nodename[:],
			"release":  u.Release[:],
			"version":  u.Version[:],
			"machine":  u.Machine[:],
		}
		for name, raw := range fields {
			if err := info.AddMemberClone(name, variant.STRING, variant.NewString(charsToString(raw))); err != nil {
				return variant.Variant{}, err
			}
		}
		return variant.OfObject(info), nil
	}))

	must(dispatch.AddFieldGetter(obj, "argv", variant.TUPLE, func(self *object.Object) variant.Variant {
		tup := make([]variant.Variant, len(os.Args)-1)
		for i, a := range os.Args[1:] {
			tup[i] = variant.NewString(a)
		}
		return variant.Variant{Tag: variant.TUPLE, Tuple: tup}
	}))

	return obj
}

func charsToString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func soloString(args variant.Variant, method string) (string, error) {
	var v variant.Variant
	switch args.Tag {
	case variant.TUPLE:
		if len(args.Tuple) != 1 {
			return "", deaierr.New(deaierr.InvalidArity, "%s takes exactly 1 argument", method)
		}
		v = args.Tuple[0]
	case variant.NIL:
		return "", deaierr.New(deaierr.InvalidArity, "%s takes exactly 1 argument", method)
	default:
		v = args
	}
	s, ok := variant.AsString(v)
	if !ok {
		return "", deaierr.New(deaierr.InvalidType, "%s: argument must be a string", method)
	}
	return s, nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
