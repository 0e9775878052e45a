//go:build linux

package event

import (
	"time"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/dispatch"
	"github.com/deai-sub000/deai/pkg/mainloop"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// Module wraps l into the "event" module object: factories for fd, timer,
// periodic, and prepare sources, each returning an object that delivers
// loop activity as signals. A source's loop registration starts with its
// first listener and stops with its last, so an idle source costs the loop
// nothing.
func Module(l *Loop) *object.Object {
	mod := object.New()
	mod.SetType("deai:event")

	must(dispatch.AddRawMethod(mod, "fdevent", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		fd, mask, err := twoIntArgs(args, "fdevent")
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.OfObject(newFDSource(l, int(fd), mainloop.FDEventSet(mask))), nil
	}))
	must(dispatch.AddRawMethod(mod, "timer", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		d, err := secondsArg(args, "timer")
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.OfObject(newTimerSource(l, d)), nil
	}))
	must(dispatch.AddRawMethod(mod, "periodic", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		d, err := secondsArg(args, "periodic")
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.OfObject(newPeriodicSource(l, d)), nil
	}))
	must(dispatch.AddRawMethod(mod, "prepare", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		return variant.OfObject(newPrepareSource(l)), nil
	}))

	return mod
}

// newFDSource returns an object emitting "read" / "write" / "io" signals
// for readiness on fd, filtered by the caller's interest mask.
func newFDSource(l *Loop, fd int, interest mainloop.FDEventSet) *object.Object {
	src := object.New()
	src.SetType("deai:fdevent")

	var token int
	watchers := 0

	start := func() {
		watchers++
		if watchers > 1 {
			return
		}
		tok, err := l.AddFD(fd, interest, func(fd int, ev mainloop.FDEventSet) bool {
			args := variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{variant.OfInt(int64(ev))}}
			if ev&mainloop.Readable != 0 {
				src.Emit("read", args)
			}
			if ev&mainloop.Writable != 0 {
				src.Emit("write", args)
			}
			src.Emit("io", args)
			return true
		})
		if err != nil {
			watchers--
			return
		}
		token = tok
	}
	stop := func() {
		watchers--
		if watchers > 0 {
			return
		}
		_ = l.RemoveFD(token)
	}
	for _, sig := range []string{"read", "write", "io"} {
		installHook(src, "__new_signal_"+sig, start)
		installHook(src, "__del_signal_"+sig, stop)
	}
	// Destruction tears listeners down without running the per-signal
	// detach hooks, so the loop registration has to be dropped here.
	src.SetDtor(func(*object.Object) {
		if watchers > 0 {
			watchers = 0
			_ = l.RemoveFD(token)
		}
	})
	return src
}

// newTimerSource returns an object emitting "elapsed" once when d expires.
// Writing the "timeout" property (seconds) resets and restarts the timer.
func newTimerSource(l *Loop, d time.Duration) *object.Object {
	src := object.New()
	src.SetType("deai:timer")

	var token int
	armed := false

	arm := func() {
		token = l.AddTimer(d, func() {
			armed = false
			src.Emit("elapsed", variant.Nil)
		})
		armed = true
	}
	disarm := func() {
		if armed {
			l.CancelTimer(token)
			armed = false
		}
	}

	installHook(src, "__new_signal_elapsed", func() {
		if !armed {
			arm()
		}
	})
	installHook(src, "__del_signal_elapsed", disarm)
	src.SetDtor(func(*object.Object) { disarm() })

	must(dispatch.AddFieldGetter(src, "timeout", variant.FLOAT, func(self *object.Object) variant.Variant {
		return variant.OfFloat(d.Seconds())
	}))
	must(dispatch.AddRawMethod(src, "__set_timeout", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		nd, err := secondsArg(args, "timeout")
		if err != nil {
			return variant.Variant{}, err
		}
		d = nd
		disarm()
		if src.ListenerCount("elapsed") > 0 {
			arm()
		}
		return variant.Nil, nil
	}))
	return src
}

// newPeriodicSource returns an object emitting "triggered" every interval.
func newPeriodicSource(l *Loop, interval time.Duration) *object.Object {
	src := object.New()
	src.SetType("deai:periodic")

	var token int
	running := false

	installHook(src, "__new_signal_triggered", func() {
		if running {
			return
		}
		token = l.AddPeriodic(interval, func() {
			src.Emit("triggered", variant.Nil)
		})
		running = true
	})
	stop := func() {
		if running {
			l.CancelPeriodic(token)
			running = false
		}
	}
	installHook(src, "__del_signal_triggered", stop)
	src.SetDtor(func(*object.Object) { stop() })
	return src
}

// newPrepareSource returns an object emitting "prepare" immediately before
// each loop iteration blocks, letting collaborators defer work out of
// foreign callbacks.
func newPrepareSource(l *Loop) *object.Object {
	src := object.New()
	src.SetType("deai:prepare")

	var token int
	registered := false

	installHook(src, "__new_signal_prepare", func() {
		if registered {
			return
		}
		token = l.AddPrepare(func() {
			src.Emit("prepare", variant.Nil)
		})
		registered = true
	})
	stop := func() {
		if registered {
			l.RemovePrepare(token)
			registered = false
		}
	}
	installHook(src, "__del_signal_prepare", stop)
	src.SetDtor(func(*object.Object) { stop() })
	return src
}

// installHook attaches fn as a callable member, used for the
// __new_signal_* / __del_signal_* attach/detach notifications.
func installHook(o *object.Object, name string, fn func()) {
	h := object.New()
	h.SetCall(func(_ *object.Object, _ variant.Variant) (variant.Variant, error) {
		fn()
		return variant.Nil, nil
	})
	if _, err := o.AddMemberMove(name, variant.OBJECT, variant.OfObject(h)); err != nil {
		panic(err)
	}
}

func twoIntArgs(args variant.Variant, method string) (int64, int64, error) {
	if args.Tag != variant.TUPLE || len(args.Tuple) != 2 {
		return 0, 0, deaierr.New(deaierr.InvalidArity, "%s takes exactly 2 arguments", method)
	}
	out := [2]int64{}
	for i, v := range args.Tuple {
		switch v.Tag {
		case variant.INT, variant.NINT:
			out[i] = v.I
		case variant.UINT, variant.NUINT:
			out[i] = int64(v.U)
		default:
			return 0, 0, deaierr.New(deaierr.InvalidType, "%s: argument %d must be an integer", method, i)
		}
	}
	return out[0], out[1], nil
}

// secondsArg reads a single numeric argument as a duration in seconds.
func secondsArg(args variant.Variant, method string) (time.Duration, error) {
	v := args
	if args.Tag == variant.TUPLE {
		if len(args.Tuple) != 1 {
			return 0, deaierr.New(deaierr.InvalidArity, "%s takes exactly 1 argument", method)
		}
		v = args.Tuple[0]
	}
	switch v.Tag {
	case variant.FLOAT:
		return time.Duration(v.F * float64(time.Second)), nil
	case variant.INT, variant.NINT:
		return time.Duration(v.I) * time.Second, nil
	case variant.UINT, variant.NUINT:
		return time.Duration(v.U) * time.Second, nil
	default:
		return 0, deaierr.New(deaierr.InvalidType, "%s: expected seconds as a number, got %s", method, v.Tag)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
