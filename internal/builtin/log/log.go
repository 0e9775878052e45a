// Package logmod is the built-in "log" module: log(level, msg) plus a
// get/set "level" property gating which calls are actually emitted.
// Output goes through glog; this module's own Level threshold plays the
// same role as glog's -v flag, just addressable from inside the object
// graph.
package logmod

import (
	"strings"

	"github.com/golang/glog"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/dispatch"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// Level is this module's own verbosity gate, independent of glog's -v.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func parseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warning", "warn":
		return Warning, true
	case "error":
		return Error, true
	default:
		return 0, false
	}
}

// New builds the log module object with an initial threshold: calls at a
// level below threshold are silently dropped rather than logged.
func New(threshold Level) *object.Object {
	obj := object.New()
	obj.SetType("deai:log")
	level := threshold

	must(dispatch.AddFieldGetter(obj, "level", variant.INT, func(self *object.Object) variant.Variant {
		return variant.OfInt(int64(level))
	}))
	must(dispatch.AddRawMethod(obj, "__set_level", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		if args.Tag != variant.INT && args.Tag != variant.NINT {
			return variant.Variant{}, deaierr.New(deaierr.InvalidType, "log.level must be set to an integer")
		}
		level = Level(args.I)
		return variant.Nil, nil
	}))
	must(dispatch.AddRawMethod(obj, "log", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		if args.Tag != variant.TUPLE || len(args.Tuple) != 2 {
			return variant.Variant{}, deaierr.New(deaierr.InvalidArity, "log(level, msg) takes exactly 2 arguments")
		}
		levelStr, ok := variant.AsString(args.Tuple[0])
		if !ok {
			return variant.Variant{}, deaierr.New(deaierr.InvalidType, "log: level must be a string")
		}
		msg, ok := variant.AsString(args.Tuple[1])
		if !ok {
			return variant.Variant{}, deaierr.New(deaierr.InvalidType, "log: msg must be a string")
		}
		lvl, ok := parseLevel(levelStr)
		if !ok {
			return variant.Variant{}, deaierr.New(deaierr.InvalidType, "log: unknown level %q", levelStr)
		}
		emit(lvl, level, msg)
		return variant.Nil, nil
	}))
	return obj
}

func emit(lvl, threshold Level, msg string) {
	if lvl < threshold {
		return
	}
	switch lvl {
	case Debug:
		glog.V(1).Infof("%s", msg)
	case Info:
		glog.Infof("%s", msg)
	case Warning:
		glog.Warningf("%s", msg)
	case Error:
		glog.Errorf("%s", msg)
	}
}

// Diagnostic returns a function suitable for object.SetDiagnosticLogger,
// routing the core's own destruction and signal-handler diagnostics
// through glog at warning level.
func Diagnostic() func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		glog.Warningf(format, args...)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
