// Command deai is the small commandline entry point: build the root
// object, install the built-in modules, route exactly one method call
// parsed from argv, and either exit immediately (if the call set an exit
// code) or run the mainloop until the root set empties.
//
// Usage: deai [flags] <module>.<method> <arg>* [-- <extra>*]. Each <arg>
// is a typed literal (i:<decimal>, s:<utf-8>, f:<decimal>); everything
// after a literal "--" is left unparsed in argv for loaded plugins.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/deai-sub000/deai/internal/builtin/event"
	logmod "github.com/deai-sub000/deai/internal/builtin/log"
	"github.com/deai-sub000/deai/internal/builtin/osmod"
	"github.com/deai-sub000/deai/internal/builtin/spawn"
	"github.com/deai-sub000/deai/pkg/accessor"
	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/registry"
	"github.com/deai-sub000/deai/pkg/variant"
)

func main() {
	os.Exit(run(os.Args))
}

const exitFailure = 1
const exitUsage = 2

func run(argv []string) int {
	defer glog.Flush()

	// glog refuses to log quietly until the standard flag set is parsed;
	// this command does its own flag scanning, so mark it parsed.
	_ = flag.CommandLine.Parse(nil)

	flagArgs, positional := splitFlags(argv[1:])
	opts, err := parseFlags(flagArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	callArgs, extraArgv := splitDoubleDash(positional)
	if len(callArgs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: deai [-verify-plugins] [-plugin path] [-plugin-dir dir] <module>.<method> <arg>* [-- <extra>*]")
		return exitUsage
	}

	tuple, err := parseLiteralArgs(callArgs[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	reg := registry.New(extraArgv, argv[0])
	reg.VerifyPlugins = opts.verifyPlugins
	object.SetDiagnosticLogger(logmod.Diagnostic())
	registry.SetPluginFailureLogger(func(path string, err error) {
		glog.Warningf("load_plugin_from_dir: skipping %q: %v", path, err)
	})

	loop, loopErr := event.New()
	var reaper *event.Loop
	if loopErr == nil {
		reaper = loop
		defer loop.Close()
	} else {
		glog.Warningf("event: mainloop unavailable (%v); spawn will reap children on a dedicated goroutine", loopErr)
	}

	installBuiltins(reg, reaper)

	if opts.pluginPath != "" {
		if err := reg.LoadPlugin(opts.pluginPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
	}
	if opts.pluginDir != "" {
		if err := reg.LoadPluginFromDir(opts.pluginDir); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
	}

	result, callErr := dispatch(reg, callArgs[0], tuple)
	if callErr != nil {
		fmt.Fprintln(os.Stderr, callErr)
		printErrmsg(result)
		return exitFailure
	}
	if msg, ok := errmsgOf(result); ok {
		fmt.Fprintln(os.Stderr, msg)
		return exitFailure
	}

	if code, exited := reg.ExitRequested(); exited {
		return code
	}

	if reaper != nil {
		runUntilRootsEmpty(reg, reaper)
	}
	return 0
}

// installBuiltins installs the built-in modules: log, os, spawn, and (when
// a usable mainloop exists) event. A nil loop still gets a working spawn
// module, degraded to goroutine-based reaping per its own doc comment.
func installBuiltins(reg *registry.Registry, loop *event.Loop) {
	must(reg.RegisterModule("log", logmod.New(logmod.Info)))
	must(reg.RegisterModule("os", osmod.New()))
	if loop != nil {
		must(reg.RegisterModule("spawn", spawn.New(loop)))
		must(reg.RegisterModule("event", event.Module(loop)))
	} else {
		must(reg.RegisterModule("spawn", spawn.New(nil)))
	}
}

// runUntilRootsEmpty arms a periodic check and runs the mainloop until
// nothing remains in the root set or quit() was called.
func runUntilRootsEmpty(reg *registry.Registry, loop *event.Loop) {
	check := func() {
		if reg.QuitRequested() || rootsEmpty(reg) {
			loop.Quit()
		}
	}
	token := loop.AddPeriodic(50*time.Millisecond, check)
	defer loop.CancelPeriodic(token)
	check()
	loop.Run()
}

func rootsEmpty(reg *registry.Registry) bool {
	return len(reg.Roots.List()) == 0 && reg.Roots.AnonymousCount() == 0
}

func dispatch(reg *registry.Registry, target string, args variant.Variant) (variant.Variant, error) {
	modName, methodName, hasModule := strings.Cut(target, ".")
	if !hasModule {
		// An un-dotted target is a method on the root itself.
		return accessor.CallX(reg.Root, target, args)
	}
	modVal, err := accessor.GetX(reg.Root, modName)
	if err != nil {
		return variant.Variant{}, deaierr.Wrap(deaierr.NotFound, err, "no module %q", modName)
	}
	mod, ok := modVal.Obj.(*object.Object)
	if !ok {
		return variant.Variant{}, deaierr.New(deaierr.InvalidType, "member %q is not an object", modName)
	}
	return accessor.CallX(mod, methodName, args)
}

func printErrmsg(v variant.Variant) {
	if msg, ok := errmsgOf(v); ok {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// errmsgOf reports the "errmsg" string member of v, if v is an object
// carrying one (the deai:error convention).
func errmsgOf(v variant.Variant) (string, bool) {
	obj, ok := v.Obj.(*object.Object)
	if !ok {
		return "", false
	}
	raw, err := accessor.RawGetX(obj, "errmsg")
	if err != nil {
		return "", false
	}
	s, ok := variant.AsString(raw)
	return s, ok
}

type options struct {
	verifyPlugins bool
	pluginPath    string
	pluginDir     string
}

// splitFlags separates leading "-name" / "-name=value" process flags from
// the first positional argument onward: flags for this command never come
// after the routed call.
func splitFlags(args []string) (flagArgs, rest []string) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") && args[i] != "--" {
		flagArgs = append(flagArgs, args[i])
		i++
	}
	return flagArgs, args[i:]
}

func parseFlags(args []string) (options, error) {
	var opts options
	for _, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		switch name {
		case "verify-plugins":
			opts.verifyPlugins = true
		case "plugin":
			if !hasValue {
				return opts, fmt.Errorf("-plugin requires a value")
			}
			opts.pluginPath = value
		case "plugin-dir":
			if !hasValue {
				return opts, fmt.Errorf("-plugin-dir requires a value")
			}
			opts.pluginDir = value
		default:
			return opts, fmt.Errorf("unknown flag %q", a)
		}
	}
	return opts, nil
}

// splitDoubleDash splits args at the first literal "--"; everything after
// it is not parsed and remains in argv for the loaded plugin/script.
func splitDoubleDash(args []string) (call, extra []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// parseLiteralArgs decodes each "<tag>:<payload>" positional argument
// (i:/s:/f:) into a caller argument tuple. Any argument whose second
// character is not ':' is rejected.
func parseLiteralArgs(args []string) (variant.Variant, error) {
	tuple := make([]variant.Variant, len(args))
	for i, a := range args {
		if len(a) < 2 || a[1] != ':' {
			return variant.Variant{}, fmt.Errorf("argument %q is not a typed literal (want i:/s:/f:<value>)", a)
		}
		tag, payload := a[0], a[2:]
		switch tag {
		case 'i':
			n, err := strconv.ParseInt(payload, 10, 64)
			if err != nil {
				return variant.Variant{}, fmt.Errorf("argument %q: %w", a, err)
			}
			tuple[i] = variant.OfInt(n)
		case 's':
			tuple[i] = variant.StringLiteral(payload)
		case 'f':
			f, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return variant.Variant{}, fmt.Errorf("argument %q: %w", a, err)
			}
			tuple[i] = variant.OfFloat(f)
		default:
			return variant.Variant{}, fmt.Errorf("argument %q: unknown type tag %q", a, string(tag))
		}
	}
	return variant.Variant{Tag: variant.TUPLE, Tuple: tuple}, nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
