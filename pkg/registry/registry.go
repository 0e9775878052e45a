// Package registry assembles the root object: register_module, the plugin
// loader, process-control methods, and the reflective __get_argv /
// __get_proctitle / __get_roots accessors.
package registry

import (
	"os"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/dispatch"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/roots"
	"github.com/deai-sub000/deai/pkg/variant"
)

// Registry is the running process's root object plus the bookkeeping
// main's entry-point lifecycle needs: the exit code latched by exit(n),
// the quit flag set by quit(), and the root set every other object is
// (directly or transitively) rooted under.
type Registry struct {
	Root          *object.Object
	Roots         *roots.Roots
	Argv          []string
	ProcTitle     string
	VerifyPlugins bool

	exitCode    int
	exitCalled  bool
	quitCalled  bool
	rootsObj    *object.Object
	pluginStore map[string]*pluginHandle
}

// New builds the root object with its process-control methods and
// reflective accessors already installed. argv is the portion of os.Args
// a loaded plugin or script should see (cmd/deai passes everything after
// the literal "--" splitting boundary, and nothing if there was none).
func New(argv []string, procTitle string) *Registry {
	r := &Registry{
		Root:        object.New(),
		Roots:       roots.New(),
		Argv:        argv,
		ProcTitle:   procTitle,
		pluginStore: make(map[string]*pluginHandle),
	}
	r.Root.SetType("deai:root")
	r.installRootsObject()
	r.installAccessors()
	r.installProcessControl()
	return r
}

// installRootsObject builds the object __get_roots hands out: list()
// enumerates every held root as a tuple of strong object references, and
// the read-only "names" property reflects the named subset for display.
func (r *Registry) installRootsObject() {
	ro := object.New()
	ro.SetType("deai:roots")
	must(dispatch.AddRawMethod(ro, "list", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		held := r.Roots.Held()
		tup := make([]variant.Variant, len(held))
		for i, o := range held {
			tup[i] = variant.OfObject(o.Ref())
		}
		return variant.Variant{Tag: variant.TUPLE, Tuple: tup}, nil
	}))
	must(dispatch.AddFieldGetter(ro, "names", variant.TUPLE, func(self *object.Object) variant.Variant {
		names := r.Roots.List()
		tup := make([]variant.Variant, len(names))
		for i, n := range names {
			tup[i] = variant.NewString(n)
		}
		return variant.Variant{Tag: variant.TUPLE, Tuple: tup}
	}))
	r.rootsObj = ro
}

// RegisterModule installs obj as a member named name on the root,
// forbidding overwrite.
func (r *Registry) RegisterModule(name string, obj *object.Object) error {
	_, err := r.Root.AddMemberMove(name, variant.OBJECT, variant.OfObject(obj.Ref()))
	if err != nil {
		obj.Unref()
	}
	return err
}

func (r *Registry) installAccessors() {
	must(dispatch.AddFieldGetter(r.Root, "argv", variant.TUPLE, func(self *object.Object) variant.Variant {
		tup := make([]variant.Variant, len(r.Argv))
		for i, a := range r.Argv {
			tup[i] = variant.NewString(a)
		}
		return variant.Variant{Tag: variant.TUPLE, Tuple: tup}
	}))
	must(dispatch.AddFieldGetter(r.Root, "proctitle", variant.STRING, func(self *object.Object) variant.Variant {
		return variant.NewString(r.ProcTitle)
	}))
	must(dispatch.AddFieldGetter(r.Root, "roots", variant.OBJECT, func(self *object.Object) variant.Variant {
		return variant.OfObject(r.rootsObj.Ref())
	}))
}

func (r *Registry) installProcessControl() {
	must(dispatch.AddRawMethod(r.Root, "register_module", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		name, obj, err := nameAndObjectArgs(args)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.Variant{}, r.RegisterModule(name, obj)
	}))
	must(dispatch.AddRawMethod(r.Root, "load_plugin", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		path, err := soloStringArg(args)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.Nil, r.LoadPlugin(path)
	}))
	must(dispatch.AddRawMethod(r.Root, "load_plugin_from_dir", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		path, err := soloStringArg(args)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.Nil, r.LoadPluginFromDir(path)
	}))
	must(dispatch.AddRawMethod(r.Root, "chdir", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		path, err := soloStringArg(args)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.Nil, r.Chdir(path)
	}))
	must(dispatch.AddRawMethod(r.Root, "exit", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		code, _, err := soloIntArg(args)
		if err != nil {
			return variant.Variant{}, err
		}
		r.Exit(int(code))
		return variant.Nil, nil
	}))
	must(dispatch.AddRawMethod(r.Root, "quit", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		r.Quit()
		return variant.Nil, nil
	}))
	must(dispatch.AddRawMethod(r.Root, "exec", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		argv, err := stringTupleArg(args)
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.Nil, r.Exec(argv)
	}))
	must(dispatch.AddRawMethod(r.Root, "terminate", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		r.Terminate()
		return variant.Nil, nil
	}))
}

// Chdir changes the process's working directory.
func (r *Registry) Chdir(path string) error {
	if err := os.Chdir(path); err != nil {
		return deaierr.Wrap(deaierr.Other, err, "chdir %q", path)
	}
	return nil
}

// Exit latches the exit code main checks after dispatching the one CLI
// call.
func (r *Registry) Exit(code int) {
	r.exitCode = code
	r.exitCalled = true
}

// ExitRequested reports whether exit(n) was called, and the latched code.
func (r *Registry) ExitRequested() (int, bool) { return r.exitCode, r.exitCalled }

// Quit asks the running mainloop to stop after the current dispatch pass.
func (r *Registry) Quit() { r.quitCalled = true }

// QuitRequested reports whether quit() was called.
func (r *Registry) QuitRequested() bool { return r.quitCalled }

// Exec replaces the current process image, mirroring POSIX execve. argv[0]
// is the program to run.
func (r *Registry) Exec(argv []string) error {
	if len(argv) == 0 {
		return deaierr.New(deaierr.InvalidArity, "exec requires at least argv[0]")
	}
	path, err := lookPath(argv[0])
	if err != nil {
		return deaierr.Wrap(deaierr.NotFound, err, "exec: resolving %q", argv[0])
	}
	if err := syscallExec(path, argv, os.Environ()); err != nil {
		return deaierr.Wrap(deaierr.Other, err, "exec %q", argv[0])
	}
	return nil
}

// Terminate tears down the root set immediately: every object reachable
// only through a root is finalized via roots.Clear, then the roots
// accessor object and the root object itself are unreffed.
func (r *Registry) Terminate() {
	r.Roots.Clear()
	r.rootsObj.Unref()
	r.Root.Unref()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func nameAndObjectArgs(args variant.Variant) (string, *object.Object, error) {
	if args.Tag != variant.TUPLE || len(args.Tuple) != 2 {
		return "", nil, deaierr.New(deaierr.InvalidArity, "expected (name, object)")
	}
	name, ok := variant.AsString(args.Tuple[0])
	if !ok {
		return "", nil, deaierr.New(deaierr.InvalidType, "first argument must be a string")
	}
	obj, ok := args.Tuple[1].Obj.(*object.Object)
	if !ok {
		return "", nil, deaierr.New(deaierr.InvalidType, "second argument must be an object")
	}
	return name, obj, nil
}

func soloStringArg(args variant.Variant) (string, error) {
	v, err := soloArg(args)
	if err != nil {
		return "", err
	}
	s, ok := variant.AsString(v)
	if !ok {
		return "", deaierr.New(deaierr.InvalidType, "expected a string argument")
	}
	return s, nil
}

func soloIntArg(args variant.Variant) (int64, bool, error) {
	v, err := soloArg(args)
	if err != nil {
		return 0, false, err
	}
	if v.Tag != variant.INT && v.Tag != variant.NINT {
		return 0, false, deaierr.New(deaierr.InvalidType, "expected an integer argument")
	}
	return v.I, true, nil
}

func soloArg(args variant.Variant) (variant.Variant, error) {
	switch args.Tag {
	case variant.TUPLE:
		if len(args.Tuple) != 1 {
			return variant.Variant{}, deaierr.New(deaierr.InvalidArity, "expected exactly one argument")
		}
		return args.Tuple[0], nil
	case variant.NIL:
		return variant.Variant{}, deaierr.New(deaierr.InvalidArity, "expected exactly one argument")
	default:
		return args, nil
	}
}

func stringTupleArg(args variant.Variant) ([]string, error) {
	var elems []variant.Variant
	if args.Tag == variant.TUPLE {
		elems = args.Tuple
	} else {
		elems = []variant.Variant{args}
	}
	out := make([]string, len(elems))
	for i, v := range elems {
		s, ok := variant.AsString(v)
		if !ok {
			return nil, deaierr.New(deaierr.InvalidType, "argument %d is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}
