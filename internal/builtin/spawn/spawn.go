// Package spawn is the built-in "spawn" module: run(argv) starts a child
// process and returns an object that later emits an "exit" signal
// carrying (code, signal), delivered through the mainloop.ChildReaper
// contract rather than a blocking Wait call.
package spawn

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/dispatch"
	"github.com/deai-sub000/deai/pkg/mainloop"
	"github.com/deai-sub000/deai/pkg/object"
	"github.com/deai-sub000/deai/pkg/variant"
)

// New builds the spawn module object. reaper may be nil, in which case
// children are reaped on a dedicated goroutine instead of through a
// mainloop's SIGCHLD integration (a degraded but still correct mode for
// hosts without an event module installed).
func New(reaper mainloop.ChildReaper) *object.Object {
	mod := object.New()
	mod.SetType("deai:spawn")

	must(dispatch.AddRawMethod(mod, "run", func(self *object.Object, args variant.Variant) (variant.Variant, error) {
		argv, err := stringTuple(args)
		if err != nil {
			return variant.Variant{}, err
		}
		if len(argv) == 0 {
			return variant.Variant{}, deaierr.New(deaierr.InvalidArity, "spawn.run requires a non-empty argv")
		}

		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := cmd.Start(); err != nil {
			return variant.Variant{}, deaierr.Wrap(deaierr.Other, err, "spawn.run %v", argv)
		}

		proc := object.New()
		proc.SetType("deai:process")
		if err := proc.AddMemberClone("pid", variant.INT, variant.OfInt(int64(cmd.Process.Pid))); err != nil {
			return variant.Variant{}, err
		}

		// proc's single strong ref belongs to whoever holds the returned
		// variant below; reaping only emits the signal, it never drops a
		// ref of its own (there isn't one to drop).
		reapAndEmit := func() {
			state, _ := cmd.Process.Wait()
			code, sig := exitInfo(state)
			proc.Emit("exit", variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{
				variant.OfInt(code), variant.OfInt(sig),
			}})
		}

		if reaper != nil {
			reaper.WatchChild(cmd.Process.Pid, func(pid, code, sig int) {
				proc.Emit("exit", variant.Variant{Tag: variant.TUPLE, Tuple: []variant.Variant{
					variant.OfInt(int64(code)), variant.OfInt(int64(sig)),
				}})
			})
		} else {
			go reapAndEmit()
		}

		return variant.OfObject(proc), nil
	}))

	return mod
}

// exitInfo decomposes a process exit into (exit code, terminating signal),
// 0 for whichever half doesn't apply. syscall.WaitStatus is the only way
// to pull a signal number out of os.ProcessState.
func exitInfo(state *os.ProcessState) (code int64, signal int64) {
	if state == nil {
		return -1, 0
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return int64(state.ExitCode()), 0
	}
	if ws.Signaled() {
		return 0, int64(ws.Signal())
	}
	return int64(ws.ExitStatus()), 0
}

func stringTuple(args variant.Variant) ([]string, error) {
	var elems []variant.Variant
	switch args.Tag {
	case variant.TUPLE:
		elems = args.Tuple
	case variant.NIL:
		elems = nil
	default:
		elems = []variant.Variant{args}
	}
	out := make([]string, len(elems))
	for i, v := range elems {
		s, ok := variant.AsString(v)
		if !ok {
			return nil, deaierr.New(deaierr.InvalidType, "spawn.run: argv[%d] is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
