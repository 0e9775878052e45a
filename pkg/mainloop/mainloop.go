// Package mainloop declares the collaborator contracts the core consumes.
// The core object/signal/roots machinery never blocks and never polls a
// clock or a file descriptor itself; anything that needs to react to I/O,
// timers, or process lifecycle registers one of these interfaces with a
// concrete event loop. internal/builtin/event supplies the one concrete
// implementation this repository ships (an epoll-backed loop via
// golang.org/x/sys/unix); pkg/mainloop itself stays free of that or any
// other platform dependency so alternate hosts (kqueue, IOCP, a test
// loop) can satisfy the same contracts.
package mainloop

import "time"

// FDEventSet is the bitmask of readiness conditions a caller can listen
// for on a file descriptor, mirroring the small POSIX poll() event set.
type FDEventSet uint32

const (
	Readable FDEventSet = 1 << iota
	Writable
	Error
	HangUp
)

// FDCallback is invoked with the readiness events that fired for a
// registered descriptor. Returning false deregisters the descriptor.
type FDCallback func(fd int, events FDEventSet) bool

// FDEventSource watches file descriptors for readiness.
type FDEventSource interface {
	// AddFD registers fd for the given interest set, invoking cb whenever
	// any of them become ready. Returns a token usable with RemoveFD.
	AddFD(fd int, interest FDEventSet, cb FDCallback) (token int, err error)
	// ModifyFD changes the interest set for an already-registered token.
	ModifyFD(token int, interest FDEventSet) error
	// RemoveFD deregisters token; safe to call from within the callback it
	// was registered with.
	RemoveFD(token int) error
}

// TimerCallback fires once when a one-shot timer expires.
type TimerCallback func()

// TimerSource schedules one-shot deadlines.
type TimerSource interface {
	// AddTimer arms cb to fire once after d elapses, returning a token
	// usable with CancelTimer.
	AddTimer(d time.Duration, cb TimerCallback) (token int)
	// CancelTimer disarms a pending timer; a no-op if it already fired.
	CancelTimer(token int)
}

// PeriodicCallback fires on every tick of a repeating timer.
type PeriodicCallback func()

// PeriodicSource schedules repeating ticks.
type PeriodicSource interface {
	// AddPeriodic arms cb to fire every interval, returning a token usable
	// with CancelPeriodic.
	AddPeriodic(interval time.Duration, cb PeriodicCallback) (token int)
	CancelPeriodic(token int)
}

// PrepareHook runs once per loop iteration immediately before the loop
// blocks waiting for the next event, giving a collaborator a chance to
// flush buffered work or adjust its next timeout.
type PrepareHook func()

// PrepareSource registers hooks run before every blocking wait.
type PrepareSource interface {
	AddPrepare(hook PrepareHook) (token int)
	RemovePrepare(token int)
}

// ChildExitCallback reports a reaped child's exit: exitCode is the status
// a normally-exited child returned, signal the number that terminated it;
// whichever half doesn't apply is zero.
type ChildExitCallback func(pid, exitCode, signal int)

// ChildReaper watches for child process termination (SIGCHLD on POSIX
// hosts) without requiring every caller to install its own signal handler.
type ChildReaper interface {
	// WatchChild arms cb to fire once when pid exits. Returns a token
	// usable with StopWatchingChild, needed if the caller gives up on a
	// child before it exits (e.g. the watching object is itself destroyed).
	WatchChild(pid int, cb ChildExitCallback) (token int)
	StopWatchingChild(token int)
}

// Loop composes every source a concrete mainloop implementation may offer.
// A given implementation is free to implement only a subset; callers type-
// assert for the sources they need rather than depending on a single
// monolithic required API.
type Loop interface {
	// Run blocks, dispatching callbacks, until Quit is called.
	Run()
	// Quit asks a running Run to return once the current dispatch pass
	// completes.
	Quit()
}
