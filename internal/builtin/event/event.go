//go:build linux

// Package event is the one concrete mainloop this repository ships: an
// epoll-backed implementation of every pkg/mainloop collaborator
// contract, built directly on golang.org/x/sys/unix. It also provides the
// "event" module object (module.go) exposing fd, timer, periodic, and
// prepare sources to the object graph.
package event

import (
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/mainloop"
)

type fdReg struct {
	fd       int
	interest mainloop.FDEventSet
	cb       mainloop.FDCallback
}

type timerReg struct {
	deadline time.Time
	cb       mainloop.TimerCallback
	canceled bool
}

type periodicReg struct {
	interval time.Duration
	next     time.Time
	cb       mainloop.PeriodicCallback
	canceled bool
}

// Loop is an epoll-backed mainloop implementing every collaborator
// interface pkg/mainloop declares.
type Loop struct {
	epfd int

	fds      map[int]*fdReg // token -> registration
	nextTok  int
	timers   map[int]*timerReg
	nextTime int
	periods  map[int]*periodicReg
	nextPer  int
	prepares map[int]mainloop.PrepareHook
	nextPrep int
	children map[int]mainloop.ChildExitCallback // pid -> callback

	sigchld chan os.Signal
	quit    bool
}

// New creates an epoll instance. The caller must call Close when done.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, deaierr.Wrap(deaierr.Other, err, "event: epoll_create1")
	}
	l := &Loop{
		epfd:     epfd,
		fds:      make(map[int]*fdReg),
		timers:   make(map[int]*timerReg),
		periods:  make(map[int]*periodicReg),
		prepares: make(map[int]mainloop.PrepareHook),
		children: make(map[int]mainloop.ChildExitCallback),
		sigchld:  make(chan os.Signal, 16),
	}
	signal.Notify(l.sigchld, syscall.SIGCHLD)
	return l, nil
}

// Close releases the epoll file descriptor.
func (l *Loop) Close() error {
	signal.Stop(l.sigchld)
	return unix.Close(l.epfd)
}

func toEpollEvents(e mainloop.FDEventSet) uint32 {
	var out uint32
	if e&mainloop.Readable != 0 {
		out |= unix.EPOLLIN
	}
	if e&mainloop.Writable != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func fromEpollEvents(e uint32) mainloop.FDEventSet {
	var out mainloop.FDEventSet
	if e&unix.EPOLLIN != 0 {
		out |= mainloop.Readable
	}
	if e&unix.EPOLLOUT != 0 {
		out |= mainloop.Writable
	}
	if e&unix.EPOLLERR != 0 {
		out |= mainloop.Error
	}
	if e&unix.EPOLLHUP != 0 {
		out |= mainloop.HangUp
	}
	return out
}

// AddFD implements mainloop.FDEventSource.
func (l *Loop) AddFD(fd int, interest mainloop.FDEventSet, cb mainloop.FDCallback) (int, error) {
	ev := &unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return 0, deaierr.Wrap(deaierr.Other, err, "event: epoll_ctl add fd %d", fd)
	}
	l.nextTok++
	token := l.nextTok
	l.fds[token] = &fdReg{fd: fd, interest: interest, cb: cb}
	return token, nil
}

// ModifyFD implements mainloop.FDEventSource.
func (l *Loop) ModifyFD(token int, interest mainloop.FDEventSet) error {
	reg, ok := l.fds[token]
	if !ok {
		return deaierr.New(deaierr.NotFound, "event: unknown fd token %d", token)
	}
	reg.interest = interest
	ev := &unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(reg.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, reg.fd, ev); err != nil {
		return deaierr.Wrap(deaierr.Other, err, "event: epoll_ctl mod fd %d", reg.fd)
	}
	return nil
}

// RemoveFD implements mainloop.FDEventSource.
func (l *Loop) RemoveFD(token int) error {
	reg, ok := l.fds[token]
	if !ok {
		return deaierr.New(deaierr.NotFound, "event: unknown fd token %d", token)
	}
	delete(l.fds, token)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, reg.fd, nil); err != nil {
		return deaierr.Wrap(deaierr.Other, err, "event: epoll_ctl del fd %d", reg.fd)
	}
	return nil
}

// AddTimer implements mainloop.TimerSource.
func (l *Loop) AddTimer(d time.Duration, cb mainloop.TimerCallback) int {
	l.nextTime++
	token := l.nextTime
	l.timers[token] = &timerReg{deadline: timeNow().Add(d), cb: cb}
	return token
}

// CancelTimer implements mainloop.TimerSource.
func (l *Loop) CancelTimer(token int) {
	if t, ok := l.timers[token]; ok {
		t.canceled = true
	}
}

// AddPeriodic implements mainloop.PeriodicSource.
func (l *Loop) AddPeriodic(interval time.Duration, cb mainloop.PeriodicCallback) int {
	l.nextPer++
	token := l.nextPer
	l.periods[token] = &periodicReg{interval: interval, next: timeNow().Add(interval), cb: cb}
	return token
}

// CancelPeriodic implements mainloop.PeriodicSource.
func (l *Loop) CancelPeriodic(token int) {
	if p, ok := l.periods[token]; ok {
		p.canceled = true
	}
}

// AddPrepare implements mainloop.PrepareSource.
func (l *Loop) AddPrepare(hook mainloop.PrepareHook) int {
	l.nextPrep++
	token := l.nextPrep
	l.prepares[token] = hook
	return token
}

// RemovePrepare implements mainloop.PrepareSource.
func (l *Loop) RemovePrepare(token int) { delete(l.prepares, token) }

// WatchChild implements mainloop.ChildReaper. The token doubles as the pid
// since at most one watcher per pid is meaningful.
func (l *Loop) WatchChild(pid int, cb mainloop.ChildExitCallback) int {
	l.children[pid] = cb
	return pid
}

// StopWatchingChild implements mainloop.ChildReaper.
func (l *Loop) StopWatchingChild(token int) { delete(l.children, token) }

// Quit implements mainloop.Loop: asks Run to return after the current pass.
func (l *Loop) Quit() { l.quit = true }

// Run implements mainloop.Loop, blocking until Quit is called or every
// source is exhausted: no fds, timers, periodics, or watched children
// remain, so there is nothing left to wait for.
func (l *Loop) Run() {
	l.quit = false
	for !l.quit {
		for _, hook := range l.prepares {
			hook()
		}
		l.reapChildren()
		timeout := l.nextDeadline()
		if len(l.fds) == 0 && timeout < 0 && len(l.children) == 0 {
			return
		}
		l.waitOnce(timeout)
		l.fireDueTimers()
	}
}

func (l *Loop) nextDeadline() int {
	var soonest time.Time
	have := false
	for _, t := range l.timers {
		if t.canceled {
			continue
		}
		if !have || t.deadline.Before(soonest) {
			soonest, have = t.deadline, true
		}
	}
	for _, p := range l.periods {
		if p.canceled {
			continue
		}
		if !have || p.next.Before(soonest) {
			soonest, have = p.next, true
		}
	}
	if len(l.children) > 0 {
		// poll periodically for SIGCHLD even if no timer is armed
		candidate := timeNow().Add(200 * time.Millisecond)
		if !have || candidate.Before(soonest) {
			soonest, have = candidate, true
		}
	}
	if !have {
		return -1
	}
	ms := int(time.Until(soonest).Milliseconds())
	if ms < 0 {
		ms = 0
	}
	return ms
}

func (l *Loop) waitOnce(timeoutMs int) {
	if len(l.fds) == 0 {
		if timeoutMs > 0 {
			time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
		}
		return
	}
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(l.epfd, events, timeoutMs)
	if err != nil {
		return // EINTR and transient failures alike; the caller loops
	}
	for i := 0; i < n; i++ {
		ev := events[i]
		for token, reg := range l.fds {
			if reg.fd == int(ev.Fd) {
				if !reg.cb(reg.fd, fromEpollEvents(ev.Events)) {
					l.RemoveFD(token)
				}
				break
			}
		}
	}
}

func (l *Loop) fireDueTimers() {
	now := timeNow()
	for token, t := range l.timers {
		if t.canceled {
			delete(l.timers, token)
			continue
		}
		if !now.Before(t.deadline) {
			delete(l.timers, token)
			t.cb()
		}
	}
	var fired []*periodicReg
	for token, p := range l.periods {
		if p.canceled {
			delete(l.periods, token)
			continue
		}
		if !now.Before(p.next) {
			p.next = p.next.Add(p.interval)
			fired = append(fired, p)
		}
	}
	sort.Slice(fired, func(i, j int) bool { return fired[i].next.Before(fired[j].next) })
	for _, p := range fired {
		p.cb()
	}
}

func (l *Loop) reapChildren() {
	select {
	case <-l.sigchld:
	default:
	}
	for pid := range l.children {
		var ws syscall.WaitStatus
		got, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
		if err != nil || got != pid {
			continue
		}
		cb := l.children[pid]
		delete(l.children, pid)
		code, sig := 0, 0
		if ws.Signaled() {
			sig = int(ws.Signal())
		} else {
			code = ws.ExitStatus()
		}
		cb(pid, code, sig)
	}
}

// timeNow is a package-level indirection so tests can fake the clock
// without this module depending on anything beyond the standard library
// for its own timer bookkeeping.
var timeNow = time.Now
