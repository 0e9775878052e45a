//go:build linux

package event

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresAndRunReturns(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	fired := false
	l.AddTimer(10*time.Millisecond, func() {
		fired = true
		l.Quit()
	})

	l.Run()
	require.True(t, fired)
}

func TestCanceledTimerNeverFires(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	fired := false
	token := l.AddTimer(50*time.Millisecond, func() { fired = true })
	l.CancelTimer(token)

	guard := l.AddTimer(5*time.Millisecond, func() { l.Quit() })
	_ = guard

	l.Run()
	require.False(t, fired)
}

func TestPeriodicFiresMultipleTimes(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	count := 0
	var token int
	token = l.AddPeriodic(5*time.Millisecond, func() {
		count++
		if count >= 3 {
			l.CancelPeriodic(token)
			l.Quit()
		}
	})

	l.Run()
	require.GreaterOrEqual(t, count, 3)
}

func TestPrepareHookRunsEveryPass(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	passes := 0
	l.AddPrepare(func() { passes++ })
	l.AddTimer(5*time.Millisecond, func() { l.Quit() })

	l.Run()
	require.GreaterOrEqual(t, passes, 1)
}

func TestRunReturnsImmediatelyWithNothingArmed(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return with no sources registered")
	}
}

func TestWatchChildReapsExitedProcess(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	defer l.Close()

	cmd := exec.Command("/bin/true")
	require.NoError(t, cmd.Start())

	var gotCode int
	var reaped bool
	l.WatchChild(cmd.Process.Pid, func(pid, code, sig int) {
		reaped = true
		gotCode = code
		l.Quit()
	})

	l.Run()
	require.True(t, reaped)
	require.Equal(t, 0, gotCode)
}
