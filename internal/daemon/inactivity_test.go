package daemon

import (
	"testing"
	"time"
)

func TestInactivityTimer_FiresShutdownSignalAfterTimeout(t *testing.T) {
	w := newTestWrapper(t)
	w.timeouts.DaemonInactivity = 10 * time.Millisecond

	w.resetInactivityTimer()
	defer w.stopInactivityTimer()

	select {
	case <-w.shutdownCh:
	case <-time.After(time.Second):
		t.Fatal("inactivity timer never fired")
	}
}

func TestInactivityTimer_ResetPostponesShutdown(t *testing.T) {
	w := newTestWrapper(t)
	w.timeouts.DaemonInactivity = 50 * time.Millisecond

	w.resetInactivityTimer()
	defer w.stopInactivityTimer()

	time.Sleep(30 * time.Millisecond)
	w.resetInactivityTimer() // postpone before the first timer would fire

	select {
	case <-w.shutdownCh:
		t.Fatal("shutdown fired before the reset timer's deadline")
	case <-time.After(30 * time.Millisecond):
	}
}
