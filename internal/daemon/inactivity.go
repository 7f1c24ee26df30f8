package daemon

import "time"

// resetInactivityTimer restarts the daemon's idle countdown. Called once
// at startup (spec.md §4.8 step 7) and before dispatching every request
// ("every request resets the inactivity timer before dispatch").
func (w *Wrapper) resetInactivityTimer() {
	w.inactivityMu.Lock()
	defer w.inactivityMu.Unlock()

	if w.inactivityTimer != nil {
		w.inactivityTimer.Stop()
	}
	w.inactivityTimer = time.AfterFunc(w.timeouts.DaemonInactivity, w.onInactivityTimeout)
}

func (w *Wrapper) stopInactivityTimer() {
	w.inactivityMu.Lock()
	defer w.inactivityMu.Unlock()
	if w.inactivityTimer != nil {
		w.inactivityTimer.Stop()
	}
}

func (w *Wrapper) onInactivityTimeout() {
	select {
	case w.shutdownCh <- struct{}{}:
	default:
	}
}
