package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mcpli/mcpli/internal/config"
	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/ipc"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/mcplilog"
	"github.com/mcpli/mcpli/internal/mcpsession"
)

// Wrapper is the long-lived per-identity daemon process from spec.md
// §4.8: one MCP stdio session fronted by one IPC server, shut down by
// inactivity or a termination signal.
type Wrapper struct {
	startup  Startup
	session  *mcpsession.Session
	log      *mcplilog.Logger
	timeouts config.Timeouts
	server   *ipc.Server

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc

	allowShutdown atomic.Bool
	shutdownOnce  sync.Once
	shutdownCh    chan struct{}

	inactivityMu    sync.Mutex
	inactivityTimer *time.Timer
}

// New verifies the expected daemon identity, starts the MCP session, and
// returns a Wrapper ready to Run. Steps 1-3 of spec.md §4.8's startup
// sequence; Run performs steps 4-7.
func New(ctx context.Context, startup Startup, timeouts config.Timeouts, log *mcplilog.Logger) (*Wrapper, error) {
	// Step 2: recompute id and compare with expected; mismatch is fatal,
	// guarding against stale service definitions left over from a prior
	// identity (spec.md §4.8 step 2).
	recomputed, err := identity.New(startup.Command, startup.Args, startup.ServerEnv)
	if err != nil {
		return nil, mcplierr.Wrap(mcplierr.KindFatal, err, "daemon: failed to recompute identity")
	}
	if recomputed.ID != startup.IDExpected {
		return nil, mcplierr.New(mcplierr.KindIdentityMismatch,
			fmt.Sprintf("recomputed id %q does not match expected id %q", recomputed.ID, startup.IDExpected))
	}

	// Step 3: start the MCP stdio session with the merged environment.
	command := resolveCommand(startup.Command)
	env := mergedChildEnv(startup.ServerEnv)
	session, err := mcpsession.Connect(ctx, command, startup.Args, env)
	if err != nil {
		return nil, mcplierr.Wrap(mcplierr.KindFatal, err, "daemon: failed to start MCP session")
	}

	return &Wrapper{
		startup:    startup,
		session:    session,
		log:        log,
		timeouts:   timeouts,
		inFlight:   make(map[string]context.CancelFunc),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Run performs steps 4-7 of spec.md §4.8's startup sequence, serves
// requests until shutdown is triggered, and then performs the shutdown
// sequence from spec.md §4.8's closing paragraph.
func (w *Wrapper) Run(ctx context.Context) error {
	server, err := w.createServer()
	if err != nil {
		_ = w.session.Close()
		return err
	}
	w.server = server

	// Step 5: termination signals set allowShutdown and begin graceful
	// shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- w.server.Serve(serveCtx)
	}()

	// Step 7: start the inactivity timer.
	w.resetInactivityTimer()
	defer w.stopInactivityTimer()

	serveAlreadyDone := false
	select {
	case sig := <-sigCh:
		w.log.Infof("received signal %s, shutting down", sig)
		w.allowShutdown.Store(true)
	case <-w.shutdownCh:
		w.log.Infof("inactivity timeout reached, shutting down")
		w.allowShutdown.Store(true)
	case err := <-serveErrCh:
		// Step 6: an uncaught accept-loop error is logged and triggers a
		// controlled shutdown rather than a silent exit.
		if err != nil {
			w.log.Errorf("ipc server stopped unexpectedly: %v", err)
		}
		w.allowShutdown.Store(true)
		serveAlreadyDone = true
	}

	return w.shutdown(cancelServe, serveErrCh, serveAlreadyDone)
}

// shutdown implements spec.md §4.8's shutdown sequence: stop accepting,
// cancel in-flight tool calls, close the IPC server, close the MCP
// session, exit 0 (the exit itself is the caller's responsibility; this
// returns nil on a clean shutdown).
func (w *Wrapper) shutdown(cancelServe context.CancelFunc, serveErrCh chan error, serveAlreadyDone bool) error {
	var shutdownErr error
	w.shutdownOnce.Do(func() {
		cancelServe()

		w.cancelAllInFlight()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(ctx)

		if !serveAlreadyDone {
			select {
			case <-serveErrCh:
			case <-time.After(5 * time.Second):
			}
		}

		if err := w.session.Close(); err != nil {
			w.log.Warnf("error closing mcp session: %v", err)
		}
	})
	return shutdownErr
}

// createServer builds the IPC server per spec.md §4.8 step 4: an
// inherited fd in orchestrator mode with no fallback, or a path bind
// otherwise.
func (w *Wrapper) createServer() (*ipc.Server, error) {
	limits := ipc.LimitsFromEnv()
	switch w.startup.Orchestrator {
	case OrchestratorLaunchd:
		listener, err := ipc.AdoptInheritedListener()
		if err != nil {
			return nil, mcplierr.Wrap(mcplierr.KindOrchestratorUnavailable, err, "daemon: failed to adopt inherited socket")
		}
		return ipc.NewFromListener(listener, limits, w, w.log), nil
	case OrchestratorStandalone:
		server, err := ipc.NewFromPath(w.startup.SocketPath, limits, w, w.log)
		if err != nil {
			return nil, mcplierr.Wrap(mcplierr.KindFatal, err, "daemon: failed to bind socket")
		}
		return server, nil
	default:
		return nil, mcplierr.New(mcplierr.KindFatal, "daemon: unknown orchestrator mode "+w.startup.Orchestrator)
	}
}
