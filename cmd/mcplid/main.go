// Command mcplid is the daemon wrapper binary launched by the OS service
// orchestrator (or directly, in standalone mode): it reads its
// configuration from reserved environment variables and runs until
// inactivity or a termination signal shuts it down (spec.md §4.8).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mcpli/mcpli/internal/config"
	"github.com/mcpli/mcpli/internal/daemon"
	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/mcplilog"
)

func main() {
	os.Exit(run())
}

func run() int {
	startup, err := daemon.ReadStartup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcplid: %v\n", err)
		return 1
	}

	diag := readDiagnostic(startup)

	log, err := mcplilog.New(startup.IDExpected, "", diag.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcplid: failed to start logger: %v\n", err)
		return 1
	}
	defer log.Close()

	timeouts := config.Resolve(config.Overrides{
		DaemonInactivitySeconds: startup.TimeoutMs / 1000,
	})

	ctx := context.Background()
	wrapper, err := daemon.New(ctx, startup, timeouts, log)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		return mcplierr.ExitCode(err)
	}

	if err := wrapper.Run(ctx); err != nil {
		log.Errorf("run failed: %v", err)
		return mcplierr.ExitCode(err)
	}
	return 0
}

// readDiagnostic loads the per-id diagnostic config written by the CLI
// before ensure (spec.md §4.9); a missing or unreadable file is
// non-fatal since the wrapper falls back to the zero-value (all flags
// off).
func readDiagnostic(startup daemon.Startup) config.Diagnostic {
	scope, err := identity.NewScope(startup.Cwd, startup.IDExpected)
	if err != nil {
		return config.Diagnostic{}
	}
	diag, err := config.ReadDiagnostic(scope.DiagnosticPath)
	if err != nil {
		return config.Diagnostic{}
	}
	return diag
}
