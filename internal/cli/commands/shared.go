package commands

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mcpli/mcpli/internal/cli/output"
	"github.com/mcpli/mcpli/internal/config"
	"github.com/mcpli/mcpli/internal/ensure"
	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/mcplierr"
	"github.com/mcpli/mcpli/internal/mcplilog"
)

// cliEnv bundles together the pieces every command needs: the resolved
// timeout configuration, the ensure engine, and the output formatter.
type cliEnv struct {
	cwd       string
	timeouts  config.Timeouts
	engine    *ensure.Engine
	formatter *output.Formatter
	mcplidBin string
	log       *mcplilog.Logger
}

func newEnv() (*cliEnv, error) {
	cwd, err := identity.CurrentDir()
	if err != nil {
		return nil, mcplierr.Wrap(mcplierr.KindUserValidation, err, "failed to resolve working directory")
	}

	log, err := mcplilog.New("cli", "", flagVerbose)
	if err != nil {
		return nil, mcplierr.Wrap(mcplierr.KindFatal, err, "failed to start logger")
	}

	config.LoadEnv(log, cwd)

	mcplidBin, err := resolveMcplidPath()
	if err != nil {
		return nil, err
	}

	settings := loadSettings(log)

	return &cliEnv{
		cwd: cwd,
		timeouts: config.Resolve(config.Overrides{
			DaemonInactivitySeconds: flagTimeout,
			ToolTimeoutMs:           flagToolTimeout * 1000,
		}, settings.OverridesFrom()),
		engine:    ensure.New(),
		formatter: output.New(flagRaw),
		mcplidBin: mcplidBin,
		log:       log,
	}, nil
}

// loadSettings reads the persisted `~/.config/mcpli/config.yaml` defaults,
// per SPEC_FULL §2; a missing or unreadable file is non-fatal since
// Resolve still falls through to env vars and built-in defaults.
func loadSettings(log *mcplilog.Logger) config.Settings {
	path, err := config.DefaultSettingsPath()
	if err != nil {
		log.Debugf("could not resolve settings file path: %v", err)
		return config.Settings{}
	}
	settings, err := config.NewStore(path).Load()
	if err != nil {
		log.Warnf("failed to load settings from %s: %v", path, err)
		return config.Settings{}
	}
	return settings
}

// ensureAndDial reconciles the daemon for spec and returns its dial
// coordinates, writing the diagnostic config file before ensure per
// spec.md §4.9 ("written before ensure; the wrapper reads it at startup").
func (e *cliEnv) ensureAndDial(ctx context.Context, spec serverSpec) (ensure.Result, error) {
	return e.ensure(ctx, spec, false)
}

func (e *cliEnv) ensure(ctx context.Context, spec serverSpec, preferImmediateStart bool) (ensure.Result, error) {
	ident, err := identity.New(spec.Command, spec.Args, spec.Env)
	if err != nil {
		return ensure.Result{}, mcplierr.Wrap(mcplierr.KindUserValidation, err, "invalid server command")
	}
	scope, err := identity.NewScope(e.cwd, ident.ID)
	if err != nil {
		return ensure.Result{}, mcplierr.Wrap(mcplierr.KindUserValidation, err, "invalid scope")
	}

	diag := config.Diagnostic{Debug: flagDebug, Verbose: flagVerbose}
	if err := config.WriteDiagnostic(scope.DiagnosticPath, diag); err != nil {
		return ensure.Result{}, mcplierr.Wrap(mcplierr.KindFatal, err, "failed to write diagnostic config")
	}

	result, err := e.engine.Run(ctx, ensure.Inputs{
		Command:              spec.Command,
		Args:                 spec.Args,
		Env:                  spec.Env,
		Cwd:                  e.cwd,
		McplidPath:           e.mcplidBin,
		TimeoutMs:            flagTimeout * 1000,
		PreferImmediateStart: preferImmediateStart,
	})
	if err != nil {
		return ensure.Result{}, mcplierr.Classify(err)
	}
	return result, nil
}

// resolveMcplidPath locates the mcplid wrapper binary: first alongside
// the running mcpli executable (the installed-bundle case), then via
// PATH, following the teacher's multi-location search pattern in
// cmd/scooter/main.go's getBundledAppDataDir.
func resolveMcplidPath() (string, error) {
	if exePath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exePath), "mcplid")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath("mcplid"); err == nil {
		return found, nil
	}
	return "", mcplierr.New(mcplierr.KindFatal, "could not locate the mcplid wrapper binary").
		WithHint("install mcplid alongside mcpli or add it to PATH")
}
