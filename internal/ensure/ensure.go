// Package ensure implements the idempotent client-side reconciliation
// algorithm from spec.md §4.5: make the on-disk service definition match
// the caller's current inputs, reload the orchestrator only when the
// definition actually changed, and optionally kickstart the daemon
// immediately.
package ensure

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mcpli/mcpli/internal/fsutil"
	"github.com/mcpli/mcpli/internal/identity"
	"github.com/mcpli/mcpli/internal/launchd"
)

// UpdateAction describes what Ensure did to the on-disk plist.
type UpdateAction string

const (
	ActionLoaded    UpdateAction = "loaded"
	ActionReloaded  UpdateAction = "reloaded"
	ActionUnchanged UpdateAction = "unchanged"
)

// Inputs are the caller-supplied parameters for one Ensure call.
type Inputs struct {
	Command   string
	Args      []string
	Env       map[string]string
	Cwd       string
	McplidPath string // absolute path to the mcplid wrapper binary

	// TimeoutMs is the daemon inactivity timeout in milliseconds. Zero
	// means "not explicitly set by this caller"; Ensure then preserves
	// the value from a prior plist if one exists, per spec.md §4.5 step 5.
	TimeoutMs int

	// PreferImmediateStart gates the kickstart policy in step 8.
	PreferImmediateStart bool
}

// Result is what Ensure reports back to the caller, per spec.md §4.5
// step 9.
type Result struct {
	ID         string
	Label      string
	SocketPath string
	Action     UpdateAction
	Started    bool
	PID        int
}

// socketWaitTimeout and socketWaitInterval implement spec.md §4.5 step 6:
// a best-effort wait for brief rebinds after a reload.
const (
	socketWaitTimeout  = 500 * time.Millisecond
	socketWaitInterval = 20 * time.Millisecond
)

// Engine runs the Ensure algorithm against a real launchd Driver.
type Engine struct {
	Driver *launchd.Driver
}

// New returns an Engine wired to the real launchctl binary.
func New() *Engine {
	return &Engine{Driver: launchd.NewDriver()}
}

// Run executes the nine-step algorithm from spec.md §4.5.
func (e *Engine) Run(ctx context.Context, in Inputs) (Result, error) {
	// Step 1: compute id/label/paths.
	ident, err := identity.New(in.Command, in.Args, in.Env)
	if err != nil {
		return Result{}, err
	}
	scope, err := identity.NewScope(in.Cwd, ident.ID)
	if err != nil {
		return Result{}, err
	}

	// Step 2: secure-create directories.
	if err := fsutil.EnsureSecureDir(filepath.Join(scope.Cwd, ".mcpli")); err != nil {
		return Result{}, err
	}
	plistDir := filepath.Join(scope.Cwd, ".mcpli", "launchd")
	if err := fsutil.EnsureSecureDir(plistDir); err != nil {
		return Result{}, err
	}
	socketDir := filepath.Dir(scope.SocketPath)
	if err := fsutil.SecureSocketParentDir(socketDir); err != nil {
		return Result{}, err
	}

	// Step 5 (read before building, so step 3/4 can use the preserved value).
	priorBytes, hadPrior, err := fsutil.ReadBytesIfExists(scope.PlistPath)
	if err != nil {
		return Result{}, err
	}
	timeoutMs := in.TimeoutMs
	if timeoutMs == 0 && hadPrior {
		if prior, ok := extractTimeoutMs(priorBytes); ok {
			timeoutMs = prior
		}
	}

	wasLoaded, err := e.Driver.IsLoaded(ctx, scope.Label)
	if err != nil {
		return Result{}, err
	}

	// Step 3: build plist content for current inputs.
	def := launchd.ServiceDefinition{
		Label:            scope.Label,
		ProgramArguments: []string{in.McplidPath},
		WorkingDirectory: scope.Cwd,
		SocketPath:       scope.SocketPath,
		Env: map[string]string{
			"ORCHESTRATOR":   "launchd",
			"SOCKET_ENV_KEY": launchd.SocketName,
			"SOCKET_PATH":    scope.SocketPath,
			"CWD":            scope.Cwd,
			"TIMEOUT":        strconv.Itoa(timeoutMs),
			"COMMAND":        in.Command,
			"ARGS":           launchd.ArgsJSON(in.Args),
			"SERVER_ENV":     launchd.EnvJSON(in.Env),
			"ID_EXPECTED":    ident.ID,
		},
	}
	newBytes := launchd.Render(def)

	// Step 4: compare with on-disk bytes.
	var action UpdateAction
	contentChanged := !hadPrior || string(priorBytes) != string(newBytes)

	if contentChanged {
		if err := fsutil.AtomicWrite(scope.PlistPath, newBytes, fsutil.DefaultFileMode); err != nil {
			return Result{}, err
		}
		if wasLoaded {
			e.Driver.Bootout(ctx, scope.Label)
			if err := e.Driver.Bootstrap(ctx, scope.Label, scope.PlistPath); err != nil {
				return Result{}, err
			}
			action = ActionReloaded
		} else {
			if err := e.Driver.Bootstrap(ctx, scope.Label, scope.PlistPath); err != nil {
				return Result{}, err
			}
			action = ActionLoaded
		}
	} else {
		if !wasLoaded {
			if err := e.Driver.Bootstrap(ctx, scope.Label, scope.PlistPath); err != nil {
				return Result{}, err
			}
			action = ActionLoaded
		} else {
			action = ActionUnchanged
		}
	}

	// Step 6: best-effort wait for the socket to exist again.
	if action != ActionUnchanged {
		fsutil.WaitForPath(scope.SocketPath, socketWaitTimeout, socketWaitInterval)
	}

	// Step 7: read current state.
	state, err := e.Driver.GetRunningState(ctx, scope.Label)
	if err != nil {
		return Result{}, err
	}

	// Step 8: kickstart policy.
	started := false
	if in.PreferImmediateStart {
		switch {
		case action == ActionLoaded || action == ActionReloaded:
			if err := e.Driver.Kickstart(ctx, scope.Label, false); err == nil {
				started = true
			}
		case !state.Running:
			if err := e.Driver.Kickstart(ctx, scope.Label, false); err == nil {
				started = true
			}
		}
	}

	// Step 9.
	return Result{
		ID:         ident.ID,
		Label:      scope.Label,
		SocketPath: scope.SocketPath,
		Action:     action,
		Started:    started,
		PID:        state.PID,
	}, nil
}

// extractTimeoutMs pulls the TIMEOUT env value out of a previously
// rendered plist's XML, used by step 5's timeout-preservation rule. It
// scans for the EnvironmentVariables dict's "TIMEOUT" key/string pair
// rather than parsing the full XML tree, since plist.Render's output
// shape is fully under this package's control.
func extractTimeoutMs(plistBytes []byte) (int, bool) {
	const marker = "<key>TIMEOUT</key>"
	s := string(plistBytes)
	idx := strings.Index(s, marker)
	if idx < 0 {
		return 0, false
	}
	rest := s[idx+len(marker):]
	open := strings.Index(rest, "<string>")
	if open < 0 {
		return 0, false
	}
	rest = rest[open+len("<string>"):]
	closeIdx := strings.Index(rest, "</string>")
	if closeIdx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:closeIdx])
	if err != nil {
		return 0, false
	}
	return n, true
}
