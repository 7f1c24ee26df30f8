package launchd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LaunchctlPath is the absolute path to launchctl; macOS ships it at a
// fixed location, and spec.md §4.4 requires never relying on PATH lookup.
const LaunchctlPath = "/bin/launchctl"

// Driver invokes launchctl to load, reload, and kickstart services, per
// spec.md §4.4.
type Driver struct {
	// Bin overrides LaunchctlPath; used by tests to point at a fake
	// executable instead of the real macOS binary.
	Bin string
	// UID is the numeric user id used to build the gui/<uid> domain
	// target; defaults to os.Getuid().
	UID int
}

// NewDriver returns a Driver pointed at the real launchctl binary for the
// current user.
func NewDriver() *Driver {
	return &Driver{Bin: LaunchctlPath, UID: os.Getuid()}
}

func (d *Driver) bin() string {
	if d.Bin != "" {
		return d.Bin
	}
	return LaunchctlPath
}

// Domain returns the gui/<uid> domain target launchctl commands run
// against, per spec.md §4.4.
func (d *Driver) Domain() string {
	return fmt.Sprintf("gui/%d", d.UID)
}

func (d *Driver) run(ctx context.Context, args ...string) (stdout string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, d.bin(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return out.String(), exitErr.ExitCode(), nil
		}
		return out.String(), -1, runErr
	}
	return out.String(), 0, nil
}

// IsLoaded reports whether label is currently loaded in the user's GUI
// domain, per spec.md §4.4: `launchctl print <domain>/<label>` exiting 0.
func (d *Driver) IsLoaded(ctx context.Context, label string) (bool, error) {
	_, code, err := d.run(ctx, "print", d.Domain()+"/"+label)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// RunningState is the daemon's observed state as reported by
// `launchctl print`.
type RunningState struct {
	Running bool
	PID     int
}

var (
	stateRe = regexp.MustCompile(`(?m)^\s*state\s*=\s*(\S+)`)
	pidRe   = regexp.MustCompile(`(?m)^\s*pid\s*=\s*(\d+)`)
)

// GetRunningState parses `launchctl print`'s textual output for label,
// per spec.md §4.4: both `state = running` and a numeric pid must be
// present, else the service is reported not running.
func (d *Driver) GetRunningState(ctx context.Context, label string) (RunningState, error) {
	out, code, err := d.run(ctx, "print", d.Domain()+"/"+label)
	if err != nil {
		return RunningState{}, err
	}
	if code != 0 {
		return RunningState{}, nil
	}

	stateMatch := stateRe.FindStringSubmatch(out)
	pidMatch := pidRe.FindStringSubmatch(out)
	if stateMatch == nil || pidMatch == nil {
		return RunningState{}, nil
	}
	if strings.ToLower(stateMatch[1]) != "running" {
		return RunningState{}, nil
	}
	pid, err := strconv.Atoi(pidMatch[1])
	if err != nil {
		return RunningState{}, nil
	}
	return RunningState{Running: true, PID: pid}, nil
}

var bootstrapBackoff = []time.Duration{150 * time.Millisecond, 300 * time.Millisecond, 450 * time.Millisecond}

// Bootstrap loads plistPath into the user's GUI domain, making up to 3
// attempts with the backoff schedule from spec.md §4.4. A non-zero exit is
// tolerated if the service ends up loaded anyway (another process may
// have raced it in).
func (d *Driver) Bootstrap(ctx context.Context, label, plistPath string) error {
	var lastErr error
	for attempt, backoff := range bootstrapBackoff {
		_, code, err := d.run(ctx, "bootstrap", d.Domain(), plistPath)
		if err == nil && code == 0 {
			return nil
		}
		lastErr = err
		if err == nil {
			lastErr = fmt.Errorf("launchctl bootstrap exited %d", code)
		}

		if loaded, lerr := d.IsLoaded(ctx, label); lerr == nil && loaded {
			return nil
		}

		if attempt < len(bootstrapBackoff)-1 {
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("launchctl bootstrap failed after %d attempts: %w", len(bootstrapBackoff), lastErr)
}

// Bootout unloads label. Best-effort: errors are swallowed, per
// spec.md §4.4 (a service that's already gone is not a failure).
func (d *Driver) Bootout(ctx context.Context, label string) {
	_, _, _ = d.run(ctx, "bootout", d.Domain()+"/"+label)
}

// Kickstart starts label immediately, making up to 3 attempts with the
// same backoff schedule as Bootstrap. Failure is non-fatal: the next
// socket connection can still activate an on-demand job.
func (d *Driver) Kickstart(ctx context.Context, label string, kill bool) error {
	args := []string{"kickstart"}
	if kill {
		args = append(args, "-k")
	}
	args = append(args, d.Domain()+"/"+label)

	var lastErr error
	for attempt, backoff := range bootstrapBackoff {
		_, code, err := d.run(ctx, args...)
		if err == nil && code == 0 {
			return nil
		}
		lastErr = err
		if err == nil {
			lastErr = fmt.Errorf("launchctl kickstart exited %d", code)
		}
		if attempt < len(bootstrapBackoff)-1 {
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("launchctl kickstart failed after %d attempts: %w", len(bootstrapBackoff), lastErr)
}
