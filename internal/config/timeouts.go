// Package config resolves the timeout hierarchy from spec.md §4.10 and
// loads the ambient CLI-level settings file (YAML, following the teacher's
// profile.Store pattern) plus an optional .env (godotenv, following
// Jint8888-Pocket-Omega's internal/config/env.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults from spec.md §4.10.
const (
	DefaultDaemonInactivitySeconds = 1800
	DefaultToolTimeoutMs           = 600_000
	DefaultIPCTimeoutMs            = 660_000
	DefaultConnectRetryBudgetMs    = 3000
	ReloadConnectRetryBudgetMs     = 8000

	// ToolTimeoutBuffer is the slack IPC transport timeouts add on top of
	// the tool timeout for callTool (and listTools, when a tool timeout is
	// explicit), per spec.md §4.7/§8 invariant 5.
	ToolTimeoutBuffer = 60_000 * time.Millisecond
)

// Env var names, per spec.md §4.10.
const (
	EnvDaemonTimeoutSeconds  = "MCPLI_DEFAULT_TIMEOUT"
	EnvToolTimeoutMs         = "MCPLI_TOOL_TIMEOUT_MS"
	EnvIPCTimeoutMs          = "MCPLI_IPC_TIMEOUT"
	EnvConnectRetryBudgetMs  = "MCPLI_IPC_CONNECT_RETRY_BUDGET_MS"
)

// Timeouts is the fully-resolved layered timeout configuration for one
// invocation, per spec.md §4.10.
type Timeouts struct {
	DaemonInactivity    time.Duration
	ToolTimeout         time.Duration
	IPCTimeout          time.Duration
	ConnectRetryBudget  time.Duration
}

// Overrides carries the explicit per-call arguments, highest priority in
// the resolution order (spec.md §4.10 step 1). A zero value means "not
// explicitly set by the caller".
type Overrides struct {
	DaemonInactivitySeconds int
	ToolTimeoutMs           int
	IPCTimeoutMs            int
}

// Resolve applies spec.md §4.10's resolution order: explicit argument,
// then environment variable, then the persisted settings file's pinned
// default (if one was loaded and passed as settingsDefaults), then the
// built-in default.
func Resolve(o Overrides, settingsDefaults ...Overrides) Timeouts {
	var sd Overrides
	if len(settingsDefaults) > 0 {
		sd = settingsDefaults[0]
	}

	daemonSecs := firstPositiveInt(o.DaemonInactivitySeconds, envInt(EnvDaemonTimeoutSeconds), sd.DaemonInactivitySeconds, DefaultDaemonInactivitySeconds)
	toolMs := firstPositiveInt(o.ToolTimeoutMs, envInt(EnvToolTimeoutMs), sd.ToolTimeoutMs, DefaultToolTimeoutMs)
	ipcMs := firstPositiveInt(o.IPCTimeoutMs, envInt(EnvIPCTimeoutMs), sd.IPCTimeoutMs, DefaultIPCTimeoutMs)
	retryMs := firstPositiveInt(0, envInt(EnvConnectRetryBudgetMs), DefaultConnectRetryBudgetMs)

	return Timeouts{
		DaemonInactivity:   time.Duration(daemonSecs) * time.Second,
		ToolTimeout:        time.Duration(toolMs) * time.Millisecond,
		IPCTimeout:         time.Duration(ipcMs) * time.Millisecond,
		ConnectRetryBudget: time.Duration(retryMs) * time.Millisecond,
	}
}

// firstPositiveInt returns the first strictly-positive candidate in order.
func firstPositiveInt(candidates ...int) int {
	for _, c := range candidates {
		if c > 0 {
			return c
		}
	}
	return 0
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// IPCTimeoutFor computes the per-method IPC transport timeout, enforcing
// the invariant from spec.md §8 property 5: for callTool, and for
// listTools when an explicit tool timeout was configured, the IPC timeout
// is at least toolTimeout + ToolTimeoutBuffer.
func (t Timeouts) IPCTimeoutFor(method string, explicitToolTimeout bool) time.Duration {
	switch method {
	case "callTool":
		return maxDuration(t.IPCTimeout, t.ToolTimeout+ToolTimeoutBuffer)
	case "listTools":
		if explicitToolTimeout {
			return maxDuration(t.IPCTimeout, t.ToolTimeout+ToolTimeoutBuffer)
		}
		return t.IPCTimeout
	default:
		return t.IPCTimeout
	}
}

// ConnectRetryBudgetFor returns the effective connect retry budget for one
// client call, raised to ReloadConnectRetryBudgetMs when the preceding
// ensure reported an action that may still be settling (spec.md §4.7).
func (t Timeouts) ConnectRetryBudgetFor(ensureAction string) time.Duration {
	switch ensureAction {
	case "loaded", "reloaded", "started":
		return maxDuration(t.ConnectRetryBudget, ReloadConnectRetryBudgetMs*time.Millisecond)
	default:
		return t.ConnectRetryBudget
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// Validate enforces the IPC ≥ tool + buffer invariant from spec.md §1/§8
// for an explicitly-configured pair, returning a descriptive error when a
// caller pins both IPC and tool timeouts to inconsistent values.
func (t Timeouts) Validate() error {
	if t.IPCTimeout < t.ToolTimeout+ToolTimeoutBuffer {
		return fmt.Errorf(
			"config: ipc timeout (%s) must be >= tool timeout (%s) + %s buffer",
			t.IPCTimeout, t.ToolTimeout, ToolTimeoutBuffer,
		)
	}
	return nil
}
