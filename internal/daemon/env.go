// Package daemon implements the long-lived wrapper process described in
// spec.md §4.8: it reads its configuration from reserved environment
// variables, starts one MCP stdio session, fronts it with an IPC server,
// and shuts down cleanly on inactivity or a termination signal.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mcpli/mcpli/internal/ipc"
)

// Reserved environment keys the orchestrator passes to the wrapper, per
// spec.md §6 "Reserved environment keys passed to the wrapper".
const (
	EnvOrchestrator  = "ORCHESTRATOR"
	EnvSocketEnvKey  = "SOCKET_ENV_KEY"
	EnvSocketPath    = "SOCKET_PATH"
	EnvCwd           = "CWD"
	EnvTimeout       = "TIMEOUT"
	EnvCommand       = "COMMAND"
	EnvArgs          = "ARGS"
	EnvServerEnv     = "SERVER_ENV"
	EnvIDExpected    = "ID_EXPECTED"
)

// OrchestratorLaunchd and OrchestratorStandalone are the two values
// ORCHESTRATOR may take, per spec.md §4.8 step 4.
const (
	OrchestratorLaunchd    = "launchd"
	OrchestratorStandalone = "standalone"
)

// reservedKeys is the set of environment keys that must never leak into
// the merged environment the wrapper hands to the MCP child process
// (spec.md §4.8 step 3: "ambient ∖ reserved keys").
var reservedKeys = map[string]bool{
	EnvOrchestrator: true,
	EnvSocketEnvKey: true,
	EnvSocketPath:   true,
	EnvCwd:          true,
	EnvTimeout:      true,
	EnvCommand:      true,
	EnvArgs:         true,
	EnvServerEnv:    true,
	EnvIDExpected:   true,

	// The IPC connection-limit tunables (spec.md §4.6) configure this
	// wrapper process itself; they have no business reaching the
	// spawned MCP child.
	ipc.EnvMaxConnections:        true,
	ipc.EnvConnectionIdleTimeout: true,
	ipc.EnvListenBacklog:         true,
	ipc.EnvMaxFrameBytes:         true,
}

// Startup is the fully-parsed configuration read from the reserved
// environment variables (spec.md §4.8 step 1).
type Startup struct {
	Orchestrator string
	SocketEnvKey string
	SocketPath   string
	Cwd          string
	TimeoutMs    int
	Command      string
	Args         []string
	ServerEnv    map[string]string
	IDExpected   string
}

// ReadStartup parses the reserved environment keys from the process
// environment (spec.md §4.8 step 1).
func ReadStartup() (Startup, error) {
	s := Startup{
		Orchestrator: os.Getenv(EnvOrchestrator),
		SocketEnvKey: os.Getenv(EnvSocketEnvKey),
		SocketPath:   os.Getenv(EnvSocketPath),
		Cwd:          os.Getenv(EnvCwd),
		Command:      os.Getenv(EnvCommand),
		IDExpected:   os.Getenv(EnvIDExpected),
	}

	if s.Orchestrator != OrchestratorLaunchd && s.Orchestrator != OrchestratorStandalone {
		return Startup{}, fmt.Errorf("daemon: invalid %s %q", EnvOrchestrator, s.Orchestrator)
	}
	if s.Command == "" {
		return Startup{}, fmt.Errorf("daemon: %s not set", EnvCommand)
	}
	if s.IDExpected == "" {
		return Startup{}, fmt.Errorf("daemon: %s not set", EnvIDExpected)
	}

	timeoutStr := os.Getenv(EnvTimeout)
	if timeoutStr != "" {
		n, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return Startup{}, fmt.Errorf("daemon: invalid %s %q: %w", EnvTimeout, timeoutStr, err)
		}
		s.TimeoutMs = n
	}

	if raw := os.Getenv(EnvArgs); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Args); err != nil {
			return Startup{}, fmt.Errorf("daemon: invalid %s: %w", EnvArgs, err)
		}
	}

	if raw := os.Getenv(EnvServerEnv); raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.ServerEnv); err != nil {
			return Startup{}, fmt.Errorf("daemon: invalid %s: %w", EnvServerEnv, err)
		}
	}

	return s, nil
}

// mergedChildEnv builds the environment the MCP child process should see:
// the wrapper's own ambient environment minus the reserved keys, overlaid
// with the server's configured env (spec.md §4.8 step 3).
func mergedChildEnv(serverEnv map[string]string) map[string]string {
	merged := make(map[string]string, len(serverEnv))
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || reservedKeys[k] {
			continue
		}
		merged[k] = v
	}
	for k, v := range serverEnv {
		merged[k] = v
	}
	return merged
}

// resolveCommand applies spec.md §4.8 step 3's "node" special case: a
// bare "node" command is resolved to an absolute path via PATH lookup,
// so the spawned child is insensitive to PATH differences between the
// original CLI invocation and the long-lived wrapper's own environment.
func resolveCommand(command string) string {
	if command != "node" {
		return command
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved
	}
	return command
}
