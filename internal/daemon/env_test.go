package daemon

import (
	"testing"

	"github.com/mcpli/mcpli/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestReadStartup_ParsesReservedKeys(t *testing.T) {
	setEnv(t, map[string]string{
		EnvOrchestrator: OrchestratorStandalone,
		EnvSocketEnvKey: "mcpli",
		EnvSocketPath:   "/tmp/mcpli/abcd1234/ef012345.sock",
		EnvCwd:          "/work",
		EnvTimeout:      "1800000",
		EnvCommand:      "/usr/bin/node",
		EnvArgs:         `["server.js","--flag"]`,
		EnvServerEnv:    `{"A":"1"}`,
		EnvIDExpected:   "ef012345",
	})

	s, err := ReadStartup()
	require.NoError(t, err)
	assert.Equal(t, OrchestratorStandalone, s.Orchestrator)
	assert.Equal(t, []string{"server.js", "--flag"}, s.Args)
	assert.Equal(t, map[string]string{"A": "1"}, s.ServerEnv)
	assert.Equal(t, 1800000, s.TimeoutMs)
	assert.Equal(t, "ef012345", s.IDExpected)
}

func TestReadStartup_RejectsInvalidOrchestrator(t *testing.T) {
	setEnv(t, map[string]string{
		EnvOrchestrator: "bogus",
		EnvCommand:      "node",
		EnvIDExpected:   "ef012345",
	})
	_, err := ReadStartup()
	assert.Error(t, err)
}

func TestReadStartup_RejectsMissingCommand(t *testing.T) {
	setEnv(t, map[string]string{
		EnvOrchestrator: OrchestratorStandalone,
		EnvIDExpected:   "ef012345",
	})
	_, err := ReadStartup()
	assert.Error(t, err)
}

func TestMergedChildEnv_DropsReservedKeysAndOverlaysServerEnv(t *testing.T) {
	setEnv(t, map[string]string{
		EnvOrchestrator: OrchestratorStandalone,
		EnvCommand:      "node",
		"AMBIENT_VAR":   "ambient",
	})

	merged := mergedChildEnv(map[string]string{"AMBIENT_VAR": "overlaid", "EXTRA": "1"})
	assert.Equal(t, "overlaid", merged["AMBIENT_VAR"])
	assert.Equal(t, "1", merged["EXTRA"])
	_, hasReserved := merged[EnvOrchestrator]
	assert.False(t, hasReserved)
}

func TestResolveCommand_LeavesNonNodeUnchanged(t *testing.T) {
	assert.Equal(t, "/usr/bin/python3", resolveCommand("/usr/bin/python3"))
}

func TestMergedChildEnv_DropsIPCLimitTunables(t *testing.T) {
	setEnv(t, map[string]string{
		EnvOrchestrator:              OrchestratorStandalone,
		EnvCommand:                   "node",
		ipc.EnvMaxConnections:        "128",
		ipc.EnvConnectionIdleTimeout: "5000",
		ipc.EnvListenBacklog:         "256",
		ipc.EnvMaxFrameBytes:         "2097152",
	})

	merged := mergedChildEnv(nil)
	for _, k := range []string{ipc.EnvMaxConnections, ipc.EnvConnectionIdleTimeout, ipc.EnvListenBacklog, ipc.EnvMaxFrameBytes} {
		_, ok := merged[k]
		assert.False(t, ok, "expected %s to be dropped from merged child env", k)
	}
}
