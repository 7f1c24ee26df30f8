package ensure_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mcpli/mcpli/internal/ensure"
	"github.com/mcpli/mcpli/internal/launchd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLaunchctl writes an executable script standing in for launchctl: it
// tracks invocations in a file under stateDir so tests can assert on call
// counts (e.g. "no reload happened"), and reports "loaded" once a
// bootstrap call has been recorded.
func fakeLaunchctl(t *testing.T, stateDir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("ensure engine is macOS-only")
	}
	path := filepath.Join(stateDir, "launchctl")
	script := `#!/bin/sh
log="` + stateDir + `/calls.log"
echo "$@" >> "$log"
case "$1" in
  bootstrap)
    touch "` + stateDir + `/loaded"
    exit 0
    ;;
  bootout)
    rm -f "` + stateDir + `/loaded"
    exit 0
    ;;
  print)
    if [ -f "` + stateDir + `/loaded" ]; then
      echo "state = running"
      echo "pid = 4242"
      exit 0
    else
      echo "could not find service"
      exit 113
    fi
    ;;
  kickstart)
    exit 0
    ;;
esac
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func callCount(t *testing.T, stateDir, verb string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(stateDir, "calls.log"))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, verb) {
			count++
		}
	}
	return count
}

func newTestEngine(t *testing.T) (*ensure.Engine, string) {
	stateDir := t.TempDir()
	bin := fakeLaunchctl(t, stateDir)
	return &ensure.Engine{Driver: &launchd.Driver{Bin: bin, UID: 501}}, stateDir
}

func baseInputs(cwd string) ensure.Inputs {
	return ensure.Inputs{
		Command:    "/usr/bin/node",
		Args:       []string{"/tmp/server.js"},
		Env:        map[string]string{"A": "1"},
		Cwd:        cwd,
		McplidPath: "/usr/local/bin/mcplid",
	}
}

func TestEnsure_FirstCallLoads(t *testing.T) {
	engine, _ := newTestEngine(t)
	cwd := t.TempDir()

	result, err := engine.Run(context.Background(), baseInputs(cwd))
	require.NoError(t, err)
	assert.Equal(t, ensure.ActionLoaded, result.Action)
	assert.NotEmpty(t, result.ID)
}

func TestEnsure_IdenticalInputsAreUnchangedAndSkipReload(t *testing.T) {
	engine, stateDir := newTestEngine(t)
	cwd := t.TempDir()

	_, err := engine.Run(context.Background(), baseInputs(cwd))
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), baseInputs(cwd))
	require.NoError(t, err)
	assert.Equal(t, ensure.ActionUnchanged, result.Action)
	assert.Equal(t, 0, callCount(t, stateDir, "bootout"))
}

func TestEnsure_ChangedEnvTriggersReload(t *testing.T) {
	engine, _ := newTestEngine(t)
	cwd := t.TempDir()

	_, err := engine.Run(context.Background(), baseInputs(cwd))
	require.NoError(t, err)

	changed := baseInputs(cwd)
	changed.Env = map[string]string{"A": "2"}
	result, err := engine.Run(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, ensure.ActionReloaded, result.Action)
}

func TestEnsure_PreservesTimeoutWhenNotExplicit(t *testing.T) {
	engine, _ := newTestEngine(t)
	cwd := t.TempDir()

	first := baseInputs(cwd)
	first.TimeoutMs = 1800000
	_, err := engine.Run(context.Background(), first)
	require.NoError(t, err)

	second := baseInputs(cwd) // TimeoutMs left at zero
	result, err := engine.Run(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, ensure.ActionUnchanged, result.Action)

	data, err := os.ReadFile(scopePlistPath(t, cwd, result.ID))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1800000")
}

func TestEnsure_PreferImmediateStartKickstartsOnLoad(t *testing.T) {
	engine, _ := newTestEngine(t)
	cwd := t.TempDir()

	in := baseInputs(cwd)
	in.PreferImmediateStart = true
	result, err := engine.Run(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.Started)
}

func scopePlistPath(t *testing.T, cwd, id string) string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(cwd, ".mcpli", "launchd"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(cwd, ".mcpli", "launchd", entries[0].Name())
}
