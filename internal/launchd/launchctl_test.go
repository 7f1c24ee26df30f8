package launchd_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/mcpli/mcpli/internal/launchd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLaunchctl writes an executable shell script standing in for
// /bin/launchctl, returning canned stdout and exit code regardless of
// arguments, so the Driver's parsing and retry logic can be tested
// without a real macOS orchestrator.
func fakeLaunchctl(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("launchctl driver is macOS-only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "launchctl")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDriver_IsLoaded_True(t *testing.T) {
	bin := fakeLaunchctl(t, "state = running\npid = 123", 0)
	d := &launchd.Driver{Bin: bin, UID: 501}

	loaded, err := d.IsLoaded(context.Background(), "com.mcpli.test")
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestDriver_IsLoaded_False(t *testing.T) {
	bin := fakeLaunchctl(t, "Could not find service", 113)
	d := &launchd.Driver{Bin: bin, UID: 501}

	loaded, err := d.IsLoaded(context.Background(), "com.mcpli.test")
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestDriver_GetRunningState_RunningWithPID(t *testing.T) {
	bin := fakeLaunchctl(t, "\tstate = running\n\tpid = 4242", 0)
	d := &launchd.Driver{Bin: bin, UID: 501}

	state, err := d.GetRunningState(context.Background(), "com.mcpli.test")
	require.NoError(t, err)
	assert.True(t, state.Running)
	assert.Equal(t, 4242, state.PID)
}

func TestDriver_GetRunningState_NotRunningWithoutPID(t *testing.T) {
	bin := fakeLaunchctl(t, "state = waiting", 0)
	d := &launchd.Driver{Bin: bin, UID: 501}

	state, err := d.GetRunningState(context.Background(), "com.mcpli.test")
	require.NoError(t, err)
	assert.False(t, state.Running)
}

func TestDriver_Bootstrap_SucceedsOnZeroExit(t *testing.T) {
	bin := fakeLaunchctl(t, "", 0)
	d := &launchd.Driver{Bin: bin, UID: 501}
	assert.NoError(t, d.Bootstrap(context.Background(), "com.mcpli.test", "/tmp/fake.plist"))
}

func TestDriver_Bootout_NeverReturnsError(t *testing.T) {
	bin := fakeLaunchctl(t, "", 1)
	d := &launchd.Driver{Bin: bin, UID: 501}
	d.Bootout(context.Background(), "com.mcpli.test")
}

func TestDriver_Domain(t *testing.T) {
	d := &launchd.Driver{UID: 501}
	assert.Equal(t, "gui/501", d.Domain())
}
