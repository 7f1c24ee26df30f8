package config_test

import (
	"path/filepath"
	"testing"

	"github.com/mcpli/mcpli/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	store := config.NewStore(path)

	settings := config.Settings{DefaultTimeoutSeconds: 60, ToolTimeoutMs: 120_000}
	require.NoError(t, store.Save(settings))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.DefaultTimeoutSeconds)
	assert.Equal(t, 120_000, loaded.ToolTimeoutMs)
}

func TestStore_LoadNonExistent(t *testing.T) {
	store := config.NewStore(filepath.Join(t.TempDir(), "missing.yaml"))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Settings{}, loaded)
}

func TestSettings_OverridesFrom(t *testing.T) {
	s := config.Settings{DefaultTimeoutSeconds: 42, ToolTimeoutMs: 1000, IPCTimeoutMs: 2000}
	o := s.OverridesFrom()
	assert.Equal(t, 42, o.DaemonInactivitySeconds)
	assert.Equal(t, 1000, o.ToolTimeoutMs)
	assert.Equal(t, 2000, o.IPCTimeoutMs)
}

func TestDefaultSettingsPath_EndsWithMcpliConfigYaml(t *testing.T) {
	path, err := config.DefaultSettingsPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "mcpli", filepath.Base(filepath.Dir(path)))
}
