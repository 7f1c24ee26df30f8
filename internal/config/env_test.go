package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mcpli/mcpli/internal/config"
	"github.com/mcpli/mcpli/internal/mcplilog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_LoadsFromServerCwd(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cwd, ".env"), []byte("MCPLI_TEST_VAR=fromcwd\n"), 0o600))
	t.Setenv("MCPLI_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("MCPLI_TEST_VAR"))

	l, err := mcplilog.New("test1234", "", false)
	require.NoError(t, err)
	defer l.Close()

	config.LoadEnv(l, cwd)
	assert.Equal(t, "fromcwd", os.Getenv("MCPLI_TEST_VAR"))
}

func TestEnvFilePath_ReportsNotFound(t *testing.T) {
	cwd := t.TempDir()
	got := config.EnvFilePath(cwd)
	assert.Contains(t, got, "not found")
}
