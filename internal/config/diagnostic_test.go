package config_test

import (
	"path/filepath"
	"testing"

	"github.com/mcpli/mcpli/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostic_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnostic-abcd1234.json")
	want := config.Diagnostic{Debug: true, Verbose: true}

	require.NoError(t, config.WriteDiagnostic(path, want))

	got, err := config.ReadDiagnostic(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDiagnostic_ReadMissingFileReturnsZeroValue(t *testing.T) {
	got, err := config.ReadDiagnostic(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, config.Diagnostic{}, got)
}
