package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcpli/mcpli/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSecureDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b", "c")

	require.NoError(t, fsutil.EnsureSecureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fsutil.SecureDirMode, info.Mode().Perm())
}

func TestAtomicWrite_ReplacesContentWithoutPartialState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plist.xml")

	require.NoError(t, fsutil.AtomicWrite(path, []byte("first"), 0o600))
	data, ok, err := fsutil.ReadBytesIfExists(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(data))

	require.NoError(t, fsutil.AtomicWrite(path, []byte("second"), 0o600))
	data, ok, err = fsutil.ReadBytesIfExists(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files")
}

func TestReadBytesIfExists_Missing(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := fsutil.ReadBytesIfExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSafeUnlink_IgnoresNotFound(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, fsutil.SafeUnlink(filepath.Join(dir, "nope")))
}

func TestSafeUnlink_RemovesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, fsutil.SafeUnlink(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSecureSocketParentDir_CreatesAndTightens(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "sockdir")

	require.NoError(t, fsutil.SecureSocketParentDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, fsutil.SecureDirMode, info.Mode().Perm())

	require.NoError(t, os.Chmod(dir, 0o755))
	require.NoError(t, fsutil.SecureSocketParentDir(dir))
	info, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, fsutil.SecureDirMode, info.Mode().Perm())
}

func TestWaitForPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sock")

	assert.False(t, fsutil.WaitForPath(path, 20*time.Millisecond, 5*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = os.WriteFile(path, []byte("x"), 0o600)
	}()
	assert.True(t, fsutil.WaitForPath(path, 200*time.Millisecond, 5*time.Millisecond))
}
