//go:build unix

package fsutil

import (
	"fmt"
	"os"
	"syscall"
)

// requireOwnedByCurrentUser enforces that dir's owning uid matches the
// invoking process, defending against another user pre-creating a socket
// directory the daemon would otherwise bind into (spec.md §4.2).
func requireOwnedByCurrentUser(dir string, info os.FileInfo) error {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if int(stat.Uid) != os.Getuid() {
		return fmt.Errorf("fsutil: socket directory %q is not owned by the current user", dir)
	}
	return nil
}

// WithUmask runs fn with umask set to mask, restoring the previous umask
// afterward. Used during socket bind (spec.md §4.6) to guarantee the
// freshly-created socket file starts at a known-strict permission.
func WithUmask(mask int, fn func() error) error {
	old := syscall.Umask(mask)
	defer syscall.Umask(old)
	return fn()
}
