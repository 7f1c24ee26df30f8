//go:build !unix

package fsutil

import "os"

// requireOwnedByCurrentUser is a no-op on platforms without POSIX uid
// ownership semantics; mcpli's orchestrator (launchd) is macOS-only, but
// this package stays buildable everywhere.
func requireOwnedByCurrentUser(dir string, info os.FileInfo) error {
	return nil
}

// WithUmask is a no-op on platforms without a process umask.
func WithUmask(mask int, fn func() error) error {
	return fn()
}
