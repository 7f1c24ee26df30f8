package identity

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scope is the per-(cwd,id) set of derived paths and labels from spec.md §3.
type Scope struct {
	Cwd            string
	CwdHash        string
	Label          string
	SocketPath     string
	PlistPath      string
	DiagnosticPath string
}

// labelNamespace is the launchd label prefix declared in spec.md §3/§4.11.
const labelNamespace = "com.mcpli"

// NewScope derives the full Scope for a daemon id rooted at cwd. cwd must
// already be absolute (see CurrentDir). id must satisfy ValidID; callers are
// expected to have validated it via identity.New, but NewScope re-checks to
// uphold the path-traversal invariant from spec.md §4.2/§8.3.
func NewScope(cwd, id string) (Scope, error) {
	if !ValidID(id) {
		return Scope{}, fmt.Errorf("identity: invalid daemon id %q", id)
	}
	if !filepath.IsAbs(cwd) {
		return Scope{}, fmt.Errorf("identity: cwd must be absolute, got %q", cwd)
	}

	cwdHash := CwdHash(cwd)
	label := fmt.Sprintf("%s.%s.%s", labelNamespace, cwdHash, id)

	return Scope{
		Cwd:            cwd,
		CwdHash:        cwdHash,
		Label:          label,
		SocketPath:     filepath.Join(socketBaseDir(), cwdHash, id+".sock"),
		PlistPath:      filepath.Join(cwd, ".mcpli", "launchd", label+".plist"),
		DiagnosticPath: filepath.Join(cwd, ".mcpli", fmt.Sprintf("diagnostic-%s.json", id)),
	}, nil
}

// socketBaseDir is <tmp>/mcpli, the root under which per-cwd socket
// directories are created (spec.md §6 persisted layout).
func socketBaseDir() string {
	return filepath.Join(os.TempDir(), "mcpli")
}

// SocketDir returns <tmp>/mcpli/<cwdHash>, the per-project directory
// holding every daemon socket for cwd. Used by `daemon clean` to remove
// the whole directory, not just the sockets it currently knows about
// (spec.md §4.11).
func SocketDir(cwd string) string {
	return filepath.Join(socketBaseDir(), CwdHash(cwd))
}

// LabelPrefix returns the launchd label prefix scoped to a single cwd,
// used by `stop` (no id) and `status`/`clean` to enumerate every daemon
// belonging to this project directory (spec.md §4.11).
func LabelPrefix(cwd string) string {
	return fmt.Sprintf("%s.%s.", labelNamespace, CwdHash(cwd))
}

// IDFromLabel extracts the daemon id suffix from a label produced by this
// namespace, returning ("", false) if label doesn't match the prefix or the
// suffix isn't a valid id.
func IDFromLabel(cwd, label string) (string, bool) {
	prefix := LabelPrefix(cwd)
	if len(label) <= len(prefix) || label[:len(prefix)] != prefix {
		return "", false
	}
	id := label[len(prefix):]
	if !ValidID(id) {
		return "", false
	}
	return id, true
}
