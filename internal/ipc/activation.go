package ipc

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// InheritedFDEnvVar is the reserved environment variable the orchestrator
// uses to tell the wrapper which file descriptor number its activation
// socket was passed on. Real launchd socket activation hands the fd to
// the child at a fixed, pre-negotiated number (launchd itself resolves
// the name-to-fd mapping via launch_activate_socket(3), a C API with no
// pure-Go binding available in this module's dependency set); mcplid
// reads the resolved number from this var instead of linking against
// that API directly.
const InheritedFDEnvVar = "MCPLI_SOCKET_FD"

// AdoptInheritedListener reconstructs a net.Listener from the file
// descriptor the orchestrator activated on the wrapper's behalf, per
// spec.md §4.6's "from inherited fd" construction mode. Returns an error
// if no fd was advertised — orchestrator mode requires this to succeed,
// with no fallback to path-binding.
func AdoptInheritedListener() (net.Listener, error) {
	raw := os.Getenv(InheritedFDEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("ipc: %s not set; no inherited socket to adopt", InheritedFDEnvVar)
	}
	fd, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("ipc: invalid %s %q: %w", InheritedFDEnvVar, raw, err)
	}

	f := os.NewFile(uintptr(fd), SocketName)
	if f == nil {
		return nil, fmt.Errorf("ipc: fd %d is not open", fd)
	}

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("ipc: adopt inherited fd %d: %w", fd, err)
	}
	return ln, nil
}
