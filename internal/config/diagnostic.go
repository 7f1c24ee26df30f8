package config

import (
	"encoding/json"
	"fmt"

	"github.com/mcpli/mcpli/internal/fsutil"
)

// Diagnostic is the per-id diagnostic config file written by the CLI
// before ensure and read by the daemon wrapper at startup, per spec.md
// §4.9.
type Diagnostic struct {
	Debug   bool `json:"debug"`
	Logs    bool `json:"logs"`
	Verbose bool `json:"verbose"`
	Quiet   bool `json:"quiet"`
}

// WriteDiagnostic atomically writes d to path.
func WriteDiagnostic(path string, d Diagnostic) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal diagnostic: %w", err)
	}
	return fsutil.AtomicWrite(path, data, fsutil.DefaultFileMode)
}

// ReadDiagnostic reads the diagnostic config written for one daemon id.
// A missing file reports the zero value (all flags off), matching the
// wrapper's default behavior when the CLI never wrote one.
func ReadDiagnostic(path string) (Diagnostic, error) {
	data, ok, err := fsutil.ReadBytesIfExists(path)
	if err != nil {
		return Diagnostic{}, err
	}
	if !ok {
		return Diagnostic{}, nil
	}
	var d Diagnostic
	if err := json.Unmarshal(data, &d); err != nil {
		return Diagnostic{}, fmt.Errorf("config: parse diagnostic %q: %w", path, err)
	}
	return d, nil
}
