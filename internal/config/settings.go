package config

import (
	"os"
	"path/filepath"

	"github.com/mcpli/mcpli/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsPath returns `~/.config/mcpli/config.yaml`, the
// CLI-level user config SPEC_FULL §2 names for pinning default timeouts
// without passing flags on every invocation. It holds no log-verbosity
// setting.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mcpli", "config.yaml"), nil
}

// Settings is the CLI-level configuration persisted per user, letting a
// user pin timeout overrides without passing flags on every invocation.
// Zero fields mean "not pinned", so Resolve still falls through to the env
// var and built-in default layers.
type Settings struct {
	DefaultTimeoutSeconds int `yaml:"defaultTimeoutSeconds,omitempty"`
	ToolTimeoutMs         int `yaml:"toolTimeoutMs,omitempty"`
	IPCTimeoutMs          int `yaml:"ipcTimeoutMs,omitempty"`
}

// settingsDoc is the on-disk envelope, mirroring the teacher's
// SettingsConfig wrapper so the file stays self-describing and open to
// future top-level keys.
type settingsDoc struct {
	Settings Settings `yaml:"settings"`
}

// Store persists Settings to a single YAML file, following the teacher's
// profile.Store Load/Save pattern: a missing file yields the zero value
// with no error, and writes go through fsutil's atomic-write helper
// instead of a bare os.WriteFile.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads Settings from disk, returning the zero value when the file
// does not exist yet.
func (s *Store) Load() (Settings, error) {
	data, ok, err := fsutil.ReadBytesIfExists(s.path)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Settings{}, nil
	}

	var doc settingsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Settings{}, err
	}
	return doc.Settings, nil
}

// Save writes Settings to disk atomically, creating the parent directory
// securely if needed.
func (s *Store) Save(settings Settings) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := fsutil.EnsureSecureDir(dir); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(settingsDoc{Settings: settings})
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(s.path, data, fsutil.DefaultFileMode)
}

// OverridesFrom builds per-call Overrides from persisted Settings, leaving
// fields the user never pinned at zero so Resolve keeps falling through
// to the env and default layers.
func (s Settings) OverridesFrom() Overrides {
	return Overrides{
		DaemonInactivitySeconds: s.DefaultTimeoutSeconds,
		ToolTimeoutMs:           s.ToolTimeoutMs,
		IPCTimeoutMs:            s.IPCTimeoutMs,
	}
}

