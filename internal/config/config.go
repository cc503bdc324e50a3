// Package config loads the edit history engine's settings from
// <history-root>/settings.json with a settings.local.json override,
// grounded on the teacher's cmd/entire/cli/settings package (same
// merge-base-then-override shape, adapted to this engine's fields).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/edithist/edithist/internal/edithisterr"
	"github.com/edithist/edithist/internal/jsonutil"
)

// File names under the history root.
const (
	SettingsFile      = "settings.json"
	SettingsLocalFile = "settings.local.json"
)

// DefaultLockTimeoutSeconds is used when settings don't specify one.
const DefaultLockTimeoutSeconds = 10

// Settings is the engine's persisted configuration.
type Settings struct {
	// LogLevel sets logging verbosity (debug, info, warn, error). Can be
	// overridden by the EDITHIST_LOG_LEVEL environment variable.
	LogLevel string `json:"log_level,omitempty"`

	// LockTimeoutSeconds bounds how long the CLI's commands wait to
	// acquire a log lock before failing, unless --timeout is given.
	LockTimeoutSeconds int `json:"lock_timeout_seconds,omitempty"`

	// Color controls whether review output is colorized: "auto" (default,
	// TTY-and-NO_COLOR-aware), "always", or "never".
	Color string `json:"color,omitempty"`

	// DefaultStatusLimit bounds `status`'s output when --limit isn't given.
	DefaultStatusLimit int `json:"default_status_limit,omitempty"`
}

func defaults() *Settings {
	return &Settings{
		LogLevel:           "info",
		LockTimeoutSeconds: DefaultLockTimeoutSeconds,
		Color:              "auto",
		DefaultStatusLimit: 50,
	}
}

// Load reads historyRoot/settings.json, then applies any overrides from
// historyRoot/settings.local.json. Missing files are not an error; Load
// returns defaults in that case.
func Load(historyRoot string) (*Settings, error) {
	settings, err := loadFromFile(filepath.Join(historyRoot, SettingsFile))
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(historyRoot, SettingsLocalFile)
	data, err := os.ReadFile(localPath) //nolint:gosec // fixed relative path under the history root
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, edithisterr.Wrap(edithisterr.IO, err, "reading %q", localPath)
	}
	if err := mergeJSON(settings, data); err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "merging %q", localPath)
	}
	return settings, nil
}

func loadFromFile(path string) (*Settings, error) {
	settings := defaults()

	data, err := os.ReadFile(path) //nolint:gosec // fixed relative path under the history root
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, edithisterr.Wrap(edithisterr.IO, err, "reading %q", path)
	}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, edithisterr.Wrap(edithisterr.IO, err, "parsing %q", path)
	}
	applyDefaults(settings)
	return settings, nil
}

// mergeJSON overrides fields present in data onto settings. Keys absent
// from the override file, and keys set to an empty string or a
// non-positive number, leave the base value untouched.
func mergeJSON(settings *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["log_level"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if s != "" {
			settings.LogLevel = s
		}
	}
	if v, ok := raw["lock_timeout_seconds"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n > 0 {
			settings.LockTimeoutSeconds = n
		}
	}
	if v, ok := raw["color"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if s != "" {
			settings.Color = s
		}
	}
	if v, ok := raw["default_status_limit"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n > 0 {
			settings.DefaultStatusLimit = n
		}
	}
	return nil
}

func applyDefaults(s *Settings) {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LockTimeoutSeconds <= 0 {
		s.LockTimeoutSeconds = DefaultLockTimeoutSeconds
	}
	if s.Color == "" {
		s.Color = "auto"
	}
	if s.DefaultStatusLimit <= 0 {
		s.DefaultStatusLimit = 50
	}
}

// Save writes settings to historyRoot/settings.json using the engine's
// human-edited-file indentation convention.
func Save(historyRoot string, settings *Settings) error {
	data, err := jsonutil.MarshalIndentWithNewline(settings, "", "  ")
	if err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "marshaling settings")
	}
	path := filepath.Join(historyRoot, SettingsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return edithisterr.Wrap(edithisterr.IO, err, "writing %q", path)
	}
	return nil
}
