// Package config resolves the settings of a run.
//
// Persistent preferences are stored as JSON at ~/.config/hzdeploy/config.json
// (or the platform-equivalent path returned by os.UserConfigDir). They are
// layered under environment variables and flags by Load, which produces the
// immutable Config every command works from.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	appDir   = "hzdeploy"
	fileName = "config.json"
)

// pathOverride, when non-empty, replaces the default preferences path.
// Intended for testing. Use SetPath / ResetPath to manage.
var pathOverride string

// SetPath overrides the preferences file path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override, reverting to the default. Intended for testing.
func ResetPath() { pathOverride = "" }

// Preferences holds user defaults that persist across invocations. Empty
// fields defer to the built-in defaults.
type Preferences struct {
	ServerType  string `json:"server_type,omitempty"`
	Image       string `json:"image,omitempty"`
	Location    string `json:"location,omitempty"`
	RemoteUser  string `json:"remote_user,omitempty"`
	DNSProvider string `json:"dns_provider,omitempty"`
}

// Path returns the absolute path to the preferences file.
// If SetPath has been called, that value is returned instead.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// LoadPreferences reads the preferences file from disk. A missing file
// yields zero-value Preferences, not an error.
func LoadPreferences() (*Preferences, error) {
	return loadFrom("")
}

func loadFrom(path string) (*Preferences, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Preferences{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return &prefs, nil
}

// Save writes the preferences to disk, creating the parent directory if needed.
func (p *Preferences) Save() error {
	return p.saveTo("")
}

func (p *Preferences) saveTo(path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal preferences: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// LoadFrom reads preferences from the given path. Intended for testing.
func LoadFrom(path string) (*Preferences, error) {
	return loadFrom(path)
}

// SaveTo writes preferences to the given path. Intended for testing.
func (p *Preferences) SaveTo(path string) error {
	return p.saveTo(path)
}
