package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Layout names the files and directories under the data directory.
type Layout struct {
	Root string
	// UserDir overrides the side-loaded package directory when set.
	UserDir string
}

// Layout returns the data directory layout for c.
func (c *Config) Layout() Layout {
	return Layout{Root: c.Paths.DataDir, UserDir: c.Paths.UserPackages}
}

// MainPackage is the install directory of the managed package.
func (l Layout) MainPackage() string { return filepath.Join(l.Root, "packages", "main") }

// UserPackages holds side-loaded unpacked packages.
func (l Layout) UserPackages() string {
	if l.UserDir != "" {
		return l.UserDir
	}
	return filepath.Join(l.Root, "packages", "user")
}

// Profile is the browser profile directory.
func (l Layout) Profile() string { return filepath.Join(l.Root, "profile") }

// State holds install locks and journals.
func (l Layout) State() string { return filepath.Join(l.Root, "state") }

// Logs holds log files.
func (l Layout) Logs() string { return filepath.Join(l.Root, "logs") }

// LogFile is the rotating log file path.
func (l Layout) LogFile() string { return filepath.Join(l.Logs(), "crxkeep.log") }

// ResetMarker requests a profile wipe on the next run when present.
func (l Layout) ResetMarker() string { return filepath.Join(l.Root, "reset-profile.flag") }

// Ensure creates the directories the application writes to.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.State(), l.Logs(), l.UserPackages(), filepath.Dir(l.MainPackage())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// RequestProfileReset writes the reset marker.
func (l Layout) RequestProfileReset() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(l.ResetMarker(), nil, 0o644); err != nil {
		return fmt.Errorf("write reset marker: %w", err)
	}
	return nil
}

// ConsumeProfileReset deletes the profile when the marker is present and
// removes the marker. It reports whether a reset happened.
func (l Layout) ConsumeProfileReset() (bool, error) {
	if _, err := os.Stat(l.ResetMarker()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat reset marker: %w", err)
	}
	if err := os.RemoveAll(l.Profile()); err != nil {
		return false, fmt.Errorf("remove profile: %w", err)
	}
	if err := os.Remove(l.ResetMarker()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, fmt.Errorf("remove reset marker: %w", err)
	}
	return true, nil
}

// ConfigPath resolves the config file location: an explicit path wins, then
// CRXKEEP_CONFIG, then crxkeep.lua in the data directory.
func ConfigPath(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		dir := os.Getenv(EnvDataDir)
		if dir == "" {
			dir = defaultDataDir()
		}
		path = filepath.Join(dir, DefaultConfigFile)
	}
	return ExpandHome(path)
}
