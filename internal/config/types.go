package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/host"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/session"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// Update platform modes
const (
	PlatformFixed  = "fixed"
	PlatformDetect = "detect"
)

// Config represents the complete crxkeep configuration.
type Config struct {
	Package PackageConfig `json:"package"`
	Paths   PathsConfig   `json:"paths"`
	Update  UpdateConfig  `json:"update"`
	Session SessionConfig `json:"session"`
	// Patches replace the default patch rules. Nil keeps the defaults; an
	// empty, non-nil slice disables patching.
	Patches []install.PatchRule `json:"patches,omitempty"`
	Browser BrowserConfig       `json:"browser"`
	Log     LogConfig           `json:"log"`
}

// PackageConfig names the package to keep installed.
type PackageConfig struct {
	ID        string `json:"id"`
	BaseURL   string `json:"base_url"`
	EntryPath string `json:"entry_path"`
	Scheme    string `json:"scheme"`
}

// PathsConfig holds filesystem locations. Both support a leading ~/.
type PathsConfig struct {
	DataDir string `json:"data_dir"`
	// UserPackages is a directory of side-loaded unpacked packages.
	// Empty means <data_dir>/packages/user.
	UserPackages string `json:"user_packages,omitempty"`
}

// UpdateConfig tunes the update client and download retries.
type UpdateConfig struct {
	Attempts        int           `json:"attempts"`
	Delay           time.Duration `json:"delay"`
	CheckTimeout    time.Duration `json:"check_timeout"`
	DownloadTimeout time.Duration `json:"download_timeout"`
	MaxRedirects    int           `json:"max_redirects"`
	// Platform is "fixed" (send the default platform values) or "detect".
	Platform string `json:"platform"`
}

// SessionConfig tunes session cookie persistence.
type SessionConfig struct {
	Origins []string        `json:"origins,omitempty"`
	Delays  []time.Duration `json:"delays"`
	TTL     time.Duration   `json:"ttl"`
}

// BrowserConfig configures the embedded browser.
type BrowserConfig struct {
	Headless  bool   `json:"headless"`
	Bin       string `json:"bin,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level"`
	// File also writes logs to <data_dir>/logs/crxkeep.log.
	File bool `json:"file"`
}

// Defaults returns a Config with every optional value filled in.
func Defaults() *Config {
	return &Config{
		Package: PackageConfig{
			BaseURL:   update.DefaultBaseURL,
			EntryPath: "index.html",
			Scheme:    host.DefaultScheme,
		},
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Update: UpdateConfig{
			Attempts:        retry.DefaultAttempts,
			Delay:           retry.DefaultDelay,
			CheckTimeout:    update.DefaultCheckTimeout,
			DownloadTimeout: update.DefaultDownloadTimeout,
			MaxRedirects:    update.DefaultMaxRedirects,
			Platform:        PlatformFixed,
		},
		Session: SessionConfig{
			Delays: append([]time.Duration(nil), session.DefaultDelays...),
			TTL:    session.DefaultTTL,
		},
		Log: LogConfig{
			Level: logging.LevelInfo.String(),
			File:  true,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "crxkeep")
	}
	return filepath.Join(".", ".crxkeep")
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if c.Package.ID == "" {
		return &ValidationError{Field: "package.id", Message: "package id is required"}
	}
	if !crx.Identity(c.Package.ID).Valid() {
		return &ValidationError{Field: "package.id", Message: fmt.Sprintf("%q is not 32 letters in a..p", c.Package.ID)}
	}
	if err := validateHTTPURL(c.Package.BaseURL); err != nil {
		return &ValidationError{Field: "package.base_url", Message: err.Error()}
	}
	if strings.Contains(c.Package.EntryPath, "..") {
		return &ValidationError{Field: "package.entry_path", Message: "path traversal not allowed"}
	}
	if c.Package.Scheme == "" {
		return &ValidationError{Field: "package.scheme", Message: "scheme cannot be empty"}
	}

	if c.Paths.DataDir == "" {
		return &ValidationError{Field: "paths.data_dir", Message: "data directory cannot be empty"}
	}

	if c.Update.Attempts < 1 {
		return &ValidationError{Field: "update.attempts", Message: "must be at least 1"}
	}
	if c.Update.Delay < 0 {
		return &ValidationError{Field: "update.delay_seconds", Message: "cannot be negative"}
	}
	if c.Update.CheckTimeout <= 0 {
		return &ValidationError{Field: "update.check_timeout_seconds", Message: "must be positive"}
	}
	if c.Update.DownloadTimeout <= 0 {
		return &ValidationError{Field: "update.download_timeout_seconds", Message: "must be positive"}
	}
	if c.Update.MaxRedirects < 1 {
		return &ValidationError{Field: "update.max_redirects", Message: "must be at least 1"}
	}
	if c.Update.Platform != PlatformFixed && c.Update.Platform != PlatformDetect {
		return &ValidationError{Field: "update.platform", Message: fmt.Sprintf("must be %q or %q", PlatformFixed, PlatformDetect)}
	}

	if len(c.Session.Origins) > MaxOrigins {
		return &ValidationError{
			Field:   "session.origins",
			Message: fmt.Sprintf("too many origins (%d), maximum is %d", len(c.Session.Origins), MaxOrigins),
		}
	}
	for i, origin := range c.Session.Origins {
		if err := validateHTTPURL(origin); err != nil {
			return &ValidationError{Field: fmt.Sprintf("session.origins[%d]", i), Message: err.Error()}
		}
	}
	for i, d := range c.Session.Delays {
		if d < 0 {
			return &ValidationError{Field: fmt.Sprintf("session.delays[%d]", i), Message: "cannot be negative"}
		}
	}
	if c.Session.TTL <= 0 {
		return &ValidationError{Field: "session.ttl_days", Message: "must be positive"}
	}

	if len(c.Patches) > MaxPatches {
		return &ValidationError{
			Field:   "patches",
			Message: fmt.Sprintf("too many patches (%d), maximum is %d", len(c.Patches), MaxPatches),
		}
	}
	for i, p := range c.Patches {
		if p.File == "" || p.Find == "" {
			return &ValidationError{Field: fmt.Sprintf("patches[%d]", i), Message: "file and find are required"}
		}
		if strings.Contains(p.File, "..") {
			return &ValidationError{Field: fmt.Sprintf("patches[%d].file", i), Message: "path traversal not allowed"}
		}
	}

	if c.Browser.RemoteURL != "" {
		u, err := url.Parse(c.Browser.RemoteURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Field: "browser.remote_url", Message: "must be a ws://, wss://, http:// or https:// URL"}
		}
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
