// Package testutil provides utilities for testing crxkeep in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env describes the isolated directories created by SetupTestEnv.
type Env struct {
	Root       string
	DataDir    string
	ConfigFile string
}

// SetupTestEnv points every crxkeep environment variable at a fresh temp
// directory so tests never read or write the user's real data, and clears
// CRXKEEP_LOG so the developer's shell cannot change log levels under test.
// Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := Env{
		Root:       tmpDir,
		DataDir:    filepath.Join(tmpDir, "data"),
		ConfigFile: filepath.Join(tmpDir, "data", "crxkeep.lua"),
	}

	t.Setenv("CRXKEEP_DATA_DIR", env.DataDir)
	t.Setenv("CRXKEEP_CONFIG", env.ConfigFile)
	t.Setenv("CRXKEEP_LOG", "")
	t.Setenv("CRXKEEP_TEST_MODE", "1")

	if err := os.MkdirAll(env.DataDir, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", env.DataDir, err)
	}
	return env
}
