package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"error", LevelError, true},
		{"WARN", LevelWarn, true},
		{"warning", LevelWarn, true},
		{" info ", LevelInfo, true},
		{"debug", LevelDebug, true},
		{"trace", LevelVerbose, true},
		{"verbose", LevelVerbose, true},
		{"loud", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveLevel(t *testing.T) {
	t.Run("env overrides config", func(t *testing.T) {
		t.Setenv(EnvLevel, "debug")
		if got := ResolveLevel("error"); got != LevelDebug {
			t.Errorf("got %v, want debug", got)
		}
	})

	t.Run("invalid env falls back to config", func(t *testing.T) {
		t.Setenv(EnvLevel, "nonsense")
		if got := ResolveLevel("warn"); got != LevelWarn {
			t.Errorf("got %v, want warn", got)
		}
	})

	t.Run("invalid config falls back to info", func(t *testing.T) {
		t.Setenv(EnvLevel, "")
		if got := ResolveLevel("???"); got != LevelInfo {
			t.Errorf("got %v, want info", got)
		}
	})
}

func TestNewWritesFields(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer

	logger, closeFn, err := New(Options{Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	logger.Debug("download attempt", "component", "update", "attempt", 2)
	logger.Info("dangling", "key")

	out := buf.String()
	for _, want := range []string{"download attempt", "component=update", "attempt=2", "!BADKEY=key"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	t.Setenv(EnvLevel, "")
	var buf bytes.Buffer

	logger, closeFn, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestNewLogFile(t *testing.T) {
	t.Setenv(EnvLevel, "")
	path := filepath.Join(t.TempDir(), "logs", "crxkeep.log")

	logger, closeFn, err := New(Options{Output: &bytes.Buffer{}, FilePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
