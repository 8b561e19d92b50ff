package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel names the environment variable that overrides the configured level.
const EnvLevel = "CRXKEEP_LOG"

// Level is a log verbosity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelVerbose
)

// String returns the canonical level name.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelVerbose:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel parses a level name. Aliases: "warning" and "trace".
func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return LevelError, true
	case "warn", "warning":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "verbose", "trace":
		return LevelVerbose, true
	default:
		return LevelInfo, false
	}
}

// ResolveLevel picks the effective level: a valid CRXKEEP_LOG wins, then the
// configured value, then info.
func ResolveLevel(configured string) Level {
	if env, ok := os.LookupEnv(EnvLevel); ok {
		if lvl, ok := ParseLevel(env); ok {
			return lvl
		}
	}
	lvl, _ := ParseLevel(configured)
	return lvl
}
