package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits one rung below slog.LevelDebug, for wire-level
// forensics (raw frame dumps, per-event decode traces) that would be
// too noisy even for Debug.
const LevelTrace = slog.Level(slog.LevelDebug - 4)

var logLevelNames = map[string]slog.Level{
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel converts a config string (trace, debug, info, warn,
// error; case-insensitive) to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	level, ok := logLevelNames[key]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
	return level, nil
}

// ReplaceLogLevelNames is a slog.HandlerOptions.ReplaceAttr hook that
// renders LevelTrace as "TRACE" instead of slog's default "DEBUG-4".
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
