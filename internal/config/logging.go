package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits one notch below [slog.LevelDebug] and carries full
// bridge request and response payloads. The value -8 matches what
// OpenTelemetry and most slog extensions use for trace.
//
// Every transposer call is logged at this level, so it is meant for
// diagnosing bridge protocol problems, not for day-to-day running.
const LevelTrace = slog.Level(-8)

var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel maps the log_level config value to an [slog.Level].
// Matching ignores case and surrounding whitespace, and the empty
// string means info. "trace" enables wire-level payload logging,
// "debug" per-cycle detail.
func ParseLogLevel(s string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
	return level, nil
}

// ReplaceLogLevelNames renders [LevelTrace] as "TRACE". slog has no name
// for custom levels and would print "DEBUG-4" otherwise. Wire it into the
// handler via [slog.HandlerOptions.ReplaceAttr]:
//
//	slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level:       config.LevelTrace,
//	    ReplaceAttr: config.ReplaceLogLevelNames,
//	})
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
