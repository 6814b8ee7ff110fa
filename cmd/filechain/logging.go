package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filechain/internal/config"
)

const (
	logLevelEnvKey = "FILECHAIN_LOG_LEVEL"
	logLevelFlag   = "--log-level"
)

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// logLevelSetting is a requested level and the place it was read from.
type logLevelSetting struct {
	value  string
	origin string
}

// resolveLogLevel picks the flag, then FILECHAIN_LOG_LEVEL, then the
// configured log_level. The configured value already carries the env
// override; checking env first only names the origin correctly.
func resolveLogLevel(flagValue, configured string) logLevelSetting {
	if v := strings.TrimSpace(flagValue); v != "" {
		return logLevelSetting{value: v, origin: logLevelFlag}
	}
	if v := strings.TrimSpace(os.Getenv(logLevelEnvKey)); v != "" {
		return logLevelSetting{value: v, origin: logLevelEnvKey}
	}
	if v := strings.TrimSpace(configured); v != "" {
		return logLevelSetting{value: v, origin: "log_level"}
	}
	return logLevelSetting{value: config.DefaultLogLevel, origin: "default"}
}

func parseLogLevel(raw string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// installCLILogger replaces the default slog logger with a text handler on w.
// A bad --log-level fails the command; a bad env or config value falls back to
// the default level and yields a warning for the caller to print.
func installCLILogger(w io.Writer, flagValue, configured string) (string, error) {
	setting := resolveLogLevel(flagValue, configured)

	var warning string
	level, err := parseLogLevel(setting.value)
	if err != nil {
		if setting.origin == logLevelFlag {
			return "", fmt.Errorf("invalid %s %q (want debug, info, warn or error)", logLevelFlag, setting.value)
		}
		level = logLevels[config.DefaultLogLevel]
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", setting.origin, setting.value, config.DefaultLogLevel)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return warning, nil
}
