// Package logger holds the process-wide structured logger used by the
// allocator, the trace driver and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the global logger instance. It discards all output by default; set
// SEGALLOC_LOG=debug|info|warn|error or call Init to enable it.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// EnvVar names the environment variable read at package init.
const EnvVar = "SEGALLOC_LOG"

const (
	logPrefix     = "segalloc-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Takes precedence over LogDir
	LogDir  string     // Directory for dated log files when Output is nil
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Use the JSON handler instead of text
}

func init() {
	if v, ok := os.LookupEnv(EnvVar); ok && v != "" {
		level, known := ParseLevel(v)
		if !known {
			level = slog.LevelDebug
		}
		_ = Init(Options{Enabled: true, Output: os.Stderr, Level: level})
	}
}

// ParseLevel maps a level name to a slog.Level. known is false for an
// unrecognized name.
func ParseLevel(s string) (level slog.Level, known bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "1", "true":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	out := opts.Output
	if out == nil {
		logDir := opts.LogDir
		if logDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			logDir = filepath.Join(home, ".segalloc", "logs")
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}

		// Best effort
		cleanOldLogs(logDir, time.Now())

		filename := filepath.Join(logDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, handlerOpts))
	} else {
		L = slog.New(slog.NewTextHandler(out, handlerOpts))
	}
	return nil
}

// cleanOldLogs removes log files older than retentionDays.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// Parse date from filename: segalloc-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
