package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the run logger. Operators read text on stderr; the log file
// gets one JSON object per line, including raw model replies at debug level.
// An empty logFile, or one that cannot be opened, leaves stderr as the only sink.
// The returned func closes the log file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	noop := func() error { return nil }

	if logFile == "" {
		return slog.New(console), noop
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("log file unavailable, logging to stderr only", "file", logFile, "error", err)
		return logger, noop
	}

	return newFanoutLogger(console, file, level), file.Close
}

// SetupLoggerWithWriters fans out to arbitrary writers; tests use it to capture
// both sinks.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	return newFanoutLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}), file, level)
}

func newFanoutLogger(console slog.Handler, file io.Writer, level slog.Level) *slog.Logger {
	jsonLines := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(console, jsonLines))
}
