package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger: human-readable text on stderr and
// JSON lines appended to logFile. An empty logFile disables the file sink.
// The returned cleanup closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level}
	stderrHandler := slog.NewTextHandler(os.Stderr, opts)
	noop := func() error { return nil }

	if logFile == "" {
		return slog.New(stderrHandler), noop
	}

	if dir := filepath.Dir(logFile); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return logger, noop
	}

	logger := slog.New(slogmulti.Fanout(stderrHandler, slog.NewJSONHandler(file, opts)))
	return logger, file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, opts),
		slog.NewJSONHandler(file, opts),
	))
}
