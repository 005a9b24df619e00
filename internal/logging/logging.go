// Package logging provides structured logging setup using log/slog.
//
// The dashboard owns the terminal while running, so logs go to a file
// under the application state directory rather than stderr.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Level represents the logging verbosity level.
type Level int

const (
	// LevelInfo is the default logging level for normal operation.
	LevelInfo Level = iota
	// LevelDebug enables verbose debug output.
	LevelDebug
)

// LogFileName is the log file created under the state directory.
const LogFileName = "vortix.log"

// Setup initializes the global slog logger writing to a log file in
// stateDir. It returns a close function for the underlying file.
// Call this once at application startup.
func Setup(stateDir string, level Level) (func() error, error) {
	slogLevel := slog.LevelInfo
	if level == LevelDebug {
		slogLevel = slog.LevelDebug
	}

	path := filepath.Join(stateDir, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) // #nosec G304 -- path under our state dir
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))

	return f.Close, nil
}

// SetupStderr initializes logging to stderr, used by one-shot CLI
// commands where no TUI competes for the terminal.
func SetupStderr(level Level) {
	slogLevel := slog.LevelInfo
	if level == LevelDebug {
		slogLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

// LevelFromEnv returns LevelDebug when VORTIX_DEBUG=1 is set.
func LevelFromEnv() Level {
	if os.Getenv("VORTIX_DEBUG") == "1" {
		return LevelDebug
	}
	return LevelInfo
}
