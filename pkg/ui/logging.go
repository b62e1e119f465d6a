package ui

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/ghtree/pkg/debug"
)

// LogFileName is created in the state directory while the TUI runs.
const LogFileName = "ghtree.log"

// RedirectLogs sends slog and debug output to stateDir/ghtree.log so
// nothing writes over the alternate screen. The returned function restores
// the previous default logger and closes the file.
func RedirectLogs(stateDir string, level slog.Level) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating state directory: %w", err)
	}
	path := filepath.Join(stateDir, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	prev := slog.Default()
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	debug.SetOutput(f)

	restore := func() error {
		slog.SetDefault(prev)
		debug.SetOutput(nil)
		return f.Close()
	}
	return logger, restore, nil
}
