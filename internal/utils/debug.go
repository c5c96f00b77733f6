package utils

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	logMu   sync.Mutex
	logFile *os.File
)

// ConfigureLog opens the run log at path, rotating any previous log out of
// the way first. The old file is renamed with a timestamp suffix rather
// than truncated, so earlier runs stay inspectable.
func ConfigureLog(path string) error {
	logMu.Lock()
	defer logMu.Unlock()

	if _, err := os.Stat(path); err == nil {
		rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("20060102-150405"))
		if err := os.Rename(path, rotated); err != nil {
			return fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	return nil
}

// CloseLog closes the run log, if one is open.
func CloseLog() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Debug appends a timestamped line to the run log. It is a no-op when no
// log is configured, and never writes to the terminal.
func Debug(format string, args ...any) {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile == nil {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(logFile, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}
