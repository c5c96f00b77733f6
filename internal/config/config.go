package config

import (
	"os"
	"path/filepath"
	"time"
)

// Settings holds the runtime knobs for a batch run. Everything has a
// sensible default; there is no settings file yet.
type Settings struct {
	// MaxConcurrent is the number of worker slots pulling from the queue.
	MaxConcurrent int

	// ProbeTimeout bounds a single size-probe request.
	ProbeTimeout time.Duration
	// ProbeAttempts is the per-mechanism retry budget for the size probe.
	ProbeAttempts int

	// ActiveCheckInterval is the wait between size samples when deciding
	// whether an existing file is still being written by someone else.
	ActiveCheckInterval time.Duration

	// StaggerStep spaces out the first transfer of the low-numbered slots:
	// slot 0 waits one step, slot 1 two, slot 2 three. Higher slots start
	// immediately.
	StaggerStep     time.Duration
	StaggeredSlots  int
	DisplayInterval time.Duration

	// Transfer tool configuration.
	WgetPath       string
	WgetRetries    int
	ConnectTimeout time.Duration
	UserAgent      string

	// PostRunHook is executed with the series name after the batch
	// completes, if it exists in the working directory.
	PostRunHook string
}

// DefaultSettings returns the default configuration.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrent:       4,
		ProbeTimeout:        10 * time.Second,
		ProbeAttempts:       2,
		ActiveCheckInterval: 10 * time.Second,
		StaggerStep:         5 * time.Second,
		StaggeredSlots:      3,
		DisplayInterval:     500 * time.Millisecond,
		WgetPath:            "wget",
		WgetRetries:         3,
		ConnectTimeout:      30 * time.Second,
		UserAgent:           "seriesdl/1.0",
		PostRunHook:         "./post_process.sh",
	}
}

// LinksExt is the extension of a series link list.
const LinksExt = ".links"

// BackupSuffix is appended to the link list for the one-time backup copy.
const BackupSuffix = ".bak"

// SeriesDir returns the destination directory for a series, rooted at the
// working directory.
func SeriesDir(workDir, series string) string {
	return filepath.Join(workDir, "series", series)
}

// LogPath returns the run log location inside the working directory.
func LogPath(workDir string) string {
	return filepath.Join(workDir, "seriesdl.log")
}

// HistoryPath returns the location of the per-series outcome database.
func HistoryPath(workDir, series string) string {
	return filepath.Join(SeriesDir(workDir, series), ".history.db")
}

// EnsureSeriesDir creates the destination directory for a series.
func EnsureSeriesDir(workDir, series string) (string, error) {
	dir := SeriesDir(workDir, series)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
