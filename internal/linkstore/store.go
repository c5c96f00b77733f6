// Package linkstore manages a series link list: a plain text file with one
// URL per line, where a leading marker records the outcome of an entry.
// The file is the single source of truth across runs; a line with no
// marker that starts with the https scheme is pending work.
package linkstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// SchemePrefix identifies a pending line after trimming.
const SchemePrefix = "https://"

// Markers written in front of a resolved line. The URL portion of the line
// is preserved verbatim.
const (
	MarkerComplete      = "# COMPLETE"
	MarkerAlreadyExists = "# COMPLETE - already existed"
	markerFailedPrefix  = "# FAILED - "
)

// MarkerFailed builds the failure marker for a reason, e.g.
// "# FAILED - download failed".
func MarkerFailed(reason string) string {
	return markerFailedPrefix + reason
}

// ErrLineNotFound is returned when a status rewrite addresses a line index
// that no longer exists. Callers treat this as a logged non-fatal event.
var ErrLineNotFound = errors.New("line index out of range")

// Entry is one pending link, identified by its physical line index. The
// index is stable for the duration of a run and is the key used to write
// the terminal status back.
type Entry struct {
	Line int
	URL  string
}

// Store wraps one link-list file. Rewrites are serialized by an in-process
// mutex and a file lock, because each rewrite reconstructs the whole file.
type Store struct {
	path string
	mu   sync.Mutex
	fl   *flock.Flock
}

// Open returns a store for the link list at path. The file must exist.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("link list not found: %w", err)
	}
	return &Store{
		path: path,
		fl:   flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Backup makes a one-time copy of the link list next to the original. An
// existing backup is never overwritten.
func (s *Store) Backup(suffix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupPath := s.path + suffix
	if _, err := os.Stat(backupPath); err == nil {
		return nil // backup from an earlier run, keep it
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open link list: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("failed to create backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// LoadPending scans every line and returns the entries that still need
// work: lines that, after trimming, start with the scheme prefix and carry
// no marker. Line indices are zero-based physical positions.
func (s *Store) LoadPending() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, _, err := s.readLines()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, SchemePrefix) {
			entries = append(entries, Entry{Line: i, URL: trimmed})
		}
	}
	return entries, nil
}

// SetLineStatus rewrites exactly the addressed line as "<marker> <url>",
// replacing any previous marker and preserving every other line
// byte-for-byte. The rewrite goes through a temp file and an atomic rename.
// Returns ErrLineNotFound if the index is out of range at rewrite time.
func (s *Store) SetLineStatus(lineIndex int, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock link list: %w", err)
	}
	defer s.fl.Unlock()

	lines, trailingNewline, err := s.readLines()
	if err != nil {
		return err
	}

	if lineIndex < 0 || lineIndex >= len(lines) {
		return ErrLineNotFound
	}

	lines[lineIndex] = marker + " " + urlPortion(lines[lineIndex])

	return s.writeLines(lines, trailingNewline)
}

// Append adds a URL as a new pending line at the end of the list.
func (s *Store) Append(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock link list: %w", err)
	}
	defer s.fl.Unlock()

	lines, _, err := s.readLines()
	if err != nil {
		return err
	}
	lines = append(lines, url)
	return s.writeLines(lines, true)
}

// urlPortion strips a previous marker from a line, keeping the URL text
// verbatim. Lines without a scheme are returned trimmed as-is.
func urlPortion(line string) string {
	if idx := strings.Index(line, SchemePrefix); idx != -1 {
		return line[idx:]
	}
	return strings.TrimSpace(line)
}

func (s *Store) readLines() ([]string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read link list: %w", err)
	}

	content := string(data)
	trailingNewline := strings.HasSuffix(content, "\n")
	if trailingNewline {
		content = strings.TrimSuffix(content, "\n")
	}
	if content == "" {
		return nil, trailingNewline, nil
	}
	return strings.Split(content, "\n"), trailingNewline, nil
}

func (s *Store) writeLines(lines []string, trailingNewline bool) error {
	content := strings.Join(lines, "\n")
	if trailingNewline {
		content += "\n"
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace link list: %w", err)
	}
	return nil
}
