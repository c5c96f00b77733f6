// Package runner drives the external download tool for a single URL and
// turns its interleaved text output into normalized progress updates.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/seriesdl/seriesdl/internal/utils"
)

var (
	// ErrDownloadFailed means the tool exited non-zero or left no file.
	ErrDownloadFailed = errors.New("download failed")
	// ErrRunner means the subprocess invocation itself misbehaved.
	ErrRunner = errors.New("transfer runner error")
)

// Outcome describes a finished transfer attempt.
type Outcome struct {
	Path string
	Size int64
}

// Runner invokes wget configured for resumable transfers with bounded
// retries, a connection timeout and a fixed identifying client header.
type Runner struct {
	WgetPath       string
	Retries        int
	ConnectTimeout time.Duration
	UserAgent      string
}

// New returns a runner for the given tool configuration.
func New(wgetPath string, retries int, connectTimeout time.Duration, userAgent string) *Runner {
	return &Runner{
		WgetPath:       wgetPath,
		Retries:        retries,
		ConnectTimeout: connectTimeout,
		UserAgent:      userAgent,
	}
}

// Run downloads rawurl into destPath, calling onProgress whenever the
// reported percentage changes. Any panic inside the invocation is caught
// and converted into an error so one misbehaving transfer can never take
// a worker down.
func (r *Runner) Run(ctx context.Context, rawurl, destPath string, onProgress func(Progress)) (out Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRunner, p)
		}
	}()

	args := []string{
		"--continue",
		"--tries", strconv.Itoa(r.Retries),
		"--timeout", strconv.Itoa(int(r.ConnectTimeout.Seconds())),
		"--user-agent", r.UserAgent,
		"--progress=dot:mega",
		"--output-document", destPath,
		rawurl,
	}

	cmd := exec.CommandContext(ctx, r.WgetPath, args...)

	// wget writes all progress to stderr; stdout stays quiet but is
	// drained anyway so the process can never block on a full pipe.
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: setup stderr pipe: %v", ErrRunner, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: setup stdout pipe: %v", ErrRunner, err)
	}

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("%w: start %s: %v", ErrRunner, r.WgetPath, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.scanProgress(stderrPipe, onProgress)
	}()
	go func() {
		defer wg.Done()
		io.Copy(io.Discard, stdoutPipe)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil {
		utils.Debug("runner: %s exited with error: %v", r.WgetPath, waitErr)
		return Outcome{}, fmt.Errorf("%w: %v", ErrDownloadFailed, waitErr)
	}

	info, statErr := os.Stat(destPath)
	if statErr != nil {
		utils.Debug("runner: tool exited cleanly but %s is missing", destPath)
		return Outcome{}, fmt.Errorf("%w: no file produced", ErrDownloadFailed)
	}

	return Outcome{Path: destPath, Size: info.Size()}, nil
}

// scanProgress reads the tool's output line by line and forwards an update
// whenever the percentage changes. Updating only on percentage changes
// bounds the update frequency regardless of how chatty the tool is.
func (r *Runner) scanProgress(rd io.Reader, onProgress func(Progress)) {
	scanner := bufio.NewScanner(rd)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(splitByNewlineOrCR)

	lastPercent := -1
	for scanner.Scan() {
		p, ok := ParseProgressLine(scanner.Text())
		if !ok || p.Percent == lastPercent {
			continue
		}
		lastPercent = p.Percent
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// splitByNewlineOrCR tokenizes on either line ending, since progress bars
// commonly redraw with bare carriage returns.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
