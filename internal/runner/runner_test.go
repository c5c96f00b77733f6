package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeStubTool writes a shell script that mimics the download tool: it
// locates the --output-document argument, emits progress on stderr and
// behaves per the given body.
func writeStubTool(t *testing.T, body string) string {
	t.Helper()
	script := `#!/bin/sh
prev=""
dest=""
for a in "$@"; do
	if [ "$prev" = "--output-document" ]; then dest="$a"; fi
	prev="$a"
done
` + body
	path := filepath.Join(t.TempDir(), "stub-wget")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write stub tool: %v", err)
	}
	return path
}

func newTestRunner(tool string) *Runner {
	return New(tool, 3, 30*time.Second, "seriesdl/test")
}

func TestRun_Success(t *testing.T) {
	tool := writeStubTool(t, `
printf ' 100K .... 50%% 1.0M 10s\n 200K .... 100%% 1.0M 0s\n' >&2
printf 'data' > "$dest"
`)
	dest := filepath.Join(t.TempDir(), "file.bin")

	var percents []int
	out, err := newTestRunner(tool).Run(context.Background(), "https://host.example/file.bin", dest, func(p Progress) {
		percents = append(percents, p.Percent)
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if out.Path != dest {
		t.Errorf("Path = %q, want %q", out.Path, dest)
	}
	if out.Size != 4 {
		t.Errorf("Size = %d, want 4", out.Size)
	}
	if len(percents) != 2 || percents[0] != 50 || percents[1] != 100 {
		t.Errorf("progress percents = %v, want [50 100]", percents)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	tool := writeStubTool(t, `exit 8`)
	dest := filepath.Join(t.TempDir(), "file.bin")

	_, err := newTestRunner(tool).Run(context.Background(), "https://host.example/file.bin", dest, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("got %v, want ErrDownloadFailed", err)
	}
}

func TestRun_CleanExitButNoFile(t *testing.T) {
	tool := writeStubTool(t, `exit 0`)
	dest := filepath.Join(t.TempDir(), "file.bin")

	_, err := newTestRunner(tool).Run(context.Background(), "https://host.example/file.bin", dest, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("got %v, want ErrDownloadFailed", err)
	}
}

func TestRun_MissingTool(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "file.bin")

	_, err := newTestRunner("/nonexistent/tool").Run(context.Background(), "https://host.example/file.bin", dest, nil)
	if !errors.Is(err, ErrRunner) {
		t.Errorf("got %v, want ErrRunner", err)
	}
}
