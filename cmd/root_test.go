package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLinkList(t *testing.T) {
	workDir := t.TempDir()
	listPath := filepath.Join(workDir, "show.links")
	if err := os.WriteFile(listPath, []byte("https://host.example/e01.mkv\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		arg  string
	}{
		{"bare series name", "show"},
		{"name with extension", "show.links"},
		{"absolute path", listPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, series, err := resolveLinkList(workDir, tt.arg)
			if err != nil {
				t.Fatalf("resolveLinkList(%q) error: %v", tt.arg, err)
			}
			if path != listPath {
				t.Errorf("path = %q, want %q", path, listPath)
			}
			if series != "show" {
				t.Errorf("series = %q, want %q", series, "show")
			}
		})
	}
}

func TestResolveLinkList_MissingFile(t *testing.T) {
	if _, _, err := resolveLinkList(t.TempDir(), "nope"); err == nil {
		t.Error("expected an error for a missing link list")
	}
}

func TestRunPostHook_MissingAndNonExecutable(t *testing.T) {
	workDir := t.TempDir()

	// Missing hook: silently skipped.
	runPostHook(workDir, "./post_process.sh", "show")

	// Present but not executable: skipped too.
	hook := filepath.Join(workDir, "post_process.sh")
	if err := os.WriteFile(hook, []byte("#!/bin/sh\nexit 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runPostHook(workDir, "./post_process.sh", "show")
}

func TestRunPostHook_RunsWithSeriesArg(t *testing.T) {
	workDir := t.TempDir()
	marker := filepath.Join(workDir, "hook-ran")

	hook := filepath.Join(workDir, "post_process.sh")
	script := "#!/bin/sh\necho \"$1\" > \"" + marker + "\"\n"
	if err := os.WriteFile(hook, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	runPostHook(workDir, "./post_process.sh", "show")

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("hook did not run: %v", err)
	}
	if got := string(data); got != "show\n" {
		t.Errorf("hook argument = %q, want %q", got, "show\n")
	}
}
