package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seriesdl/seriesdl/internal/config"
	"github.com/seriesdl/seriesdl/internal/history"
	"github.com/seriesdl/seriesdl/internal/linkstore"
	"github.com/seriesdl/seriesdl/internal/pipeline"
	"github.com/seriesdl/seriesdl/internal/pool"
	"github.com/seriesdl/seriesdl/internal/probe"
	"github.com/seriesdl/seriesdl/internal/runner"
	"github.com/seriesdl/seriesdl/internal/tui"
	"github.com/seriesdl/seriesdl/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// rootCmd downloads every pending link of a series list with a bounded
// pool of concurrent workers.
var rootCmd = &cobra.Command{
	Use:     "seriesdl <series>",
	Short:   "Batch downloader for series link lists",
	Long: `Seriesdl reads a series link list (<name>.links), downloads every
pending https link with a bounded pool of workers, verifies each file
against the size the server declares, files it under series/<name>/ and
annotates the list with a per-link status marker.`,
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runSeries,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.SetVersionTemplate("seriesdl version {{.Version}}\n")
}

func runSeries(cmd *cobra.Command, args []string) error {
	// Arg validation is done; runtime failures should not re-print usage.
	cmd.SilenceUsage = true

	settings := config.DefaultSettings()

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	listPath, series, err := resolveLinkList(workDir, args[0])
	if err != nil {
		return err
	}

	if err := utils.ConfigureLog(config.LogPath(workDir)); err != nil {
		return err
	}
	defer utils.CloseLog()

	runID := uuid.New().String()
	utils.Debug("run %s: series %q, list %s", runID, series, listPath)

	store, err := linkstore.Open(listPath)
	if err != nil {
		return err
	}
	if err := store.Backup(config.BackupSuffix); err != nil {
		utils.Debug("backup failed: %v", err)
	}

	entries, err := store.LoadPending()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("Nothing to download for %q.\n", series)
		return nil
	}
	utils.Debug("found %d pending link(s)", len(entries))

	destDir, err := config.EnsureSeriesDir(workDir, series)
	if err != nil {
		return err
	}

	hist, err := history.Open(config.HistoryPath(workDir, series), series, runID)
	if err != nil {
		utils.Debug("history disabled: %v", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	slots := pool.NewSlotTable(settings.MaxConcurrent)
	pipe := pipeline.New(pipeline.Options{
		Store:               store,
		Prober:              probe.New(settings.ProbeTimeout, settings.ProbeAttempts, settings.UserAgent),
		Runner:              runner.New(settings.WgetPath, settings.WgetRetries, settings.ConnectTimeout, settings.UserAgent),
		Slots:               slots,
		History:             recorderOrNil(hist),
		WorkDir:             workDir,
		DestDir:             destDir,
		ActiveCheckInterval: settings.ActiveCheckInterval,
		StaggerStep:         settings.StaggerStep,
		StaggeredSlots:      settings.StaggeredSlots,
		SlotCount:           settings.MaxConcurrent,
	})

	// Background context on purpose: an interrupt only hides the display,
	// already-dispatched transfers run to completion.
	workers := pool.New(settings.MaxConcurrent, func(slot int, item pool.Item) {
		pipe.Process(context.Background(), slot, item)
	})
	for _, e := range entries {
		workers.Add(pool.Item{Line: e.Line, URL: e.URL})
	}
	workers.Close()

	if err := tui.Run(tui.NewModel(series, slots, workers, len(entries), settings.DisplayInterval)); err != nil {
		utils.Debug("display error: %v", err)
	}

	workers.Wait()

	fmt.Printf("Completed %q: %d link(s) processed. See the link list and %s for details.\n",
		series, len(entries), config.LogPath(workDir))

	runPostHook(workDir, settings.PostRunHook, series)
	return nil
}

// recorderOrNil keeps a typed nil *history.Store from sneaking into the
// Recorder interface.
func recorderOrNil(h *history.Store) pipeline.Recorder {
	if h == nil {
		return nil
	}
	return h
}

// resolveLinkList maps the positional argument, which may be a series name
// or a link-list path with or without its extension, to the backing file.
func resolveLinkList(workDir, arg string) (path, series string, err error) {
	path = arg
	if !strings.HasSuffix(path, config.LinksExt) {
		path += config.LinksExt
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return "", "", fmt.Errorf("link list not found: %s", path)
	}

	series = strings.TrimSuffix(filepath.Base(path), config.LinksExt)
	return path, series, nil
}

// runPostHook invokes the post-processing program with the series name if
// one exists in the working directory. Its failure is logged but never
// changes our exit code.
func runPostHook(workDir, hook, series string) {
	hookPath := hook
	if !filepath.IsAbs(hookPath) {
		hookPath = filepath.Join(workDir, filepath.Base(hook))
	}

	info, err := os.Stat(hookPath)
	if err != nil {
		return
	}
	if info.Mode()&0111 == 0 {
		utils.Debug("post-run hook %s exists but is not executable, skipping", hookPath)
		return
	}

	utils.Debug("running post-run hook: %s %s", hookPath, series)
	c := exec.Command(hookPath, series)
	c.Dir = workDir
	if out, err := c.CombinedOutput(); err != nil {
		utils.Debug("post-run hook failed: %v: %s", err, strings.TrimSpace(string(out)))
	} else {
		utils.Debug("post-run hook finished")
	}
}
