// Package pipeline drives one queued link through its full lifecycle:
// existing-file check, active-transfer heuristic, size probe, staggered
// launch, transfer, verification, relocation and the final status write.
// Nothing raised by one entry may terminate the worker or the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seriesdl/seriesdl/internal/linkstore"
	"github.com/seriesdl/seriesdl/internal/pool"
	"github.com/seriesdl/seriesdl/internal/probe"
	"github.com/seriesdl/seriesdl/internal/runner"
	"github.com/seriesdl/seriesdl/internal/utils"
)

// Failure reasons written into the link list. "active" is not terminal:
// the line stays unmarked so the next run retries it.
const (
	ReasonDownloadFailed     = "download failed"
	ReasonVerificationFailed = "verification failed"
	ReasonMoveFailed         = "move failed"
	ReasonSizeMismatch       = "size mismatch"
	ReasonNoExpectedSize     = "size unknown"
)

// History statuses recorded per concluded entry.
const (
	statusComplete = "complete"
	statusExisted  = "already_existed"
	statusFailed   = "failed"
	statusDeferred = "deferred"
)

// Prober supplies an advisory expected size for a URL.
type Prober interface {
	ExpectedSize(ctx context.Context, rawurl string) probe.Result
}

// Transferer runs one external download to destPath.
type Transferer interface {
	Run(ctx context.Context, rawurl, destPath string, onProgress func(runner.Progress)) (runner.Outcome, error)
}

// Recorder persists a concluded entry to the history store.
type Recorder interface {
	Record(url, filename, status string, size int64) error
}

// Options configures a Pipeline.
type Options struct {
	Store   *linkstore.Store
	Prober  Prober
	Runner  Transferer
	Slots   *pool.SlotTable
	History Recorder // optional

	WorkDir string // where transfers land before relocation
	DestDir string // series destination directory

	ActiveCheckInterval time.Duration
	StaggerStep         time.Duration
	StaggeredSlots      int
	SlotCount           int
}

// Pipeline is the per-entry state machine shared by all workers.
type Pipeline struct {
	opts    Options
	stagger []sync.Once
}

// New returns a pipeline for the given collaborators.
func New(opts Options) *Pipeline {
	n := opts.SlotCount
	if n < 1 {
		n = 1
	}
	return &Pipeline{
		opts:    opts,
		stagger: make([]sync.Once, n),
	}
}

// Process runs one entry to a terminal state. It never returns an error:
// every failure is recorded on the entry and logged.
func (p *Pipeline) Process(ctx context.Context, slot int, item pool.Item) {
	filename := utils.FilenameFromURL(item.URL)
	localPath := filepath.Join(p.opts.WorkDir, filename)

	p.opts.Slots.SetText(slot, fmt.Sprintf("%s: starting", filename))
	utils.Debug("slot %d: line %d %s -> %s", slot, item.Line, item.URL, filename)

	if _, err := os.Stat(localPath); err == nil {
		p.processExisting(ctx, slot, item, filename, localPath)
		return
	}
	p.processFresh(ctx, slot, item, filename, localPath)
}

// processExisting handles a file that is already present locally. It is
// relocated only on an exact size match against a fresh probe; otherwise
// it is left untouched, since an unverifiable artifact must never be
// filed as complete.
func (p *Pipeline) processExisting(ctx context.Context, slot int, item pool.Item, filename, localPath string) {
	p.opts.Slots.SetText(slot, fmt.Sprintf("%s: checking existing file", filename))

	if p.isActivelyWritten(localPath) {
		utils.Debug("slot %d: %s is growing, deferring (someone else is writing it)", slot, localPath)
		p.opts.Slots.SetText(slot, fmt.Sprintf("%s: active elsewhere, deferred", filename))
		p.record(item.URL, filename, statusDeferred, 0)
		return // line stays unmarked so a later run retries
	}

	res := p.opts.Prober.ExpectedSize(ctx, item.URL)
	if !res.SizeKnown {
		utils.Debug("slot %d: existing %s but no expected size, leaving it alone", slot, localPath)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonNoExpectedSize), statusFailed, 0)
		return
	}

	info, err := os.Stat(localPath)
	if err != nil {
		// Vanished between the checks; treat as a fresh download.
		p.processFresh(ctx, slot, item, filename, localPath)
		return
	}

	if info.Size() != res.Size {
		utils.Debug("slot %d: existing %s is %d bytes, expected %d", slot, localPath, info.Size(), res.Size)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonSizeMismatch), statusFailed, info.Size())
		return
	}

	dest, err := p.relocate(localPath, filename)
	if err != nil {
		utils.Debug("slot %d: failed to relocate existing %s: %v", slot, localPath, err)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonMoveFailed), statusFailed, info.Size())
		return
	}

	utils.Debug("slot %d: %s already existed, filed as %s", slot, filename, dest)
	p.conclude(slot, item, filename, linkstore.MarkerAlreadyExists, statusExisted, info.Size())
}

// processFresh downloads, verifies and relocates a file that is not
// present locally yet.
func (p *Pipeline) processFresh(ctx context.Context, slot int, item pool.Item, filename, localPath string) {
	res := p.opts.Prober.ExpectedSize(ctx, item.URL)

	// The URL basename wins when it exists; the server's declared name
	// only replaces a generated hash fallback.
	if _, ok := utils.URLBasename(item.URL); !ok && res.Filename != "" {
		utils.Debug("slot %d: using server-declared filename %q for %s", slot, res.Filename, item.URL)
		filename = res.Filename
		localPath = filepath.Join(p.opts.WorkDir, filename)
	}

	p.staggerSlot(slot, filename)

	p.opts.Slots.Set(slot, pool.SlotStatus{Text: fmt.Sprintf("%s: connecting", filename), Percent: 0})
	out, err := p.opts.Runner.Run(ctx, item.URL, localPath, func(pr runner.Progress) {
		p.opts.Slots.Set(slot, pool.SlotStatus{
			Text:    fmt.Sprintf("%s  %s/s  ETA %s", filename, pr.Rate, pr.ETA),
			Percent: pr.Percent,
		})
	})
	if err != nil {
		utils.Debug("slot %d: transfer of %s failed: %v", slot, item.URL, err)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonDownloadFailed), statusFailed, 0)
		return
	}

	if res.SizeKnown && out.Size != res.Size {
		utils.Debug("slot %d: verification failed for %s: got %d bytes, expected %d; deleting partial",
			slot, filename, out.Size, res.Size)
		os.Remove(out.Path)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonVerificationFailed), statusFailed, out.Size)
		return
	}
	if !res.SizeKnown {
		utils.Debug("slot %d: no expected size for %s, accepting %d bytes unverified", slot, item.URL, out.Size)
	} else {
		utils.Debug("slot %d: verified %s (%s)", slot, filename, utils.HumanSize(out.Size))
	}

	dest, err := p.relocate(out.Path, filename)
	if err != nil {
		utils.Debug("slot %d: failed to relocate %s: %v", slot, out.Path, err)
		p.conclude(slot, item, filename, linkstore.MarkerFailed(ReasonMoveFailed), statusFailed, out.Size)
		return
	}

	utils.Debug("slot %d: completed %s -> %s", slot, item.URL, dest)
	p.conclude(slot, item, filename, linkstore.MarkerComplete, statusComplete, out.Size)
}

// staggerSlot applies the one-time launch offset for low-numbered slots,
// spacing out the first wave of transfers against the remote host. The
// delay is a per-slot one-time cost, not re-applied per entry.
func (p *Pipeline) staggerSlot(slot int, filename string) {
	if slot < 0 || slot >= len(p.stagger) {
		return
	}
	p.stagger[slot].Do(func() {
		if slot >= p.opts.StaggeredSlots {
			return
		}
		delay := time.Duration(slot+1) * p.opts.StaggerStep
		utils.Debug("slot %d: staggering first transfer by %s", slot, delay)
		p.opts.Slots.SetText(slot, fmt.Sprintf("%s: staggered start in %s", filename, delay))
		time.Sleep(delay)
	})
}

// isActivelyWritten samples the file size over two fixed intervals and
// reports whether it changed. This is a heuristic, not a lock: a transfer
// paused for longer than the sampling window reads as static, which is an
// accepted limitation.
func (p *Pipeline) isActivelyWritten(path string) bool {
	size, ok := fileSize(path)
	if !ok {
		return false
	}
	for i := 0; i < 2; i++ {
		time.Sleep(p.opts.ActiveCheckInterval)
		next, ok := fileSize(path)
		if !ok {
			return false
		}
		if next != size {
			return true
		}
	}
	return false
}

// conclude writes the terminal marker back to the entry's original line,
// records history and updates the slot display. A vanished line is logged
// and ignored, never fatal.
func (p *Pipeline) conclude(slot int, item pool.Item, filename, marker, status string, size int64) {
	if err := p.opts.Store.SetLineStatus(item.Line, marker); err != nil {
		if errors.Is(err, linkstore.ErrLineNotFound) {
			utils.Debug("line %d no longer exists in link list, status %q dropped", item.Line, marker)
		} else {
			utils.Debug("failed to write status for line %d: %v", item.Line, err)
		}
	}
	p.record(item.URL, filename, status, size)
	p.opts.Slots.SetText(slot, fmt.Sprintf("%s: %s", filename, status))
}

func (p *Pipeline) record(url, filename, status string, size int64) {
	if p.opts.History == nil {
		return
	}
	if err := p.opts.History.Record(url, filename, status, size); err != nil {
		utils.Debug("history write failed for %s: %v", url, err)
	}
}

func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}
